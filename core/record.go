package core

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"fundb/utils"
)

// Record is a stored value with its sequence id and blake2b-256 digest.
type Record struct {
	ID        int64
	Timestamp int64
	Value     []byte
	Digest    []byte
}

func NewRecord(id int64, value []byte) *Record {
	digest := blake2b.Sum256(value)
	return &Record{
		ID:        id,
		Timestamp: time.Now().Unix(),
		Value:     append([]byte(nil), value...),
		Digest:    digest[:],
	}
}

func (r *Record) Serialize() ([]byte, error) {
	var result bytes.Buffer
	if err := gob.NewEncoder(&result).Encode(r); err != nil {
		return nil, fmt.Errorf("encode record %d: %w", r.ID, err)
	}
	return result.Bytes(), nil
}

// DeserializeRecord decodes a gob record; decode failures wrap ErrCorrupt.
func DeserializeRecord(data []byte) (*Record, error) {
	var record Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &record, nil
}

// Verify reports whether Digest still matches Value.
func (r *Record) Verify() bool {
	digest := blake2b.Sum256(r.Value)
	return bytes.Equal(digest[:], r.Digest)
}

func (r *Record) Key() utils.Int64Bytes {
	return utils.ToArray(r.ID)
}

func (r *Record) DigestHex() string {
	var sb strings.Builder
	// strings.Builder writes do not fail.
	_, _ = utils.HexEncode(r.Digest, &sb)
	return sb.String()
}
