package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"fundb/utils"
)

const recordsBucket = "records"

const dbLockTimeout = 2 * time.Second

var (
	// ErrNotFound is returned by Get when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrCorrupt is returned when a stored key or record cannot be decoded.
	ErrCorrupt = errors.New("corrupt record")
)

// Store keeps records in a single bbolt bucket keyed by the big-endian
// encoding of their id, so cursor order matches id order.
type Store struct {
	db     *bbolt.DB
	path   string
	logger *slog.Logger
}

func openDB(path string, readOnly bool) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: dbLockTimeout, ReadOnly: readOnly})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("open %q: timeout (another process may hold the database): %w", path, err)
		}
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return db, nil
}

// StoreExists reports whether a database file exists at path.
func StoreExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OpenStore opens the database at path, creating the file and bucket if needed.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openDB(path, false)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		return createErr
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	logger.Debug("store opened", "path", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

// OpenStoreReadOnly opens an existing database without taking the write lock,
// so it can be read while another process has it open read-only.
func OpenStoreReadOnly(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openDB(path, true)
	if err != nil {
		return nil, err
	}

	err = db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(recordsBucket)) == nil {
			return errors.New("database is missing records bucket")
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("store opened read-only", "path", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Append stores value under the next sequence id.
func (s *Store) Append(value []byte) (*Record, error) {
	var record *Record

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recordsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if seq > math.MaxInt64 {
			return errors.New("record sequence exhausted")
		}

		record = NewRecord(int64(seq), value)
		data, err := record.Serialize()
		if err != nil {
			return err
		}
		key := record.Key()
		return b.Put(key[:], data)
	})
	if err != nil {
		return nil, fmt.Errorf("append record: %w", err)
	}

	s.logger.Debug("record appended", "id", record.ID, "digest", record.DigestHex())
	return record, nil
}

// Get returns the record stored under id, or an error wrapping ErrNotFound.
func (s *Store) Get(id int64) (*Record, error) {
	var record *Record
	key := utils.ToArray(id)

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(recordsBucket)).Get(key[:])
		if data == nil {
			return ErrNotFound
		}
		var err error
		record, err = DeserializeRecord(data)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return record, nil
}

// Last returns the highest stored id, or 0 if the store is empty.
func (s *Store) Last() (int64, error) {
	var last int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket([]byte(recordsBucket)).Cursor().Last()
		if k == nil {
			return nil
		}
		var err error
		last, err = utils.ToLongSlice(k)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("last record: %w", err)
	}
	return last, nil
}
