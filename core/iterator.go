package core

import (
	"fmt"
	"math"

	"go.etcd.io/bbolt"

	"fundb/utils"
)

// Iterator walks records in ascending id order. Each step runs in its own
// read transaction, so appends made during iteration may be observed.
type Iterator struct {
	next    utils.Int64Bytes
	started bool
	done    bool
	db      *bbolt.DB
}

func (s *Store) Iterator() *Iterator {
	return &Iterator{db: s.db}
}

// Next returns the next record, or nil once the store is exhausted.
func (it *Iterator) Next() (*Record, error) {
	if it.done {
		return nil, nil
	}
	var record *Record

	err := it.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(recordsBucket)).Cursor()
		var k, v []byte
		if it.started {
			k, v = c.Seek(it.next[:])
		} else {
			k, v = c.First()
		}
		if k == nil {
			return nil
		}

		id, err := utils.ToLongSlice(k)
		if err != nil {
			return fmt.Errorf("%w: key %x: %v", ErrCorrupt, k, err)
		}
		record, err = DeserializeRecord(v)
		if err != nil {
			return err
		}
		if id == math.MaxInt64 {
			it.done = true
		} else {
			it.next = utils.ToArray(id + 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	it.started = true
	if record == nil {
		it.done = true
	}
	return record, nil
}
