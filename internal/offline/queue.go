// Package offline buffers ledger entries that could not be committed and
// replays them in enqueue order once the store is reachable again.
package offline

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
)

var (
	pendingBucket  = []byte("pending")
	rejectedBucket = []byte("rejected")
)

// Entry is a queued ledger commit. ID doubles as the transaction's client
// reference so a replay that already landed is recognized.
type Entry struct {
	ID           string
	QueuedAt     time.Time
	UserID       string
	AccountID    uint
	Amount       int64
	Label        string
	CategoryID   *uint
	Date         time.Time
	ImportID     *uint
	SmsReference *string
	Reason       string
}

type Queue struct {
	db *bolt.DB
}

func Open(path string) (*Queue, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open offline queue at %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{pendingBucket, rejectedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create queue buckets: %w", err)
	}
	return &Queue{db: db}, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue appends e to the pending bucket, assigning an ID when missing.
func (q *Queue) Enqueue(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.QueuedAt.IsZero() {
		e.QueuedAt = time.Now()
	}
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		val, err := encode(e)
		if err != nil {
			return err
		}
		return b.Put(key(seq), val)
	})
	if err != nil {
		return e, fmt.Errorf("failed to enqueue entry %s: %w", e.ID, err)
	}
	return e, nil
}

// Pending returns the queued entries in enqueue order.
func (q *Queue) Pending() ([]Entry, error) {
	return q.list(pendingBucket)
}

// Rejected returns entries that replay refused permanently.
func (q *Queue) Rejected() ([]Entry, error) {
	return q.list(rejectedBucket)
}

func (q *Queue) Len() (int, error) {
	var n int
	err := q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(pendingBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (q *Queue) list(bucket []byte) ([]Entry, error) {
	var entries []Entry
	err := q.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			e, err := decode(v)
			if err != nil {
				return fmt.Errorf("failed to decode entry %x: %w", k, err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// ReplayResult summarizes one Replay run.
type ReplayResult struct {
	Applied  int
	Rejected int
	Left     int
}

// Replay hands pending entries to apply oldest first. Applied entries are
// removed. An error wrapped with Permanent moves the entry to the rejected
// bucket and replay continues; any other error stops replay so later
// entries never overtake an earlier one.
func (q *Queue) Replay(ctx context.Context, apply func(context.Context, Entry) error) (ReplayResult, error) {
	var res ReplayResult
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		k, e, ok, err := q.head()
		if err != nil {
			return res, err
		}
		if !ok {
			return res, nil
		}

		applyErr := apply(ctx, e)
		switch {
		case applyErr == nil:
			if err := q.remove(k, nil); err != nil {
				return res, err
			}
			res.Applied++
		case IsPermanent(applyErr):
			e.Reason = applyErr.Error()
			if err := q.remove(k, &e); err != nil {
				return res, err
			}
			res.Rejected++
		default:
			n, _ := q.Len()
			res.Left = n
			return res, fmt.Errorf("replay stopped at entry %s: %w", e.ID, applyErr)
		}
	}
}

func (q *Queue) head() ([]byte, Entry, bool, error) {
	var (
		k []byte
		e Entry
	)
	err := q.db.View(func(tx *bolt.Tx) error {
		key, v := tx.Bucket(pendingBucket).Cursor().First()
		if key == nil {
			return nil
		}
		k = append([]byte(nil), key...)
		var err error
		e, err = decode(v)
		return err
	})
	if err != nil {
		return nil, Entry{}, false, fmt.Errorf("failed to read queue head: %w", err)
	}
	return k, e, k != nil, nil
}

// remove deletes k from the pending bucket, archiving rejected when set.
func (q *Queue) remove(k []byte, rejected *Entry) error {
	err := q.db.Update(func(tx *bolt.Tx) error {
		if rejected != nil {
			val, err := encode(*rejected)
			if err != nil {
				return err
			}
			if err := tx.Bucket(rejectedBucket).Put(k, val); err != nil {
				return err
			}
		}
		return tx.Bucket(pendingBucket).Delete(k)
	})
	if err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return nil
}

type permanentError struct {
	err error
}

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as one that retrying will not fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

func key(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func encode(e Entry) ([]byte, error) {
	var val bytes.Buffer
	if err := gob.NewEncoder(&val).Encode(e); err != nil {
		return nil, fmt.Errorf("unable to encode entry %s: %w", e.ID, err)
	}
	return val.Bytes(), nil
}

func decode(v []byte) (Entry, error) {
	var e Entry
	err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e)
	return e, err
}
