package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var eventsBucket = []byte("events")

// BoltStore persists the journal to a bbolt file. Records are keyed by
// their big-endian sequence number, so a cursor walks them in order.
type BoltStore struct {
	db     *bolt.DB
	mu     sync.RWMutex
	closed bool
}

// boltRecord is the stored encoding of a Record. Seq lives in the key.
type boltRecord struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   []byte    `json:"payload"`
}

// NewBoltStore opens or creates a journal file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Append implements Store.
func (s *BoltStore) Append(ctx context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := json.Marshal(boltRecord{
		EventID:   rec.EventID,
		Kind:      rec.Kind,
		Source:    rec.Source,
		Timestamp: rec.Timestamp.UTC(),
		Payload:   rec.Payload,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal record: %w", err)
	}

	var seq uint64
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}
	return int64(seq), nil
}

// List implements Store.
func (s *BoltStore) List(ctx context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := uint64(1)
	if q.AfterSeq > 0 {
		start = uint64(q.AfterSeq) + 1
	}

	records := []Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		for k, v := c.Seek(seqKey(start)); k != nil; k, v = c.Next() {
			var stored boltRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("unmarshal record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if q.Kind != "" && stored.Kind != q.Kind {
				continue
			}
			records = append(records, Record{
				Seq:       int64(binary.BigEndian.Uint64(k)),
				EventID:   stored.EventID,
				Kind:      stored.Kind,
				Source:    stored.Source,
				Timestamp: stored.Timestamp,
				Payload:   stored.Payload,
			})
			if q.Limit > 0 && len(records) == q.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// Count implements Store.
func (s *BoltStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(eventsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close implements Store.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
