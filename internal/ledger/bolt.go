package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const (
	// boltFileMode is the file mode for the ledger file (read-write for owner only)
	boltFileMode = 0600
	// outcomesBucket holds entries keyed by event id
	outcomesBucket = "outcomes"
)

// BoltStore keeps entries in an embedded bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the ledger file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, boltFileMode, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(outcomesBucket)); err != nil {
			return fmt.Errorf("ledger: create bucket: %w", err)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// WriteBatch stores entries in one transaction. A later entry for the same
// event id replaces the earlier one.
func (s *BoltStore) WriteBatch(_ context.Context, entries []Entry) (int64, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(outcomesBucket))
		for _, e := range entries {
			v, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("ledger: encode %s: %w", e.EventID, err)
			}
			if err := b.Put([]byte(e.EventID), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

// Get returns the entry for eventID.
func (s *BoltStore) Get(eventID string) (Entry, bool, error) {
	var (
		e     Entry
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(outcomesBucket)).Get([]byte(eventID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	return e, found, err
}

// Unsettled returns entries whose delivery is still unknown.
func (s *BoltStore) Unsettled() ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(outcomesBucket)).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Status == StatusUnknown {
				out = append(out, e)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
