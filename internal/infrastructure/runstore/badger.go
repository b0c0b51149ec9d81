package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"

	"github.com/dgraph-io/badger/v4"
)

var _ output.RunStore = (*Store)(nil)

var (
	ErrNotFound = errors.New("plan record not found")
	ErrClosed   = errors.New("run store is closed")
)

const keyPrefix = "plan/"

type Options struct {
	// Dir holds the badger files. Empty means in-memory.
	Dir        string
	SyncWrites bool
}

// Store journals finished plan runs in badger, one JSON value per plan id.
type Store struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

func Open(opt Options) (*Store, error) {
	opts := badger.DefaultOptions(opt.Dir).
		WithSyncWrites(opt.SyncWrites).
		WithLogger(nil)
	if opt.Dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, rec entity.PlanRecord) error {
	if rec.PlanID == "" {
		return fmt.Errorf("%w: planId", entity.ErrMissingParameter)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode plan record: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(rec.PlanID), data)
	})
}

func (s *Store) Get(ctx context.Context, planID string) (*entity.PlanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var rec entity.PlanRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(planID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, planID)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan record %s: %w", planID, err)
	}
	return &rec, nil
}

// List returns every record, most recently started first.
func (s *Store) List(ctx context.Context) ([]entity.PlanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var records []entity.PlanRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec entity.PlanRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list plan records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func key(planID string) []byte {
	return []byte(keyPrefix + planID)
}
