// Package memstore is an in-memory implementation of the store port with the
// same semantics as the PostgreSQL-backed gormstore: server-assigned IDs and
// audit timestamps, unique indexes, conditional writes, and atomic batches.
// It backs the engine, ledger, and reminder tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dapoalex/AjoPool/internal/store"
)

// Store is a thread-safe in-memory document store.
type Store struct {
	mu      sync.RWMutex
	data    map[string]map[string]any // collection -> id -> stored struct value
	inserts map[string][]string       // collection -> ids in insertion order
	uniques map[string][][]string     // collection -> unique field sets
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the audit-timestamp clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		data:    make(map[string]map[string]any),
		inserts: make(map[string][]string),
		uniques: make(map[string][][]string),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUniqueIndex registers a unique constraint over the given fields,
// mirroring the unique indexes gormstore migrates into PostgreSQL.
func (s *Store) AddUniqueIndex(collection string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniques[collection] = append(s.uniques[collection], fields)
}

func (s *Store) Get(ctx context.Context, collection, id string, dest any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[collection][id]
	if !ok {
		return store.ErrNotFound
	}
	return copyInto(doc, dest)
}

func (s *Store) Query(ctx context.Context, collection string, filters []store.Filter, opts store.Options, dest any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []any
	for _, id := range s.inserts[collection] {
		doc, ok := s.data[collection][id]
		if !ok {
			continue
		}
		if matchesAll(doc, filters) {
			matched = append(matched, doc)
		}
	}

	if opts.OrderBy != "" {
		field := opts.OrderBy
		sort.SliceStable(matched, func(i, j int) bool {
			a, _ := fieldValue(matched[i], field)
			b, _ := fieldValue(matched[j], field)
			less := compareValues(a, b) < 0
			if opts.Desc {
				return !less
			}
			return less
		})
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[opts.Offset:]
		}
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}

	return copySlice(matched, dest)
}

func (s *Store) Create(ctx context.Context, collection string, doc any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(collection, doc)
}

func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any, preconds ...store.Precondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(collection, id, patch, preconds)
}

func (s *Store) BatchWrite(ctx context.Context, ops []store.WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshotLocked()
	for _, op := range ops {
		var err error
		if op.Create != nil {
			_, err = s.createLocked(op.Collection, op.Create)
		} else {
			err = s.updateLocked(op.Collection, op.ID, op.Patch, op.Preconds)
		}
		if err != nil {
			s.restoreLocked(snapshot)
			return err
		}
	}
	return nil
}

func (s *Store) createLocked(collection string, doc any) (string, error) {
	id, err := ensureID(doc, uuid.NewString)
	if err != nil {
		return "", err
	}
	if _, exists := s.data[collection][id]; exists {
		return "", store.ErrDuplicate
	}

	stamp(doc, s.now(), true)
	stored := cloneValue(doc)

	if err := s.checkUniquesLocked(collection, id, stored); err != nil {
		return "", err
	}

	if s.data[collection] == nil {
		s.data[collection] = make(map[string]any)
	}
	s.data[collection][id] = stored
	s.inserts[collection] = append(s.inserts[collection], id)

	// Reflect assigned audit fields back to the caller's document.
	if err := copyInto(stored, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) updateLocked(collection, id string, patch map[string]any, preconds []store.Precondition) error {
	doc, ok := s.data[collection][id]
	if !ok {
		return store.ErrNotFound
	}

	for _, pre := range preconds {
		got, found := fieldValue(doc, pre.Field)
		if !found || compareValues(got, pre.Equals) != 0 {
			return store.ErrPreconditionFailed
		}
	}

	updated := cloneValue(doc)
	for field, value := range patch {
		if err := setFieldValue(updated, field, value); err != nil {
			return fmt.Errorf("memstore: patch %s.%s: %w", collection, field, err)
		}
	}
	stamp(updated, s.now(), false)

	if err := s.checkUniquesLocked(collection, id, updated); err != nil {
		return err
	}

	s.data[collection][id] = updated
	return nil
}

func (s *Store) checkUniquesLocked(collection, id string, doc any) error {
	for _, fields := range s.uniques[collection] {
		key := uniqueKey(doc, fields)
		for otherID, other := range s.data[collection] {
			if otherID == id {
				continue
			}
			if uniqueKey(other, fields) == key {
				return store.ErrDuplicate
			}
		}
	}
	return nil
}

func uniqueKey(doc any, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v, _ := fieldValue(doc, f)
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, "\x1f")
}

type snapshot struct {
	data    map[string]map[string]any
	inserts map[string][]string
}

func (s *Store) snapshotLocked() snapshot {
	data := make(map[string]map[string]any, len(s.data))
	for coll, docs := range s.data {
		clone := make(map[string]any, len(docs))
		for id, doc := range docs {
			clone[id] = doc
		}
		data[coll] = clone
	}
	inserts := make(map[string][]string, len(s.inserts))
	for coll, ids := range s.inserts {
		inserts[coll] = append([]string(nil), ids...)
	}
	return snapshot{data: data, inserts: inserts}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.data = snap.data
	s.inserts = snap.inserts
}

func matchesAll(doc any, filters []store.Filter) bool {
	for _, f := range filters {
		got, ok := fieldValue(doc, f.Field)
		if !ok {
			return false
		}
		if !matches(got, f.Op, f.Value) {
			return false
		}
	}
	return true
}

func matches(got any, op store.Op, want any) bool {
	switch op {
	case store.OpEqual:
		return compareValues(got, want) == 0
	case store.OpGreaterOrEqual:
		return compareValues(got, want) >= 0
	case store.OpLessOrEqual:
		return compareValues(got, want) <= 0
	case store.OpLess:
		return compareValues(got, want) < 0
	case store.OpContains:
		return strings.Contains(asString(got), asString(want))
	default:
		return false
	}
}
