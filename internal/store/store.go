// Package store defines the document-store port the cycle engine depends on.
// The engine only ever sees this interface; PostgreSQL (gormstore) backs it in
// production and memstore backs it in tests.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
	OpLessOrEqual    Op = "<="
	OpLess           Op = "<"
	OpContains       Op = "contains"
)

// Filter is a (field, operator, value) predicate. Field names use the
// snake_case column/json names of the models package.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter  { return Filter{Field: field, Op: OpEqual, Value: value} }
func Gte(field string, value any) Filter { return Filter{Field: field, Op: OpGreaterOrEqual, Value: value} }
func Lte(field string, value any) Filter { return Filter{Field: field, Op: OpLessOrEqual, Value: value} }
func Lt(field string, value any) Filter  { return Filter{Field: field, Op: OpLess, Value: value} }
func Contains(field string, value any) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}

// Options controls query ordering and pagination.
type Options struct {
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Precondition makes an update conditional on a field holding an expected
// value. This is the compare-and-swap primitive the engine uses to guard
// cycle advancement against concurrent writers.
type Precondition struct {
	Field  string
	Equals any
}

// WriteOp is one operation inside an atomic BatchWrite. Exactly one of
// Create or (ID, Patch) is set.
type WriteOp struct {
	Collection string
	Create     any
	ID         string
	Patch      map[string]any
	Preconds   []Precondition
}

// CreateOp builds a create operation for BatchWrite.
func CreateOp(collection string, doc any) WriteOp {
	return WriteOp{Collection: collection, Create: doc}
}

// UpdateOp builds a partial-update operation for BatchWrite.
func UpdateOp(collection, id string, patch map[string]any, preconds ...Precondition) WriteOp {
	return WriteOp{Collection: collection, ID: id, Patch: patch, Preconds: preconds}
}

// Store is the persistence port. Implementations assign IDs and audit
// timestamps server-side on create/update. BatchWrite is all-or-nothing.
type Store interface {
	// Get loads the document with the given id into dest (a pointer to a
	// model struct). Returns ErrNotFound when absent.
	Get(ctx context.Context, collection, id string, dest any) error

	// Query loads all documents matching every filter into dest (a pointer
	// to a slice of model structs).
	Query(ctx context.Context, collection string, filters []Filter, opts Options, dest any) error

	// Create persists a new document, assigning an ID if empty, and returns
	// the ID. Returns ErrDuplicate when a unique constraint is violated.
	Create(ctx context.Context, collection string, doc any) (string, error)

	// Update applies a partial patch. Returns ErrNotFound when the document
	// is absent and ErrPreconditionFailed when any precondition does not
	// hold.
	Update(ctx context.Context, collection, id string, patch map[string]any, preconds ...Precondition) error

	// BatchWrite applies all operations atomically; if any operation fails,
	// none are applied.
	BatchWrite(ctx context.Context, ops []WriteOp) error
}

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: document not found")

	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("store: unique constraint violated")

	// ErrPreconditionFailed is returned when a conditional write loses a
	// compare-and-swap race.
	ErrPreconditionFailed = errors.New("store: write precondition failed")
)

// UnavailableError wraps infrastructure failures from the backing store.
// Transient failures are retry-safe; permanent ones are not.
type UnavailableError struct {
	Transient bool
	Err       error
}

func (e *UnavailableError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("store unavailable (%s): %v", kind, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retry-safe store failure.
func IsTransient(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue) && ue.Transient
}
