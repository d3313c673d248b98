package doc

import (
	"context"
	"errors"
	"fmt"
)

// Store is the contract the engine requires from the document database:
// schema-free persistence with atomic single-document writes, indexed lookup,
// and typed unique-constraint signaling. Filters and update specs use the
// Mongo operator vocabulary as maps; the memory adapter interprets the subset
// the engine emits.
type Store interface {
	InsertOne(ctx context.Context, d Document) error
	ReplaceOne(ctx context.Context, filter map[string]any, d Document) (matched int64, err error)
	UpdateOne(ctx context.Context, filter map[string]any, update map[string]any) (matched int64, err error)
	FindOne(ctx context.Context, filter map[string]any) (Document, error)
	CreateIndex(ctx context.Context, keys map[string]any, unique bool) error
}

// ErrNoDocument is returned by FindOne when the filter matched nothing.
var ErrNoDocument = errors.New("no matching document")

// UniqueError signals a unique-index violation. Adapters wrap the driver
// error so the retry loop can classify it without string matching.
type UniqueError struct {
	Index string
	Err   error
}

func (e *UniqueError) Error() string {
	return fmt.Sprintf("unique constraint violated on %s: %v", e.Index, e.Err)
}

func (e *UniqueError) Unwrap() error { return e.Err }

// IsUniqueViolation reports whether err is (or wraps) a unique-index
// violation from the store.
func IsUniqueViolation(err error) bool {
	var ue *UniqueError
	return errors.As(err, &ue)
}
