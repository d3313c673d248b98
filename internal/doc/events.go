package doc

import "context"

// Phase names a point in the document lifecycle. The engine emits phases in
// a fixed order per operation:
//
//	insert: BeforeInsert → BeforeSave → (persist) → AfterInsert → AfterSave → AfterLoad
//	update: BeforeUpdate → BeforeSave → (persist) → AfterUpdate → AfterSave → AfterLoad
//
// FixUniqueError fires between attempts of the uniqueness retry loop.
type Phase int

const (
	BeforeInsert Phase = iota
	BeforeUpdate
	BeforeSave
	AfterInsert
	AfterUpdate
	AfterSave
	AfterLoad
	FixUniqueError
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case BeforeInsert:
		return "beforeInsert"
	case BeforeUpdate:
		return "beforeUpdate"
	case BeforeSave:
		return "beforeSave"
	case AfterInsert:
		return "afterInsert"
	case AfterUpdate:
		return "afterUpdate"
	case AfterSave:
		return "afterSave"
	case AfterLoad:
		return "afterLoad"
	case FixUniqueError:
		return "fixUniqueError"
	}
	return "unknown"
}

// Handler is one lifecycle callback. Handlers may mutate d in place; later
// handlers in the same phase see earlier handlers' mutations, which is why
// emission is strictly sequential.
type Handler func(ctx context.Context, d Document, opts Options) error

// Options is the per-operation options bag passed to every handler.
type Options struct {
	// SkipPermissions bypasses the built-in permission handlers. Narrow
	// escape hatch for trusted internal callers (migrations, seeding);
	// request-driven code must never set it.
	SkipPermissions bool
}

// emit invokes every handler m registered for phase, in registration order,
// stopping at (and returning) the first failure.
func emit(ctx context.Context, m Manager, phase Phase, d Document, opts Options) error {
	for _, h := range m.Handlers(phase) {
		if err := h(ctx, d, opts); err != nil {
			return err
		}
	}
	return nil
}
