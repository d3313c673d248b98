package doc

import (
	"context"
	"errors"
	"time"

	"github.com/docsmith/docsmith/internal/actor"
	"github.com/docsmith/docsmith/pkg/logger"
	"github.com/docsmith/docsmith/pkg/metrics"
)

var lockLog = logger.For("lock")

// DefaultLockTimeout is how long an advisory lock stays authoritative
// without a refresh.
const DefaultLockTimeout = 30 * time.Second

// Locker implements the optimistic advisory-locking protocol: a cooperative
// editor-of-record marker embedded in the document itself, acquired with a
// single conditional update so the eligibility check and the write cannot
// race each other. It is advisory only: a caller that never locks can still
// write.
type Locker struct {
	store   Store
	perms   Permissions
	timeout time.Duration
}

func NewLocker(store Store, perms Permissions, timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Locker{store: store, perms: perms, timeout: timeout}
}

// LockOptions adjusts acquisition. Force takes the lock unconditionally,
// for "take over anyway" flows after the UI has warned the editor.
type LockOptions struct {
	Force bool
}

// Lock acquires or refreshes the advisory lock on d for the editing session
// identified by contextToken. Without Force it succeeds only when no lock
// exists, the existing lock has expired, or the existing lock belongs to the
// same session. The conditional write is additionally scoped by the edit
// permission criteria, so an editor without edit rights can never acquire a
// lock. On success d's in-memory advisoryLock field matches what was
// written, so the caller can chain a full Update without losing it.
//
// When the conditional write matches nothing, the failure is classified by
// re-reading the document. The lock state can change between the failed
// write and that read, so the classification is best-effort diagnostics,
// not a guarantee.
func (l *Locker) Lock(ctx context.Context, d Document, contextToken string, opts LockOptions) error {
	a := actor.FromContext(ctx)
	if a == nil {
		lockLog.Errorf("Lock called without an actor on the context (doc %s)", d.ID())
		return Errorf(KindInternalMisuse, "lock requires a request context carrying the acting editor")
	}
	if d.ID() == "" {
		return Errorf(KindInvalid, "lock requires a document with an _id")
	}
	if contextToken == "" {
		return Errorf(KindInvalid, "lock requires a context token")
	}

	now := time.Now().UTC()
	filter := map[string]any{FieldID: d.ID()}
	if !opts.Force {
		filter["$or"] = []any{
			map[string]any{FieldAdvisoryLock: map[string]any{"$exists": false}},
			map[string]any{FieldAdvisoryLock + ".updatedAt": map[string]any{"$lt": now.Add(-l.timeout)}},
			map[string]any{FieldAdvisoryLock + "._id": contextToken},
		}
	}
	// criteria are combined with $and so a criteria key can never replace
	// the id or eligibility clauses of the acquisition filter
	if crit := l.perms.Criteria(ctx, ActionEdit); len(crit) > 0 {
		filter = map[string]any{"$and": []any{filter, crit}}
	}

	lock := map[string]any{
		"_id":       contextToken,
		"username":  a.Username,
		"title":     a.Title,
		"updatedAt": now,
	}
	matched, err := l.store.UpdateOne(ctx, filter, map[string]any{
		"$set": map[string]any{FieldAdvisoryLock: lock},
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		metrics.LockConflicts.Inc()
		return l.classifyFailure(ctx, d.ID(), a)
	}
	d[FieldAdvisoryLock] = lock
	metrics.LocksAcquired.Inc()
	return nil
}

func (l *Locker) classifyFailure(ctx context.Context, id string, a *actor.Actor) error {
	fresh, err := l.store.FindOne(ctx, map[string]any{FieldID: id})
	if errors.Is(err, ErrNoDocument) {
		return Errorf(KindNotFound, "document %s not found", id)
	}
	if err != nil {
		return err
	}
	held := fresh.Lock()
	if held == nil {
		// the document exists and nothing holds it, so the conditional
		// write can only have been rejected by the permission criteria
		return Errorf(KindForbidden, "not permitted to edit document %s", id)
	}
	if held.Username == a.Username {
		return &LockedError{Self: true}
	}
	return &LockedError{Username: held.Username, Title: held.Title}
}

// Unlock releases the lock on d if (and only if) the stored lock belongs to
// contextToken. A token that no longer matches is not an error: the lock was
// already released or superseded, and the caller ends up not holding it
// either way. The in-memory field is always cleared.
func (l *Locker) Unlock(ctx context.Context, d Document, contextToken string) error {
	a := actor.FromContext(ctx)
	if a == nil {
		lockLog.Errorf("Unlock called without an actor on the context (doc %s)", d.ID())
		return Errorf(KindInternalMisuse, "unlock requires a request context carrying the acting editor")
	}
	if d.ID() == "" {
		return Errorf(KindInvalid, "unlock requires a document with an _id")
	}
	if contextToken == "" {
		return Errorf(KindInvalid, "unlock requires a context token")
	}
	_, err := l.store.UpdateOne(ctx,
		map[string]any{FieldID: d.ID(), FieldAdvisoryLock + "._id": contextToken},
		map[string]any{"$unset": map[string]any{FieldAdvisoryLock: ""}},
	)
	delete(d, FieldAdvisoryLock)
	return err
}
