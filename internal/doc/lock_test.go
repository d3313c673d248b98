package doc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docsmith/docsmith/internal/doc"
	"github.com/docsmith/docsmith/internal/doc/repository"
	"github.com/docsmith/docsmith/internal/permission"
)

func newLockFixture(t *testing.T) (*doc.Locker, *repository.Memory, doc.Document) {
	t.Helper()
	store := repository.NewMemory()
	locker := doc.NewLocker(store, permission.New(), 0) // default 30s window

	d := doc.Document{"_id": "d1", "type": "article", "slug": "locked-doc", "title": "Locked Doc"}
	require.NoError(t, store.InsertOne(context.Background(), d))
	return locker, store, d
}

func TestLockMutualExclusion(t *testing.T) {
	locker, _, d := newLockFixture(t)
	alice := editorCtx("alice")
	bob := editorCtx("bob")

	require.NoError(t, locker.Lock(alice, d, "session-a", doc.LockOptions{}))

	// a competing session is told who holds the lock
	err := locker.Lock(bob, doc.Document{"_id": "d1"}, "session-b", doc.LockOptions{})
	var locked *doc.LockedError
	require.ErrorAs(t, err, &locked)
	require.False(t, locked.Self)
	require.Equal(t, "alice", locked.Username)
	require.Equal(t, doc.KindLocked, doc.KindOf(err))

	// the holder's own session refreshes freely
	require.NoError(t, locker.Lock(alice, d, "session-a", doc.LockOptions{}))
}

func TestLockSameUserDifferentSession(t *testing.T) {
	locker, _, d := newLockFixture(t)
	alice := editorCtx("alice")

	require.NoError(t, locker.Lock(alice, d, "tab-one", doc.LockOptions{}))

	err := locker.Lock(alice, doc.Document{"_id": "d1"}, "tab-two", doc.LockOptions{})
	var locked *doc.LockedError
	require.ErrorAs(t, err, &locked)
	require.True(t, locked.Self)
}

func TestLockExpiration(t *testing.T) {
	locker, store, d := newLockFixture(t)
	alice := editorCtx("alice")
	bob := editorCtx("bob")

	require.NoError(t, locker.Lock(alice, d, "session-a", doc.LockOptions{}))

	// age alice's lock past the window; expiry is computed, not stored
	stale := time.Now().UTC().Add(-time.Minute)
	_, err := store.UpdateOne(context.Background(),
		map[string]any{"_id": "d1"},
		map[string]any{"$set": map[string]any{"advisoryLock.updatedAt": stale}})
	require.NoError(t, err)

	require.NoError(t, locker.Lock(bob, doc.Document{"_id": "d1"}, "session-b", doc.LockOptions{}))
}

func TestLockForce(t *testing.T) {
	locker, _, d := newLockFixture(t)

	require.NoError(t, locker.Lock(editorCtx("alice"), d, "session-a", doc.LockOptions{}))
	require.NoError(t, locker.Lock(editorCtx("bob"), doc.Document{"_id": "d1"}, "session-b", doc.LockOptions{Force: true}))
}

func TestLockUpdatesInMemoryState(t *testing.T) {
	locker, _, d := newLockFixture(t)

	require.NoError(t, locker.Lock(editorCtx("alice"), d, "session-a", doc.LockOptions{}))

	held := d.Lock()
	require.NotNil(t, held)
	require.Equal(t, "session-a", held.ID)
	require.Equal(t, "alice", held.Username)
}

func TestLockPermissionDenied(t *testing.T) {
	locker, _, d := newLockFixture(t)

	err := locker.Lock(viewerCtx("vic"), d, "session-v", doc.LockOptions{})
	require.Equal(t, doc.KindForbidden, doc.KindOf(err))
}

func TestLockNotFound(t *testing.T) {
	locker, _, _ := newLockFixture(t)

	err := locker.Lock(editorCtx("alice"), doc.Document{"_id": "missing"}, "session-a", doc.LockOptions{})
	require.Equal(t, doc.KindNotFound, doc.KindOf(err))
}

func TestLockRequiresActor(t *testing.T) {
	locker, _, d := newLockFixture(t)

	err := locker.Lock(context.Background(), d, "session-a", doc.LockOptions{})
	require.Equal(t, doc.KindInternalMisuse, doc.KindOf(err))

	err = locker.Unlock(context.Background(), d, "session-a")
	require.Equal(t, doc.KindInternalMisuse, doc.KindOf(err))
}

func TestUnlockIdempotence(t *testing.T) {
	locker, store, d := newLockFixture(t)
	alice := editorCtx("alice")
	bob := editorCtx("bob")

	require.NoError(t, locker.Lock(alice, d, "session-a", doc.LockOptions{}))

	// a mismatched token is a no-op, never an error, but the caller's
	// in-memory copy is cleared regardless
	other := doc.Document{"_id": "d1", "advisoryLock": map[string]any{"_id": "stale"}}
	require.NoError(t, locker.Unlock(bob, other, "session-b"))
	require.NotContains(t, other, "advisoryLock")

	stored, err := store.FindOne(context.Background(), map[string]any{"_id": "d1"})
	require.NoError(t, err)
	require.NotNil(t, stored.Lock(), "mismatched unlock must not release the lock")

	// the matching token releases it
	require.NoError(t, locker.Unlock(alice, d, "session-a"))
	stored, err = store.FindOne(context.Background(), map[string]any{"_id": "d1"})
	require.NoError(t, err)
	require.Nil(t, stored.Lock())

	// unlocking an already-unlocked document is likewise a no-op
	require.NoError(t, locker.Unlock(alice, d, "session-a"))
}

func TestLockRefreshExtendsWindow(t *testing.T) {
	store := repository.NewMemory()
	locker := doc.NewLocker(store, permission.New(), 2*time.Second)
	d := doc.Document{"_id": "d2", "type": "article", "slug": "refresh-doc"}
	require.NoError(t, store.InsertOne(context.Background(), d))
	alice := editorCtx("alice")

	require.NoError(t, locker.Lock(alice, d, "session-a", doc.LockOptions{}))
	firstStamp := d.Lock().UpdatedAt

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, locker.Lock(alice, d, "session-a", doc.LockOptions{}))
	require.True(t, d.Lock().UpdatedAt.After(firstStamp))
}

// criteriaPerms scopes edits with a caller-provided filter, the way a richer
// permission collaborator would.
type criteriaPerms struct{ crit map[string]any }

func (p criteriaPerms) Can(ctx context.Context, action string, d doc.Document) bool { return true }
func (p criteriaPerms) Criteria(ctx context.Context, action string) map[string]any  { return p.crit }

func TestLockCriteriaCannotWidenMatch(t *testing.T) {
	store := repository.NewMemory()
	// criteria reusing a key the locker itself sets must narrow the match,
	// never replace the document id clause
	perms := criteriaPerms{crit: map[string]any{"_id": map[string]any{"$exists": true}}}
	locker := doc.NewLocker(store, perms, 0)

	first := doc.Document{"_id": "a1", "type": "article", "slug": "first"}
	second := doc.Document{"_id": "b1", "type": "article", "slug": "second"}
	require.NoError(t, store.InsertOne(context.Background(), first))
	require.NoError(t, store.InsertOne(context.Background(), second))

	require.NoError(t, locker.Lock(editorCtx("alice"), second, "session-b", doc.LockOptions{}))

	stored, err := store.FindOne(context.Background(), map[string]any{"_id": "b1"})
	require.NoError(t, err)
	require.NotNil(t, stored.Lock())

	other, err := store.FindOne(context.Background(), map[string]any{"_id": "a1"})
	require.NoError(t, err)
	require.Nil(t, other.Lock(), "only the requested document may be locked")
}
