package doc

import (
	"context"
	"sort"
	"sync"
)

// FieldDescriptor declares a field a manager's type carries. The engine only
// cares about Sortify: when set, every save derives a normalized sort key
// into "<Name>Sortified".
type FieldDescriptor struct {
	Name    string
	Sortify bool
}

// Manager is the type-specific collaborator behind one document type tag. It
// carries the ordered lifecycle handler lists, patch application, and
// relationship flattening; the engine supplies the lifecycle orchestration.
type Manager interface {
	Type() string

	// On appends a handler for the given phase. Registration happens at
	// startup, before traffic; it is not safe to call concurrently with
	// Handlers.
	On(phase Phase, h Handler)
	Handlers(phase Phase) []Handler

	// Find returns the store filter for documents of this type matching
	// criteria, so collaborators can query without knowing the tag.
	Find(ctx context.Context, criteria map[string]any) map[string]any

	// ApplyPatch mutates d in memory according to patch input. It never
	// persists.
	ApplyPatch(ctx context.Context, d Document, patch map[string]any) error

	// PrepareRelationshipsForStorage strips joined relationship data back
	// to storage-safe references before d is written or cached.
	PrepareRelationshipsForStorage(ctx context.Context, d Document) error

	FieldDescriptors() []FieldDescriptor
}

// Registry maps document type tags to managers. It is populated once during
// startup and read-only afterwards; the lock exists for the rare dynamic
// registration in tests.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]Manager
}

func NewRegistry() *Registry {
	return &Registry{managers: make(map[string]Manager)}
}

// Register stores the manager under its type tag. Last registration wins.
func (r *Registry) Register(m Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[m.Type()] = m
}

// Resolve returns the manager for the type tag. Unregistered types are a
// NotFound condition, never a nil dereference.
func (r *Registry) Resolve(typ string) (Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[typ]
	if !ok {
		return nil, Errorf(KindNotFound, "no manager registered for type %q", typ)
	}
	return m, nil
}

// Types returns the registered type tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.managers))
	for t := range r.managers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
