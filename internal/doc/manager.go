package doc

import (
	"context"
	"strings"
)

// BaseManager is the default Manager implementation. Type-specific managers
// embed it and override what they need; the engine installs its built-in
// handlers on it at registration time.
type BaseManager struct {
	typ      string
	fields   []FieldDescriptor
	handlers [phaseCount][]Handler
}

func NewBaseManager(typ string, fields ...FieldDescriptor) *BaseManager {
	return &BaseManager{typ: typ, fields: fields}
}

func (m *BaseManager) Type() string { return m.typ }

func (m *BaseManager) On(phase Phase, h Handler) {
	m.handlers[phase] = append(m.handlers[phase], h)
}

func (m *BaseManager) Handlers(phase Phase) []Handler {
	return m.handlers[phase]
}

func (m *BaseManager) FieldDescriptors() []FieldDescriptor { return m.fields }

// Find scopes criteria to this manager's type tag.
func (m *BaseManager) Find(ctx context.Context, criteria map[string]any) map[string]any {
	filter := map[string]any{FieldType: m.typ}
	for k, v := range criteria {
		filter[k] = v
	}
	return filter
}

// ApplyPatch sets each patch entry on d. Keys may be dot paths into nested
// maps; intermediate maps are created as needed. A nil value deletes the key.
func (m *BaseManager) ApplyPatch(ctx context.Context, d Document, patch map[string]any) error {
	for key, v := range patch {
		if err := setPath(map[string]any(d), key, v); err != nil {
			return err
		}
	}
	return nil
}

func setPath(m map[string]any, path string, v any) error {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return Errorf(KindInvalid, "malformed patch path %q", path)
		}
	}
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			if d, isDoc := m[p].(Document); isDoc {
				next = map[string]any(d)
			} else {
				next = make(map[string]any)
				m[p] = next
			}
		}
		m = next
	}
	leaf := parts[len(parts)-1]
	if v == nil {
		delete(m, leaf)
		return nil
	}
	m[leaf] = v
	return nil
}

// PrepareRelationshipsForStorage prunes joined relationship payloads: any
// underscore-prefixed property other than _id is a hydrated join and must
// not reach the store or the preview cache.
func (m *BaseManager) PrepareRelationshipsForStorage(ctx context.Context, d Document) error {
	Walk(d, func(parent any, key string, value any, path string, ancestors []any) Action {
		if strings.HasPrefix(key, "_") && key != FieldID {
			return Drop
		}
		return Keep
	})
	return nil
}
