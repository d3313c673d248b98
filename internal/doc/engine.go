package doc

import (
	"context"
	"strings"
	"time"

	gslug "github.com/gosimple/slug"

	"github.com/docsmith/docsmith/pkg/metrics"
)

// Permissions gates inserts, updates, and lock acquisition. Can answers a
// point check; Criteria returns a store filter expressing the same check so
// it can ride along inside an atomic conditional write.
type Permissions interface {
	Can(ctx context.Context, action string, d Document) bool
	Criteria(ctx context.Context, action string) map[string]any
}

// ActionEdit is the permission action the engine checks on every write.
const ActionEdit = "edit"

// Engine orchestrates document persistence: it resolves the manager for a
// document's type, runs the lifecycle pipeline around the store write, and
// funnels every write through the uniqueness retry loop.
type Engine struct {
	registry *Registry
	store    Store
	perms    Permissions
}

func NewEngine(registry *Registry, store Store, perms Permissions) *Engine {
	return &Engine{registry: registry, store: store, perms: perms}
}

func (e *Engine) Registry() *Registry { return e.registry }
func (e *Engine) Store() Store        { return e.store }

// RegisterManager installs the engine's built-in lifecycle handlers on m and
// registers it. Built-ins run before any handlers the caller adds afterwards,
// so type-specific handlers always see a fully defaulted document.
func (e *Engine) RegisterManager(m Manager) {
	m.On(BeforeInsert, e.checkInsertPermission)
	m.On(BeforeInsert, e.applyInsertDefaults)
	m.On(BeforeUpdate, e.checkUpdatePermission)
	m.On(BeforeSave, e.normalizeNestedIDs)
	m.On(BeforeSave, e.sortifyFields(m))
	m.On(BeforeSave, stampUpdatedAt)
	m.On(FixUniqueError, deduplicateSlug)
	e.registry.Register(m)
}

// Insert creates d. The slug is derived from the title when absent; a
// document with neither fails before any persistence attempt.
func (e *Engine) Insert(ctx context.Context, d Document, opts Options) (Document, error) {
	m, err := e.registry.Resolve(d.Type())
	if err != nil {
		return nil, err
	}
	if d.Slug() == "" {
		if d.Title() == "" {
			return nil, Errorf(KindInvalid, "document needs a slug or a title to derive one from")
		}
		d[FieldSlug] = gslug.Make(d.Title())
	}
	if err := emit(ctx, m, BeforeInsert, d, opts); err != nil {
		return nil, err
	}
	if err := emit(ctx, m, BeforeSave, d, opts); err != nil {
		return nil, err
	}
	err = e.retryUntilUnique(ctx, m, d, opts, func() error {
		return e.store.InsertOne(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	metrics.DocumentsSaved.WithLabelValues("insert", d.Type()).Inc()
	for _, phase := range []Phase{AfterInsert, AfterSave, AfterLoad} {
		if err := emit(ctx, m, phase, d, opts); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Update replaces the stored document wholesale. There is no partial-patch
// operation at this layer and no implicit upsert: an _id that matches nothing
// is a NotFound, never a create.
func (e *Engine) Update(ctx context.Context, d Document, opts Options) (Document, error) {
	m, err := e.registry.Resolve(d.Type())
	if err != nil {
		return nil, err
	}
	if d.ID() == "" {
		return nil, Errorf(KindInvalid, "update requires a document with an _id")
	}
	if err := emit(ctx, m, BeforeUpdate, d, opts); err != nil {
		return nil, err
	}
	if err := emit(ctx, m, BeforeSave, d, opts); err != nil {
		return nil, err
	}
	err = e.retryUntilUnique(ctx, m, d, opts, func() error {
		matched, err := e.store.ReplaceOne(ctx, map[string]any{FieldID: d.ID()}, d)
		if err != nil {
			return err
		}
		if matched == 0 {
			return Errorf(KindNotFound, "document %s not found", d.ID())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.DocumentsSaved.WithLabelValues("update", d.Type()).Inc()
	for _, phase := range []Phase{AfterUpdate, AfterSave, AfterLoad} {
		if err := emit(ctx, m, phase, d, opts); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (e *Engine) checkInsertPermission(ctx context.Context, d Document, opts Options) error {
	if opts.SkipPermissions {
		return nil
	}
	if !e.perms.Can(ctx, ActionEdit, d) {
		return Errorf(KindForbidden, "not permitted to insert documents of type %q", d.Type())
	}
	return nil
}

func (e *Engine) checkUpdatePermission(ctx context.Context, d Document, opts Options) error {
	if opts.SkipPermissions {
		return nil
	}
	if !e.perms.Can(ctx, ActionEdit, d) {
		return Errorf(KindForbidden, "not permitted to update document %s", d.ID())
	}
	return nil
}

func (e *Engine) applyInsertDefaults(ctx context.Context, d Document, opts Options) error {
	if d.ID() == "" {
		d[FieldID] = NewID()
	}
	d[FieldMetaType] = MetaTypeDoc
	if _, ok := d[FieldCreatedAt].(time.Time); !ok {
		d[FieldCreatedAt] = time.Now().UTC()
	}
	if _, ok := d[FieldTrash].(bool); !ok {
		d[FieldTrash] = false
	}
	return nil
}

// normalizeNestedIDs assigns an _id to every nested composite item (a typed
// map inside an "items" array) that is missing one.
func (e *Engine) normalizeNestedIDs(ctx context.Context, d Document, opts Options) error {
	Walk(d, func(parent any, key string, value any, path string, ancestors []any) Action {
		if _, inSlice := parent.([]any); !inSlice {
			return Keep
		}
		item, ok := value.(map[string]any)
		if !ok {
			return Keep
		}
		segs := strings.Split(path, ".")
		if len(segs) < 2 || segs[len(segs)-2] != "items" {
			return Keep
		}
		if _, typed := item[FieldType]; !typed {
			return Keep
		}
		if _, has := item[FieldID]; !has {
			item[FieldID] = NewID()
		}
		return Keep
	})
	return nil
}

// sortifyFields derives "<field>Sortified" for every descriptor that asks
// for it, so the store can index a normalized sort key.
func (e *Engine) sortifyFields(m Manager) Handler {
	return func(ctx context.Context, d Document, opts Options) error {
		for _, f := range m.FieldDescriptors() {
			if !f.Sortify {
				continue
			}
			if v, ok := d[f.Name].(string); ok {
				d[f.Name+"Sortified"] = Sortify(v)
			}
		}
		return nil
	}
}

// Sortify normalizes a display string into a sort-friendly key: lowercase,
// punctuation stripped, single spaces.
func Sortify(s string) string {
	return strings.ReplaceAll(gslug.Make(s), "-", " ")
}

func stampUpdatedAt(ctx context.Context, d Document, opts Options) error {
	d[FieldUpdatedAt] = time.Now().UTC()
	return nil
}
