package doc

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Document is a schemaless record at this layer: field validation belongs to
// the type-specific managers, persistence and lifecycle belong to the engine.
// The map shape is bson.M-compatible so adapters can pass it straight through.
type Document map[string]any

// MetaTypeDoc marks every record written by the engine.
const MetaTypeDoc = "doc"

// Field names the engine owns.
const (
	FieldID           = "_id"
	FieldType         = "type"
	FieldSlug         = "slug"
	FieldTitle        = "title"
	FieldTrash        = "trash"
	FieldMetaType     = "metaType"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
	FieldAdvisoryLock = "advisoryLock"
)

// AdvisoryLock is the embedded editor-of-record marker. ID is the opaque
// context token of the editing session holding the lock; a lock older than
// the configured timeout is treated as absent for acquisition purposes.
type AdvisoryLock struct {
	ID        string    `bson:"_id" json:"_id"`
	Username  string    `bson:"username" json:"username"`
	Title     string    `bson:"title" json:"title"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (d Document) ID() string    { return d.str(FieldID) }
func (d Document) Type() string  { return d.str(FieldType) }
func (d Document) Slug() string  { return d.str(FieldSlug) }
func (d Document) Title() string { return d.str(FieldTitle) }

func (d Document) str(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Lock returns the embedded advisory lock, or nil when unlocked. Adapters may
// hand the sub-record back as a decoded map, so both shapes are accepted.
func (d Document) Lock() *AdvisoryLock {
	switch v := d[FieldAdvisoryLock].(type) {
	case *AdvisoryLock:
		return v
	case AdvisoryLock:
		return &v
	case map[string]any:
		l := &AdvisoryLock{
			ID:       str(v["_id"]),
			Username: str(v["username"]),
			Title:    str(v["title"]),
		}
		if t, ok := v["updatedAt"].(time.Time); ok {
			l.UpdatedAt = t
		}
		return l
	default:
		return nil
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Clone deep-copies the map/slice structure. Scalars (including time.Time and
// embedded structs) are copied by value. Used by the preview cache so patched
// state can never alias the live document.
func (d Document) Clone() Document {
	return cloneValue(map[string]any(d)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// NewID generates an opaque document or session identifier.
func NewID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// rand.Read on supported platforms never fails; fall back to a
		// timestamp so an id is still produced.
		return hex.EncodeToString([]byte(time.Now().Format("20060102T150405.000000000")))
	}
	return hex.EncodeToString(b)
}
