package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docsmith/docsmith/internal/doc"
)

// Mongo implements doc.Store on a MongoDB collection. Filters and update
// specs pass straight through, since the engine already speaks the Mongo
// operator vocabulary.
type Mongo struct {
	col *mongo.Collection
}

func NewMongo(ctx context.Context, col *mongo.Collection) (*Mongo, error) {
	m := &Mongo{col: col}
	// slug is globally unique among documents; the engine relies on the
	// store reporting violations of this index.
	if err := m.CreateIndex(ctx, map[string]any{"slug": 1}, true); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mongo) InsertOne(ctx context.Context, d doc.Document) error {
	_, err := m.col.InsertOne(ctx, bson.M(d))
	return m.classify(err)
}

func (m *Mongo) ReplaceOne(ctx context.Context, filter map[string]any, d doc.Document) (int64, error) {
	res, err := m.col.ReplaceOne(ctx, bson.M(filter), bson.M(d))
	if err != nil {
		return 0, m.classify(err)
	}
	return res.MatchedCount, nil
}

func (m *Mongo) UpdateOne(ctx context.Context, filter map[string]any, update map[string]any) (int64, error) {
	res, err := m.col.UpdateOne(ctx, bson.M(filter), bson.M(update))
	if err != nil {
		return 0, m.classify(err)
	}
	return res.MatchedCount, nil
}

func (m *Mongo) FindOne(ctx context.Context, filter map[string]any) (doc.Document, error) {
	var d bson.M
	if err := m.col.FindOne(ctx, bson.M(filter)).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, doc.ErrNoDocument
		}
		return nil, err
	}
	return doc.Document(normalizeMap(d)), nil
}

// The driver decodes sub-documents as primitive.M or primitive.D, arrays as
// primitive.A and timestamps as primitive.DateTime. The core type-switches on
// plain maps, slices and time.Time, so reads are normalized to the same shape
// the memory store hands back.
func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalizeValue(v)
	}
	return out
}

func (m *Mongo) CreateIndex(ctx context.Context, keys map[string]any, unique bool) error {
	spec := bson.D{}
	for k, v := range keys {
		spec = append(spec, bson.E{Key: k, Value: v})
	}
	model := mongo.IndexModel{Keys: spec, Options: options.Index().SetUnique(unique)}
	_, err := m.col.Indexes().CreateOne(ctx, model)
	return err
}

// classify wraps duplicate-key failures in the typed error the retry loop
// tests for; everything else passes through.
func (m *Mongo) classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return &doc.UniqueError{Index: "slug", Err: err}
	}
	return err
}
