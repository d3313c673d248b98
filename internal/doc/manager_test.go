package doc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyPatchDotPaths(t *testing.T) {
	m := NewBaseManager("article")
	d := Document{"title": "old", "meta": map[string]any{"kept": true}}

	err := m.ApplyPatch(context.Background(), d, map[string]any{
		"title":        "new",
		"meta.author":  "sam",
		"fresh.nested": 7,
	})
	require.NoError(t, err)

	require.Equal(t, "new", d["title"])
	meta := d["meta"].(map[string]any)
	require.Equal(t, "sam", meta["author"])
	require.Equal(t, true, meta["kept"])
	require.Equal(t, 7, d["fresh"].(map[string]any)["nested"])
}

func TestApplyPatchNilDeletes(t *testing.T) {
	m := NewBaseManager("article")
	d := Document{"gone": "soon", "stays": 1}

	require.NoError(t, m.ApplyPatch(context.Background(), d, map[string]any{"gone": nil}))
	require.NotContains(t, d, "gone")
	require.Contains(t, d, "stays")
}

func TestApplyPatchRejectsMalformedPath(t *testing.T) {
	m := NewBaseManager("article")
	err := m.ApplyPatch(context.Background(), Document{}, map[string]any{"a..b": 1})
	require.Error(t, err)
	require.Equal(t, KindInvalid, KindOf(err))
}

func TestPrepareRelationshipsForStorage(t *testing.T) {
	m := NewBaseManager("article")
	d := Document{
		"_id":       "a1",
		"authorIds": []any{"u1"},
		"_author":   map[string]any{"_id": "u1", "title": "Sam"},
		"body": map[string]any{
			"items": []any{
				map[string]any{"_id": "w1", "type": "text", "_edit": true},
			},
		},
	}

	require.NoError(t, m.PrepareRelationshipsForStorage(context.Background(), d))

	require.Equal(t, "a1", d["_id"])
	require.NotContains(t, d, "_author")
	require.Contains(t, d, "authorIds")
	item := d["body"].(map[string]any)["items"].([]any)[0].(map[string]any)
	require.Equal(t, "w1", item["_id"])
	require.NotContains(t, item, "_edit")
}

func TestFindScopesToType(t *testing.T) {
	m := NewBaseManager("article")
	f := m.Find(context.Background(), map[string]any{"trash": false})
	require.Equal(t, "article", f["type"])
	require.Equal(t, false, f["trash"])
}
