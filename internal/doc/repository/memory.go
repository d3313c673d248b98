package repository

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docsmith/docsmith/internal/doc"
)

// Memory implements doc.Store in process memory. It enforces the same unique
// indexes a Mongo collection would and interprets the operator subset the
// engine emits ($or, $exists, $lt, $set, $unset, dotted paths), so the
// engine and lock tests run against it unchanged. Also handy for local dev
// without a database.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]doc.Document
	unique []string
}

func NewMemory() *Memory {
	m := &Memory{docs: make(map[string]doc.Document)}
	_ = m.CreateIndex(context.Background(), map[string]any{"slug": 1}, true)
	return m
}

func (m *Memory) CreateIndex(ctx context.Context, keys map[string]any, unique bool) error {
	if !unique {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range keys {
		m.unique = append(m.unique, k)
	}
	return nil
}

func (m *Memory) InsertOne(ctx context.Context, d doc.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := d.ID()
	if id == "" {
		return fmt.Errorf("insert requires an _id")
	}
	if _, exists := m.docs[id]; exists {
		return &doc.UniqueError{Index: "_id", Err: fmt.Errorf("duplicate _id %s", id)}
	}
	if err := m.checkUnique(d, id); err != nil {
		return err
	}
	m.docs[id] = d.Clone()
	return nil
}

func (m *Memory) ReplaceOne(ctx context.Context, filter map[string]any, d doc.Document) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.firstMatch(filter)
	if !ok {
		return 0, nil
	}
	if err := m.checkUnique(d, id); err != nil {
		return 0, err
	}
	m.docs[id] = d.Clone()
	return 1, nil
}

func (m *Memory) UpdateOne(ctx context.Context, filter map[string]any, update map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.firstMatch(filter)
	if !ok {
		return 0, nil
	}
	target := m.docs[id]
	if set, ok := update["$set"].(map[string]any); ok {
		for path, v := range set {
			setDotted(map[string]any(target), path, cloneAny(v))
		}
	}
	if unset, ok := update["$unset"].(map[string]any); ok {
		for path := range unset {
			unsetDotted(map[string]any(target), path)
		}
	}
	return 1, nil
}

func (m *Memory) FindOne(ctx context.Context, filter map[string]any) (doc.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.firstMatch(filter)
	if !ok {
		return nil, doc.ErrNoDocument
	}
	return m.docs[id].Clone(), nil
}

func (m *Memory) checkUnique(d doc.Document, selfID string) error {
	for _, field := range m.unique {
		v, found := getDotted(map[string]any(d), field)
		if !found || v == nil {
			continue
		}
		for id, other := range m.docs {
			if id == selfID {
				continue
			}
			ov, ofound := getDotted(map[string]any(other), field)
			if ofound && valueEqual(ov, v) {
				return &doc.UniqueError{Index: field, Err: fmt.Errorf("duplicate value %v", v)}
			}
		}
	}
	return nil
}

// firstMatch scans in sorted-id order so outcomes are deterministic.
func (m *Memory) firstMatch(filter map[string]any) (string, bool) {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if matchFilter(map[string]any(m.docs[id]), filter) {
			return id, true
		}
	}
	return "", false
}

func matchFilter(d map[string]any, filter map[string]any) bool {
	for k, v := range filter {
		if k == "$and" {
			subs, ok := v.([]any)
			if !ok {
				return false
			}
			for _, s := range subs {
				sub, ok := s.(map[string]any)
				if !ok || !matchFilter(d, sub) {
					return false
				}
			}
			continue
		}
		if k == "$or" {
			alts, ok := v.([]any)
			if !ok {
				return false
			}
			matched := false
			for _, alt := range alts {
				sub, ok := alt.(map[string]any)
				if ok && matchFilter(d, sub) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		if !matchCondition(d, k, v) {
			return false
		}
	}
	return true
}

func matchCondition(d map[string]any, path string, cond any) bool {
	val, found := getDotted(d, path)
	if ops, ok := cond.(map[string]any); ok && hasOperator(ops) {
		for op, arg := range ops {
			switch op {
			case "$exists":
				want, _ := arg.(bool)
				if found != want {
					return false
				}
			case "$lt":
				if !found || !lessThan(val, arg) {
					return false
				}
			default:
				return false
			}
		}
		return true
	}
	return found && valueEqual(val, cond)
}

func hasOperator(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func lessThan(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Before(bt)
		}
	}
	switch av := a.(type) {
	case int:
		bv, ok := b.(int)
		return ok && av < bv
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	}
	return false
}

func valueEqual(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

func getDotted(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		var node map[string]any
		switch t := cur.(type) {
		case map[string]any:
			node = t
		case doc.Document:
			node = map[string]any(t)
		default:
			return nil, false
		}
		v, ok := node[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func setDotted(m map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func unsetDotted(m map[string]any, path string) {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneAny(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneAny(val)
		}
		return out
	default:
		return v
	}
}
