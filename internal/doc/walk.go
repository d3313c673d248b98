package doc

import (
	"sort"
	"strconv"
	"strings"
)

// Action is a visitor's verdict on the property it was shown.
type Action int

const (
	// Keep leaves the property in place.
	Keep Action = iota
	// Drop marks the property for removal. Removals are collected per
	// container and applied only after the full sibling scan, because
	// mutating a container mid-iteration is unsafe.
	Drop
)

// Visitor is invoked for every enumerable property of the structure, depth
// first. parent is the containing map or slice, key is the property name (or
// the decimal index for slice elements), path is the dot-separated location
// from the root, and ancestors lists the enclosing containers outermost
// first.
type Visitor func(parent any, key string, value any, path string, ancestors []any) Action

// restrictedBackupField holds content a permission-limited save was not
// allowed to touch, stashed so it can be restored verbatim afterwards. The
// walker never descends into it or visits it.
const restrictedBackupField = "originalRestrictedContent"

// Walk visits every property of d depth-first and applies the visitor's drop
// verdicts. Map keys are visited in sorted order so traversal (and therefore
// id assignment) is deterministic.
func Walk(d Document, visit Visitor) {
	walkMap(map[string]any(d), "", nil, visit)
}

func walkMap(m map[string]any, prefix string, ancestors []any, visit Visitor) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dropped []string
	for _, k := range keys {
		path := joinPath(prefix, k)
		if path == restrictedBackupField || strings.HasPrefix(path, restrictedBackupField+".") {
			continue
		}
		v := m[k]
		if visit(m, k, v, path, ancestors) == Drop {
			dropped = append(dropped, k)
			continue
		}
		walkValue(v, path, append(ancestors, m), visit)
	}
	for _, k := range dropped {
		delete(m, k)
	}
}

func walkSlice(s []any, prefix string, ancestors []any, visit Visitor) []any {
	var dropped []int
	for i, v := range s {
		path := joinPath(prefix, strconv.Itoa(i))
		if visit(s, strconv.Itoa(i), v, path, ancestors) == Drop {
			dropped = append(dropped, i)
			continue
		}
		walkValue(v, path, append(ancestors, s), visit)
	}
	if len(dropped) == 0 {
		return s
	}
	out := s[:0]
	di := 0
	for i, v := range s {
		if di < len(dropped) && dropped[di] == i {
			di++
			continue
		}
		out = append(out, v)
	}
	return out
}

func walkValue(v any, path string, ancestors []any, visit Visitor) {
	switch t := v.(type) {
	case map[string]any:
		walkMap(t, path, ancestors, visit)
	case Document:
		walkMap(map[string]any(t), path, ancestors, visit)
	case []any:
		pruned := walkSlice(t, path, ancestors, visit)
		if len(pruned) != len(t) {
			// the container shrank; write it back through the parent
			if len(ancestors) > 0 {
				replaceInParent(ancestors[len(ancestors)-1], path, pruned)
			}
		}
	}
}

func replaceInParent(parent any, path string, v any) {
	key := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		key = path[i+1:]
	}
	switch p := parent.(type) {
	case map[string]any:
		p[key] = v
	case []any:
		if idx, err := strconv.Atoi(key); err == nil && idx >= 0 && idx < len(p) {
			p[idx] = v
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
