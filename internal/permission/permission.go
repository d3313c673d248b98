package permission

import (
	"context"

	"github.com/docsmith/docsmith/internal/actor"
	"github.com/docsmith/docsmith/internal/doc"
)

// Roles understood by the default rule set. Anything else (including an
// absent actor) is read-only.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Service is the default permission collaborator: a small role check. The
// engine only sees the doc.Permissions interface, so deployments with richer
// rules swap this out wholesale.
type Service struct{}

func New() *Service { return &Service{} }

// Can reports whether the acting editor may perform action on d.
func (s *Service) Can(ctx context.Context, action string, d doc.Document) bool {
	a := actor.FromContext(ctx)
	if a == nil {
		return false
	}
	switch action {
	case doc.ActionEdit:
		return a.Role == RoleAdmin || a.Role == RoleEditor
	default:
		return a.Role == RoleAdmin
	}
}

// Criteria expresses Can as a store filter, so it can be folded into an
// atomic conditional write. An ineligible editor gets a filter that matches
// nothing.
func (s *Service) Criteria(ctx context.Context, action string) map[string]any {
	if s.Can(ctx, action, nil) {
		return map[string]any{}
	}
	return map[string]any{"_id": map[string]any{"$exists": false}}
}
