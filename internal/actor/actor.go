package actor

import "context"

// Actor is the authenticated editor acting on a request. Lock attribution and
// permission checks read it from the request context; HTTP middleware is
// responsible for putting it there.
type Actor struct {
	Username string `json:"username"`
	Title    string `json:"title"`
	Role     string `json:"role"`
}

type ctxKey struct{}

// WithActor returns a context carrying a.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the acting editor, or nil when the request is
// unauthenticated (or the caller forgot to attach one).
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(ctxKey{}).(*Actor)
	return a
}
