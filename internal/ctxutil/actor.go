// Package ctxutil provides context utilities that can be safely imported
// anywhere. It has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// ActorKey is the context key for the acting identity: the operator
// resolving an escalation, or the agent role reporting a callback.
type ActorKey struct{}

// WithActor returns a context with the actor embedded.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actor)
}

// ActorFromContext returns the actor from context, or empty string.
func ActorFromContext(ctx context.Context) string {
	if v := ctx.Value(ActorKey{}); v != nil {
		return v.(string)
	}
	return ""
}
