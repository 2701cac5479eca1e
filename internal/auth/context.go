package auth

import "context"

type ctxKey string

const actorKey ctxKey = "actor_id"

// WithActorID tags the context with the user or system identity performing the
// mutation. Movements record it as created_by.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorID returns the identity stored in the context, or "" when the caller is
// anonymous (e.g. an internal sweep).
func ActorID(ctx context.Context) string {
	if val, ok := ctx.Value(actorKey).(string); ok {
		return val
	}
	return ""
}
