package shared

import "context"

type sessionIDContextKey struct{}

type actorIDContextKey struct{}

// ContextWithSessionID stores the current session identifier in context so
// authorization checks can extend the session activity window implicitly.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey{}, id)
}

// SessionIDFromContext extracts the session identifier, if any.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey{}).(string)
	return id
}

// ContextWithActorID stores the acting administrator's ID in context.
func ContextWithActorID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorIDContextKey{}, id)
}

// ActorIDFromContext extracts the acting administrator's ID. The second
// return reports whether an actor was attached at all.
func ActorIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorIDContextKey{}).(int64)
	return id, ok
}
