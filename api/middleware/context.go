package middleware

import (
	"context"

	"github.com/angelmondragon/farmlink-backend/internal/authz"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

type actorKey struct{}

// WithActor stores the authenticated caller on ctx.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller stored by Auth. ok is false for
// anonymous requests.
func ActorFromContext(ctx context.Context) (authz.Actor, bool) {
	if ctx == nil {
		return authz.Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(authz.Actor)
	return actor, ok
}

// RequestActor is ActorFromContext for handlers that must reject anonymous callers.
func RequestActor(ctx context.Context) (authz.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return authz.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return actor, nil
}
