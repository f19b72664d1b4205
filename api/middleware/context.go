package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/enums"
)

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxActorType contextKey = "actor_type"
)

// ActorIDFromContext returns the authenticated account id, or uuid.Nil.
func ActorIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxActorID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// ActorTypeFromContext returns the authenticated account type, or "".
func ActorTypeFromContext(ctx context.Context) enums.UserType {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorType).(enums.UserType); ok {
		return v
	}
	return ""
}

// WithActor injects the actor identity into the context.
func WithActor(ctx context.Context, id uuid.UUID, userType enums.UserType) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, id)
	return context.WithValue(ctx, ctxActorType, userType)
}
