package membership

import (
	"context"
)

var claimsCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSessionContext stores claims in the given context
func WithSessionContext(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// SessionFromCtx extracts the claims stored by WithSessionContext
func SessionFromCtx(ctx context.Context) (*SessionClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return claims, ok && claims != nil
}

// ActorFromCtx returns the session actor carried by ctx, or SystemActor
// when there is none.
func ActorFromCtx(ctx context.Context) ActorRef {
	if claims, ok := SessionFromCtx(ctx); ok {
		return ActorRef{ID: claims.UserID(), Type: claims.Role()}
	}
	return SystemActor
}
