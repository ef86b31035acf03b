package rest

import "context"

type ctxKeyAuth struct{}

// AuthContext is the caller identity taken from a verified access token.
type AuthContext struct {
	UserID string
	Role   string
	Ver    int64
}

func withAuth(ctx context.Context, a AuthContext) context.Context {
	return context.WithValue(ctx, ctxKeyAuth{}, a)
}

func GetAuth(ctx context.Context) (AuthContext, bool) {
	a, ok := ctx.Value(ctxKeyAuth{}).(AuthContext)
	if !ok || a.UserID == "" {
		return AuthContext{}, false
	}
	return a, true
}
