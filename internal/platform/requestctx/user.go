// Package requestctx carries authenticated request identity through contexts.
package requestctx

import "context"

// identityKey is the context key for the authenticated identity.
type identityKey struct{}

// identity is the authenticated caller resolved by the accounts middleware.
type identity struct {
	userID string
	role   string
}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	value, _ := ctx.Value(identityKey{}).(identity)
	return value
}

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id := identityFrom(ctx)
	id.userID = userID
	return context.WithValue(ctx, identityKey{}, id)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	return identityFrom(ctx).userID
}

// WithRole stores the authenticated user role in context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id := identityFrom(ctx)
	id.role = role
	return context.WithValue(ctx, identityKey{}, id)
}

// RoleFromContext returns the authenticated user role stored in context.
func RoleFromContext(ctx context.Context) string {
	return identityFrom(ctx).role
}
