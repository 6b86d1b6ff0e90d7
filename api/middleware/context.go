package middleware

import "context"

type identityKey struct{}

// Identity is the authenticated staff member behind a request.
type Identity struct {
	UserID string
	Role   string
	// Actor is the display name written to pick logs and activity entries.
	Actor string
}

func WithIdentity(ctx context.Context, userID, role, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, Role: role, Actor: actor})
}

// IdentityFromContext reports false for unauthenticated requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

func ActorFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Actor
}
