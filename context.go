package estate

import "context"

type ctxKey string

const (
	ctxKeyIdentity ctxKey = "estate_identity"
	ctxKeyUserType ctxKey = "estate_user_type"
)

// WithIdentity stores the resolved identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFromContext extracts the resolved identity from the context.
func IdentityFromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(ctxKeyIdentity).(*Identity)
	return v
}

// WithUserType stores the account role in the context.
func WithUserType(ctx context.Context, ut UserType) context.Context {
	return context.WithValue(ctx, ctxKeyUserType, ut)
}

// UserTypeFromContext extracts the account role from the context.
func UserTypeFromContext(ctx context.Context) UserType {
	v, _ := ctx.Value(ctxKeyUserType).(UserType)
	return v
}
