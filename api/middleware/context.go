package middleware

import "context"

// ctxKey is unexported so no other package can collide with these values.
type ctxKey uint8

const (
	userIDKey ctxKey = iota + 1
	userTypeKey
	accessIDKey
)

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

// UserIDFromContext returns the authenticated user id, or "" for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, userIDKey) }

// UserTypeFromContext returns "buyer" or "shop" as carried in the token.
func UserTypeFromContext(ctx context.Context) string { return stringValue(ctx, userTypeKey) }

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string { return stringValue(ctx, accessIDKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

func WithUserType(ctx context.Context, userType string) context.Context {
	return withString(ctx, userTypeKey, userType)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withString(ctx, accessIDKey, accessID)
}
