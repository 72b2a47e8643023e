// Package context carries the caller and the trace of a request through
// context.Context.
package context

import (
	"context"
	"slices"
)

// UserContext is the authenticated caller, as read from the bearer token.
type UserContext struct {
	UserID      string
	Email       string
	Roles       []string
	Permissions []string
	IsAdmin     bool
}

// Missing returns the permissions in required that u does not hold.
// Admins hold every permission.
func (u *UserContext) Missing(required ...string) []string {
	if u.IsAdmin {
		return nil
	}
	var missing []string
	for _, p := range required {
		if !slices.Contains(u.Permissions, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

type userContextKey struct{}

func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns the caller in ctx, or nil.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns the caller id, or "" outside a request.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}
