// Package security holds the acting user id used for audit stamps and the
// CEL read policy of the forecast report.
package security

import "context"

type userIDKey struct{}

// WithUserID sets the id stamped into CreatedBy and UpdatedBy.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns "" outside a request, so documents written by the
// worker carry no author.
func GetUserID(ctx context.Context) string {
	uid, _ := ctx.Value(userIDKey{}).(string)
	return uid
}
