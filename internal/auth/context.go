package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const accountIDKey contextKey = "accountID"

// ContextWithAccountID returns a new context that carries the authenticated
// account scope.
func ContextWithAccountID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, accountIDKey, id)
}

// AccountIDFromContext retrieves the authenticated account scope from the
// context, if any.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(accountIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
