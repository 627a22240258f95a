package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/wastetrack/bulk-movements/internal/auth"
)

// AccountHeader carries the caller's resolved account id. Token
// verification happens upstream; by the time a request reaches this
// service the credential has already been exchanged for an account scope.
const AccountHeader = "X-Account-ID"

// AccountScopeMiddleware resolves the account header into the request
// context. Requests without a valid account scope are rejected before any
// handler runs.
func AccountScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, err := uuid.Parse(r.Header.Get(AccountHeader))
		if err != nil || accountID == uuid.Nil {
			http.Error(w, "account scope required", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithAccountID(r.Context(), accountID)))
	})
}
