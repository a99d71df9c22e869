package shared

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fieldline/fieldline/internal/platform/httpx"
)

// Headers forwarded by the gateway after it authenticates the caller.
const (
	HeaderAccountID = "X-Account-ID"
	HeaderUserID    = "X-User-ID"
)

// PrincipalMiddleware resolves the caller from gateway headers and rejects
// requests that carry none.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, err := uuid.Parse(r.Header.Get(HeaderAccountID))
		if err != nil || accountID == uuid.Nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid account identity")
			return
		}
		userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid user identity")
			return
		}
		ctx := ContextWithPrincipal(r.Context(), Principal{AccountID: accountID, UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePrincipal returns the caller or writes a 401 response.
func RequirePrincipal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return Principal{}, false
	}
	return p, true
}
