package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/tripwise/tripwise/internal/api/models"
)

// AdminTokenHeader carries the shared admin secret.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken guards operator endpoints with a static shared secret.
// An empty token rejects every request.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminTokenHeader)
			switch {
			case token == "":
				writeUnauthorized(w, r, "admin endpoints are disabled")
				return
			case got == "":
				writeUnauthorized(w, r, "missing admin token")
				return
			case subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1:
				writeUnauthorized(w, r, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewProblem(http.StatusUnauthorized, traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}
