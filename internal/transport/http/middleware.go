package transporthttp

import (
	"crypto/subtle"
	"net/http"

	"github.com/uptrace/bunrouter"
)

// APIKeyAuth checks the X-API-Key header against keys. With no keys, auth
// is bypassed.
func APIKeyAuth(keys []string) bunrouter.MiddlewareFunc {
	if len(keys) == 0 {
		return func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc { return next }
	}
	return func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
		return func(w http.ResponseWriter, req bunrouter.Request) error {
			got := []byte(req.Header.Get("X-API-Key"))
			for _, k := range keys {
				if subtle.ConstantTimeCompare(got, []byte(k)) == 1 {
					return next(w, req)
				}
			}
			WriteProblem(w, Problem{
				Title:  "unauthorized",
				Status: http.StatusUnauthorized,
				Detail: "invalid or missing API key",
			})
			return nil
		}
	}
}
