package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const accessCookieName = "almanac_access"

// RequireAccessCode gates requests behind a shared access code checked
// against a bcrypt hash. The code is taken from the X-Access-Code header or
// the access cookie. An empty hash disables the check entirely, for LAN
// deployments that don't need one.
func RequireAccessCode(codeHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if codeHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			code := r.Header.Get("X-Access-Code")
			if code == "" {
				if cookie, err := r.Cookie(accessCookieName); err == nil {
					code = cookie.Value
				}
			}
			if code == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(codeHash), []byte(code)); err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
