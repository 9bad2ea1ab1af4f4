package middleware

import (
	"net/http"

	"github.com/straye-as/purchasing-api/internal/domain"
)

// Locale stores the display locale in the request context. The locale query
// parameter takes precedence over Accept-Language.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("locale")
		if raw == "" {
			raw = r.Header.Get("Accept-Language")
		}
		locale := domain.LocaleTurkish
		if raw != "" {
			locale = domain.ParseLocale(raw)
		}
		w.Header().Set("Content-Language", string(locale))
		next.ServeHTTP(w, r.WithContext(domain.ContextWithLocale(r.Context(), locale)))
	})
}
