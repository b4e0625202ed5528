package i18n

import (
	"net/http"
)

// Middleware extracts the locale from the Accept-Language header and adds
// it to the request context so localized error responses pick it up.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		ctx := WithLocale(r.Context(), locale)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
