package server

import (
	"log/slog"
	"net/http"
)

// originValidationMiddleware rejects browser requests whose Origin is not allowed; "*" allows any origin
func originValidationMiddleware(allowed []string, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		allowedMap := make(map[string]bool, len(allowed))
		for _, v := range allowed {
			allowedMap[v] = true
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || allowedMap["*"] || allowedMap[origin] {
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("origin rejected", "origin", origin, "path", r.URL.Path)
			http.Error(w, "origin not allowed", http.StatusForbidden)
		})
	}
}
