package middleware

import (
	"net/http"

	"pigeon-auction/pkg/logger"
)

const (
	allowMethods = "GET, POST, DELETE, OPTIONS"
	allowHeaders = "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With"
)

// CORS is the plain net/http variant used by the realtime gateway router.
// The echo server uses echo's own CORS middleware.
func CORS(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				log.Debug("Handling CORS preflight", "path", r.URL.Path, "origin", r.Header.Get("Origin"))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
