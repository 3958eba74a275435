package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenHeader is the alternative to an Authorization bearer header.
const TokenHeader = "X-Pulse-Token"

type contextKey string

const producerKey contextKey = "pulse_producer"

// Middleware rejects requests without a valid token with 401 and stores
// the producer name in the request context.
func Middleware(v *TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			producer, err := v.Validate(ExtractToken(r))
			if err != nil {
				logger.Warn("authentication failed",
					"error", err,
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="pulse"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			logger.Debug("producer authenticated", "producer", producer, "path", r.URL.Path)
			ctx := context.WithValue(r.Context(), producerKey, producer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractToken returns the token from the Authorization bearer header or
// X-Pulse-Token, in that order.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}

// ProducerFromContext returns the authenticated producer name.
func ProducerFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(producerKey).(string)
	return p, ok
}
