package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/alihaidary/souqna-backend/api/responses"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
)

// Limiter is the slice of the redis client the rate limiter needs.
type Limiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps authenticated traffic per user with a fixed window. The
// limiter failing open is deliberate: redis trouble should not take the
// API down with it.
func RateLimit(limiter Limiter, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			scope := UserIDFromContext(r.Context())
			if scope == "" {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				scope = "ip:" + host
			}

			allowed, count, err := limiter.FixedWindowAllow(r.Context(), scope, limit, window)
			if err != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "rate limit check failed")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				err := pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests").
					WithDetails(map[string]any{"count": count})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
