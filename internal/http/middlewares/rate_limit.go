package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/rate"
)

// WithRateLimit limita por IP y bucket ("sms", "oob"). Con limiter nil no
// hace nada. Si el backend falla deja pasar el request.
func WithRateLimit(limiter rate.Limiter, bucket string) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), bucket+":"+ClientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable",
					logger.Component("rate"), logger.String("bucket", bucket), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if res.WindowTTL > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.WindowTTL).Unix(), 10))
			}
			if !res.Allowed {
				if secs := int(res.RetryAfter.Seconds()); secs > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				logger.From(r.Context()).Info("rate limited",
					logger.Component("rate"), logger.String("bucket", bucket), logger.ClientIP(ClientIP(r)))
				errors.WriteError(w, errors.ErrTooManyAttemptsTryLater)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
