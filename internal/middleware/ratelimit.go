package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/havenlist/authcore/internal/httperr"
	"github.com/havenlist/authcore/internal/limiter"
	"github.com/havenlist/authcore/internal/logger"
	"github.com/havenlist/authcore/internal/metrics"
	"github.com/havenlist/authcore/internal/policy"
	"github.com/havenlist/authcore/internal/reliability"
)

// RateLimit admits requests per client under the rate policy matching
// the request path. A failing limiter backend follows the configured
// strategy; the in-process limiter never errors.
func RateLimit(l limiter.Limiter, engine *policy.Engine, strategy reliability.FailureStrategy) Middleware {
	log := logger.Named("ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := engine.Resolve(r.URL.Path)

			res, err := l.Allow(r.Context(), clientKey(r), p.Max, p.Window)
			if err != nil {
				log.Warn("limiter backend error", zap.Error(err))
				if reliability.ShouldAllow(strategy, err) {
					next.ServeHTTP(w, r)
					return
				}
				httperr.Write(w, httperr.ErrInternal)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(p.Max, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))

			if !res.Allowed {
				metrics.RateLimitedTotal.Inc()
				retry := int64(math.Ceil(res.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				httperr.Write(w, httperr.ErrTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller by source address. The limiter runs
// ahead of session auth so unauthenticated floods are rejected before
// any token or store work happens.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
