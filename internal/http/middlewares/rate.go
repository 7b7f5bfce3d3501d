package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	httperrors "github.com/dropDatabas3/federation/internal/http/errors"
	"github.com/dropDatabas3/federation/internal/observability/logger"
	"github.com/dropDatabas3/federation/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// clientIP devuelve la IP del peer. X-Forwarded-For sólo cuenta con trustProxy,
// y en ese caso vale la última entrada: la agrega el proxy propio, las
// anteriores las controla el cliente.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
			parts := strings.Split(xf, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				if ip := strings.TrimSpace(parts[i]); ip != "" {
					return ip
				}
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// IPPathRateKey usa IP del peer + path: cada provider tiene su propio cupo.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r, false) + "|" + r.URL.Path
}

// ProxiedIPPathRateKey es IPPathRateKey para despliegues detrás de un reverse
// proxy propio que agrega X-Forwarded-For.
func ProxiedIPPathRateKey(r *http.Request) string {
	return clientIP(r, true) + "|" + r.URL.Path
}

// WithRateLimit corta con 429 cuando la clave agota su ventana.
// Sin limiter es un no-op; si el limiter falla se deja pasar el request.
func WithRateLimit(l rate.Limiter, key RateKeyFunc) Middleware {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if key == nil {
		key = IPPathRateKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), key(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error",
					logger.Component("middleware.rate"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if res.WindowTTL > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.WindowTTL).Unix(), 10))
			}
			if !res.Allowed {
				secs := int(res.RetryAfter / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httperrors.WriteError(w, httperrors.ErrRateLimitExceeded)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
