package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/AlexKimmel/tidegate/internal/clientip"
	"github.com/AlexKimmel/tidegate/internal/ratelimit"
	"github.com/AlexKimmel/tidegate/internal/routing"
)

type LimitOptions struct {
	// FailOpen lets requests through when the limiter itself errors.
	FailOpen bool
	Now      func() time.Time

	OnLimited func(routeID string)
	OnError   func(routeID string)
}

// RateLimit throttles routes that carry a limit policy. The limiter key is
// "<route id>-<client ip>", so each route has its own budget per client.
func RateLimit(lim ratelimit.Limiter, ips *clientip.Resolver, opts LimitOptions) Middleware {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if ips == nil {
		ips = clientip.New("", "")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt, ok := routing.RouteFrom(r)
			if !ok || rt == nil || rt.Limit == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := ips.Resolve(r)
			key := clientip.Key(rt.ID, ip)
			now := opts.Now()

			dec, err := lim.Allow(r.Context(), key, *rt.Limit, now)
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).
					Str("route", rt.ID).
					Str("client_ip", ip).
					Bool("fail_open", opts.FailOpen).
					Msg("rate limiter error")
				if opts.OnError != nil {
					opts.OnError(rt.ID)
				}
				if opts.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, r, http.StatusInternalServerError, "rate_limiter_error", "internal rate limiter error")
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(dec.Remaining, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.Reset.Unix(), 10))

			if !dec.Allowed {
				retry := dec.RetryAfter(now)
				h.Set("Retry-After", strconv.FormatInt(retry, 10))

				hlog.FromRequest(r).Warn().
					Str("route", rt.ID).
					Str("client_ip", ip).
					Int64("retry_after", retry).
					Msg("rate limited")
				if opts.OnLimited != nil {
					opts.OnLimited(rt.ID)
				}
				WriteError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
