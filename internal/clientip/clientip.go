package clientip

import (
	"net/http"
	"strings"
)

const (
	DefaultForwardedHeader = "X-Forwarded-For"
	DefaultRealIPHeader    = "X-Real-IP"

	// Unknown is returned when no client address can be derived from headers.
	Unknown = "unknown"
)

// Resolver derives the client address from proxy headers.
type Resolver struct {
	ForwardedHeader string
	RealIPHeader    string
}

func New(forwardedHeader, realIPHeader string) *Resolver {
	if forwardedHeader == "" {
		forwardedHeader = DefaultForwardedHeader
	}
	if realIPHeader == "" {
		realIPHeader = DefaultRealIPHeader
	}
	return &Resolver{ForwardedHeader: forwardedHeader, RealIPHeader: realIPHeader}
}

// Resolve prefers the first forwarded entry, then the real-IP header, else Unknown.
func (res *Resolver) Resolve(r *http.Request) string {
	if xff := r.Header.Get(res.ForwardedHeader); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get(res.RealIPHeader)); ip != "" {
		return ip
	}
	return Unknown
}

// Key joins a route name and client address into a limiter identifier.
func Key(route, ip string) string {
	return route + "-" + ip
}
