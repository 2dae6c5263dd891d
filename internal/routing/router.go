package routing

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AlexKimmel/tidegate/internal/ratelimit"
)

type Route struct {
	ID          string
	Methods     map[string]struct{}
	Prefix      string
	UpURL       *url.URL
	Timeout     time.Duration
	RequireAuth bool
	Limit       *ratelimit.Policy // nil means the route is not throttled
}

type Router struct {
	routes []*Route
}

func New() *Router {
	return &Router{}
}

func (r *Router) Add(rt *Route) {
	r.routes = append(r.routes, rt)
}

func (r *Router) Routes() []*Route {
	return r.routes
}

// Match returns the first route, in insertion order, that accepts method and path.
func (r *Router) Match(method string, path string) (*Route, bool) {
	m := strings.ToUpper(method)
	for _, rt := range r.routes {
		if _, ok := rt.Methods[m]; !ok {
			continue
		}
		prefix := strings.TrimSuffix(strings.TrimSpace(rt.Prefix), "/")
		if prefix == "" {
			return rt, true
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return rt, true
		}
	}
	return nil, false
}

// Methods builds a method set from a list, upper-casing each entry.
func Methods(list ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, m := range list {
		out[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
	}
	return out
}

// --- context helpers ---
type ctxKey int

const keyRoute ctxKey = 0

func WithRoute(r *http.Request, rt *Route) *http.Request {
	ctx := context.WithValue(r.Context(), keyRoute, rt)
	return r.WithContext(ctx)
}

func RouteFrom(r *http.Request) (*Route, bool) {
	v := r.Context().Value(keyRoute)
	if v == nil {
		return nil, false
	}
	rt, ok := v.(*Route)
	return rt, ok
}
