package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/AlexKimmel/tidegate/internal/ratelimit"
	"github.com/AlexKimmel/tidegate/internal/routing"
)

// Policy resolves a route limit, filling zero fields from def.
func (l *Limit) Policy(def Limit) *ratelimit.Policy {
	if l == nil {
		return nil
	}
	window, maxReq := l.WindowMS, l.Max
	if window <= 0 {
		window = def.WindowMS
	}
	if maxReq <= 0 {
		maxReq = def.Max
	}
	return &ratelimit.Policy{
		Window: time.Duration(window) * time.Millisecond,
		Max:    maxReq,
	}
}

// BuildRouter turns the configured routes into a router, in file order.
func (cfg *Root) BuildRouter() (*routing.Router, error) {
	rr := routing.New()
	for _, rc := range cfg.Routes {
		up, err := url.Parse(rc.Upstream.URL)
		if err != nil {
			return nil, fmt.Errorf("route %s: upstream url: %w", rc.ID, err)
		}
		if up.Scheme == "" || up.Host == "" {
			return nil, fmt.Errorf("route %s: upstream url %q needs scheme and host", rc.ID, rc.Upstream.URL)
		}

		rr.Add(&routing.Route{
			ID:          rc.ID,
			Methods:     routing.Methods(rc.Match.Methods...),
			Prefix:      rc.Match.PathPrefix,
			UpURL:       up,
			Timeout:     time.Duration(rc.Upstream.TimeoutMS) * time.Millisecond,
			RequireAuth: rc.RequireAuth,
			Limit:       rc.Limit.Policy(cfg.Limits.Default),
		})
	}
	return rr, nil
}

// KeyPairs maps API key secrets to key ids, skipping incomplete entries.
func (a Auth) KeyPairs() map[string]string {
	pairs := map[string]string{} // secret -> keyID
	for _, k := range a.Keys {
		if k.Secret != "" && k.ID != "" {
			pairs[k.Secret] = k.ID
		}
	}
	return pairs
}
