package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/metrics"
}

type Limit struct {
	WindowMS int `yaml:"window_ms"`
	Max      int `yaml:"max"`
}

type Limits struct {
	Backend         string `yaml:"backend"` // "memory" or "redis"
	SweepIntervalMS int    `yaml:"sweep_interval_ms"`
	FailOpen        bool   `yaml:"fail_open"`
	Default         Limit  `yaml:"default"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type ClientIP struct {
	ForwardedHeader string `yaml:"forwarded_header"`
	RealIPHeader    string `yaml:"real_ip_header"`
}

type APIKey struct {
	ID       string            `yaml:"id"`
	Secret   string            `yaml:"secret"`
	Metadata map[string]string `yaml:"metadata"`
}

type Auth struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys"`
}

type Routes struct {
	ID    string `yaml:"id"`
	Match struct {
		PathPrefix string   `yaml:"path_prefix"`
		Methods    []string `yaml:"methods"`
	} `yaml:"match"`

	Upstream struct {
		URL       string `yaml:"url"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"upstream"`

	RequireAuth bool   `yaml:"require_auth"`
	Limit       *Limit `yaml:"limit"` // absent: not throttled
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Auth          Auth          `yaml:"auth"`
	Limits        Limits        `yaml:"limits"`
	Redis         Redis         `yaml:"redis"`
	ClientIP      ClientIP      `yaml:"client_ip"`
	Routes        []Routes      `yaml:"routes"`
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes == 0 {
		return 10 << 20
	}
	return s.MaxBodyBytes
} // default 10MB

func (l Limits) SweepInterval() time.Duration {
	return time.Duration(l.SweepIntervalMS) * time.Millisecond
}

func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(b []byte) (*Root, error) {
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Root) applyDefaults() {
	for i := range cfg.Routes {
		if cfg.Routes[i].Upstream.TimeoutMS <= 0 {
			cfg.Routes[i].Upstream.TimeoutMS = 3000
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	cfg.Limits.Backend = strings.ToLower(strings.TrimSpace(cfg.Limits.Backend))
	if cfg.Limits.Backend == "" {
		cfg.Limits.Backend = BackendMemory
	}
	if cfg.Limits.SweepIntervalMS <= 0 {
		cfg.Limits.SweepIntervalMS = 60_000
	}
	if cfg.Limits.Default.WindowMS <= 0 {
		cfg.Limits.Default.WindowMS = 60_000
	}
	if cfg.Limits.Default.Max <= 0 {
		cfg.Limits.Default.Max = 10
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "tidegate:rl"
	}
	if cfg.ClientIP.ForwardedHeader == "" {
		cfg.ClientIP.ForwardedHeader = "X-Forwarded-For"
	}
	if cfg.ClientIP.RealIPHeader == "" {
		cfg.ClientIP.RealIPHeader = "X-Real-IP"
	}
}

// Validate reports every problem found, joined into one error.
func (cfg *Root) Validate() error {
	var errs []error

	switch cfg.Limits.Backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			errs = append(errs, errors.New("redis.addr is required when limits.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("limits.backend %q: want memory or redis", cfg.Limits.Backend))
	}

	if !strings.HasPrefix(cfg.Observability.PrometheusPath, "/") {
		errs = append(errs, fmt.Errorf("observability.prometheus_path %q must start with /", cfg.Observability.PrometheusPath))
	}

	seen := make(map[string]struct{}, len(cfg.Routes))
	for i, rt := range cfg.Routes {
		name := rt.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Errorf("routes[%d]: id is required", i))
		} else if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("route %s: duplicate id", name))
		}
		seen[name] = struct{}{}

		if len(rt.Match.Methods) == 0 {
			errs = append(errs, fmt.Errorf("route %s: match.methods is required", name))
		}
		if rt.Upstream.URL == "" {
			errs = append(errs, fmt.Errorf("route %s: upstream.url is required", name))
		}
		if rt.Limit != nil && (rt.Limit.WindowMS < 0 || rt.Limit.Max < 0) {
			errs = append(errs, fmt.Errorf("route %s: limit values must not be negative", name))
		}
		if rt.RequireAuth && len(cfg.Auth.Keys) == 0 {
			errs = append(errs, fmt.Errorf("route %s: require_auth set but auth.keys is empty", name))
		}
	}

	return errors.Join(errs...)
}
