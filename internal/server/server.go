package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AlexKimmel/tidegate/internal/auth"
	"github.com/AlexKimmel/tidegate/internal/clientip"
	"github.com/AlexKimmel/tidegate/internal/config"
	"github.com/AlexKimmel/tidegate/internal/gateway"
	"github.com/AlexKimmel/tidegate/internal/obs"
	"github.com/AlexKimmel/tidegate/internal/proxy"
	"github.com/AlexKimmel/tidegate/internal/ratelimit"
	"github.com/AlexKimmel/tidegate/internal/ratelimit/memory"
	"github.com/AlexKimmel/tidegate/internal/ratelimit/redisstore"
)

var Version = "v0.1.0"

// Server owns the HTTP listener, the limiter backend and its lifecycle.
type Server struct {
	cfg     *config.Root
	logger  zerolog.Logger
	handler http.Handler
	srv     *http.Server

	limiter ratelimit.Limiter
	memory  *memory.Limiter
	rdb     *redis.Client
}

type Option func(*Server)

// WithLimiter replaces the configured limiter backend.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

func New(cfg *config.Root, logger zerolog.Logger, reg *prometheus.Registry, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	metrics := obs.NewMetrics(reg)

	if s.limiter == nil {
		if err := s.buildLimiter(metrics); err != nil {
			return nil, err
		}
	}

	rr, err := cfg.BuildRouter()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(Version))
	})
	mux.Handle(cfg.Observability.PrometheusPath, obs.Handler(reg))
	mux.Handle("/", proxy.Handler(proxy.NewHTTPTransport()))

	skip := map[string]struct{}{
		"/health":                        {},
		"/version":                       {},
		cfg.Observability.PrometheusPath: {},
	}

	authStore := auth.NewStatic(cfg.Auth.Header, cfg.Auth.KeyPairs())

	s.handler = gateway.Chain(
		mux,
		obs.Logger(logger),
		gateway.BodyLimit(cfg.Server.MaxBody()),
		gateway.RouteMatcher(rr, skip),
		metrics.Middleware(skip),
		gateway.RateLimit(s.limiter, clientip.New(cfg.ClientIP.ForwardedHeader, cfg.ClientIP.RealIPHeader), gateway.LimitOptions{
			FailOpen:  cfg.Limits.FailOpen,
			OnLimited: metrics.OnLimited,
			OnError:   metrics.OnError,
		}),
		authStore.Middleware(),
	)

	s.srv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
	}

	return s, nil
}

func (s *Server) buildLimiter(metrics *obs.Metrics) error {
	switch s.cfg.Limits.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis ping %s: %w", s.cfg.Redis.Addr, err)
		}
		s.rdb = rdb
		s.limiter = redisstore.New(rdb, s.cfg.Redis.Prefix)
	default:
		mem := memory.New(
			memory.WithSweepInterval(s.cfg.Limits.SweepInterval()),
			memory.WithOnSweep(func(removed int) {
				metrics.OnSweep(removed)
				if removed > 0 {
					s.logger.Debug().Int("removed", removed).Msg("rate limit sweep")
				}
			}),
		)
		metrics.TrackEntries(mem.Len)
		s.memory = mem
		s.limiter = mem
	}
	return nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// Start begins the limiter sweep. Stopping ctx also stops the sweep.
func (s *Server) Start(ctx context.Context) {
	if s.memory != nil {
		s.memory.Start(ctx)
	}
}

// ListenAndServe blocks until the server stops; a graceful Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info().
		Str("addr", s.srv.Addr).
		Str("backend", s.cfg.Limits.Backend).
		Int("routes", len(s.cfg.Routes)).
		Msg("listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP traffic, then stops the limiter and closes Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if cerr := s.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Close releases the limiter and the Redis client without touching the listener.
func (s *Server) Close() error {
	var errs []error
	if s.limiter != nil {
		errs = append(errs, s.limiter.Close())
	}
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	return errors.Join(errs...)
}
