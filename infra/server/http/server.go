// Package http serves the dashboard API, the downstream event endpoints and
// the operational endpoints on one listener.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phoenixd-dashboard/dashboard/config"
	"github.com/phoenixd-dashboard/dashboard/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Registrar mounts a group of routes. Handler packages provide one each into
// the "routes" value group.
type Registrar interface {
	Register(r chi.Router)
}

// AsRegistrar annotates a constructor so its result joins the routes group.
func AsRegistrar(f any) any {
	return fx.Annotate(f, fx.As(new(Registrar)), fx.ResultTags(`group:"routes"`))
}

type RouterParams struct {
	fx.In

	Logger     *slog.Logger
	Registrars []Registrar `group:"routes"`
}

func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(p.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())

	for _, reg := range p.Registrars {
		reg.Register(r)
	}
	return r
}

// RequestLogger logs one line per request at debug, or warn for 5xx.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "[HTTP] request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func NewServer(lc fx.Lifecycle, cfg *config.Config, router chi.Router, logger *slog.Logger) *http.Server {
	// Requests, including hijacked websockets, derive from baseCtx so that
	// stopping ends streams that Shutdown itself would wait on.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			logger.Info("[HTTP] listening", slog.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("[HTTP] server stopped", slog.Any("err", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelBase()
			if timeout := cfg.Server.ShutdownTimeout; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
	return srv
}

var Module = fx.Module("http-server",
	fx.Provide(NewRouter, NewServer),
	fx.Invoke(
		func(*http.Server) {},
		func() error { return metrics.Register(prometheus.DefaultRegisterer) },
	),
)
