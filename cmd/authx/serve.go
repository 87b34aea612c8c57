package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-authx"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var (
		addr      string
		publicURL string
		providers []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo server with cookie sessions",
		Long: `Run a small HTTP server that mounts the login, logout, refresh and OAuth
endpoints, a protected /profile page and Prometheus metrics on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			cfg.Metrics = reg

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			state, err := authx.New[authx.Extra, authx.Extra, authx.Extra](ctx, cfg)
			if err != nil {
				return err
			}

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)
			r.Use(hlog.NewHandler(opts.logger))
			r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
				hlog.FromRequest(r).Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Dur("duration", duration).
					Msg("request")
			}))

			r.Mount("/", state.Router(authx.RouterConfig{PublicURL: publicURL, Providers: providers}))
			r.With(state.RequireAuth).Get("/profile", func(w http.ResponseWriter, r *http.Request) {
				claims, _ := authx.ClaimsFromContext[authx.Extra, authx.Extra, authx.Extra](r.Context())
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(claims)
			})
			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				info, err := state.Service().Health(r.Context())
				if err != nil {
					authx.WriteError(w, r, err)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(info)
			})
			r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			srv := &http.Server{
				Addr:              addr,
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				opts.logger.Info().Str("addr", addr).Msg("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			opts.logger.Info().Msg("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&publicURL, "public-url", "http://localhost:8080", "External origin used for OAuth callbacks")
	cmd.Flags().StringSliceVar(&providers, "provider", nil, "Allowed OAuth provider, repeatable (default any)")

	return cmd
}
