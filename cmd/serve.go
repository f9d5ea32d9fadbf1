package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gradelens/internal/analytics"
	"github.com/sells-group/gradelens/internal/history"
	"github.com/sells-group/gradelens/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve prediction analytics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		src, closeSrc, err := initSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		loader := history.NewLoader(src)
		if _, err := loader.Refresh(ctx); err != nil {
			// Serve the empty state until the next refresh succeeds.
			zap.L().Warn("initial history refresh failed", zap.Error(err))
		}
		go loader.Watch(ctx, cfg.History.RefreshInterval())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(loader, cfg.Server.AllowedOrigins, analyticsOptions(cfg)...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("history_source", cfg.History.Source),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type api struct {
	loader *history.Loader
	opts   []analytics.Option
}

// buildRouter wires the analytics API over loader.
func buildRouter(loader *history.Loader, allowedOrigins []string, opts ...analytics.Option) http.Handler {
	a := &api{loader: loader, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/predictions", a.predictions)
		r.Get("/model-info", a.modelInfo)
		r.Get("/analytics", a.dashboard)
		r.Get("/analytics/{chart}", a.chart)
		r.Post("/refresh", a.refresh)
	})

	return r
}

func (a *api) predictions(w http.ResponseWriter, _ *http.Request) {
	snap := a.loader.Current()
	records := snap.Records
	if records == nil {
		records = []model.PredictionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *api) modelInfo(w http.ResponseWriter, _ *http.Request) {
	info := a.loader.Current().ModelInfo
	if info == nil {
		writeErr(w, http.StatusNotFound, "model info not available")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *api) build() *analytics.Dashboard {
	snap := a.loader.Current()
	return analytics.Build(analytics.AsDelivered(snap.Records), snap.ModelInfo, a.opts...)
}

func (a *api) dashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.build())
}

func (a *api) chart(w http.ResponseWriter, r *http.Request) {
	kind, err := analytics.ParseChartKind(chi.URLParam(r, "chart"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	view := a.build().Chart(kind)
	if view == nil {
		writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "empty": true})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := a.loader.Refresh(r.Context())
	switch {
	case errors.Is(err, history.ErrSuperseded):
		writeErr(w, http.StatusConflict, "refresh superseded by a newer request")
		return
	case err != nil:
		zap.L().Error("refresh failed", zap.Error(err))
		writeErr(w, http.StatusBadGateway, "history source unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      snap.Token,
		"records":    len(snap.Records),
		"fetched_at": snap.FetchedAt,
	})
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResp struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
