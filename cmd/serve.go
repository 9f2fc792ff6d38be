package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/config"
	"github.com/sells-group/closure-tracker/internal/model"
	"github.com/sells-group/closure-tracker/internal/summary"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the summary and metadata files over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Backend, env.Files, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter serves the data files read fresh from backend on each request.
func newRouter(backend blob.Backend, files config.DataConfig, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/by_bank.json", rawFile(backend, files.SummaryFile))
	r.Get("/metadata.json", func(w http.ResponseWriter, req *http.Request) {
		meta, err := summary.LoadMetadata(req.Context(), backend, files.MetadataFile)
		if errors.Is(err, blob.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": files.MetadataFile + " not found"})
			return
		}
		if err != nil {
			serverError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		s, err := summary.Load(req.Context(), backend, files.SummaryFile)
		if err != nil {
			serverError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary.Stats(s))
	})

	r.Get("/banks/{name}", func(w http.ResponseWriter, req *http.Request) {
		s, err := summary.Load(req.Context(), backend, files.SummaryFile)
		if err != nil {
			serverError(w, err)
			return
		}
		name := chi.URLParam(req, "name")
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
		bank, attempts, ok := lookupBank(s, name)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "bank not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"bank":     bank,
			"stats":    summary.Stats(model.BankSummary{bank: attempts})[0],
			"attempts": attempts,
		})
	})

	return r
}

func rawFile(backend blob.Backend, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		data, err := backend.Read(req.Context(), name)
		if errors.Is(err, blob.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": name + " not found"})
			return
		}
		if err != nil {
			serverError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// lookupBank matches name exactly, then case-insensitively.
func lookupBank(s model.BankSummary, name string) (string, []model.BankAttempt, bool) {
	if attempts, ok := s[name]; ok {
		return name, attempts, true
	}
	for _, bank := range s.Banks() {
		if strings.EqualFold(bank, name) {
			return bank, s[bank], true
		}
	}
	return "", nil, false
}

func serverError(w http.ResponseWriter, err error) {
	zap.L().Error("serve: request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
