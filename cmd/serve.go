package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/model"
	"github.com/terralab/geostat/internal/pipeline"
	"github.com/terralab/geostat/internal/sample"
	"github.com/terralab/geostat/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run results and accept analysis requests over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      newRouter(st, newPipeline(st)),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func newRouter(st store.Store, p *pipeline.Pipeline) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		filter := store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
			Name:   r.URL.Query().Get("name"),
		}
		runs, err := st.ListRuns(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/runs/{id}/observations", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := st.GetRun(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		obs, err := st.GetObservations(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if obs == nil {
			obs = []sample.Observation{}
		}
		writeJSON(w, http.StatusOK, obs)
	})

	// Per-run artifacts (plots, CSV exports, workbook) straight off disk.
	artifactsDir := http.Dir(filepath.Clean(cfg.Report.OutputDir))
	r.Handle("/artifacts/*", http.StripPrefix("/artifacts/", http.FileServer(artifactsDir)))

	r.Post("/runs", func(w http.ResponseWriter, r *http.Request) {
		var spec model.StudySpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := spec.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		// The pipeline records its own progress in the store, so the
		// request only needs to hand the work off.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
			defer cancel()
			if _, err := p.Run(ctx, spec); err != nil {
				zap.L().Error("async run failed", zap.String("name", spec.Name), zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"name": spec.Name, "status": "queued"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (defaults to server.port from config)")
	rootCmd.AddCommand(serveCmd)
}
