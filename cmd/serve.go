package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/survey-cli/internal/service"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports, exports and signed file downloads over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer e.Close()

		limiter := rate.NewLimiter(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst)
		router := newRouter(e, limiter)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go shutdownOnDone(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownOnDone drains the server once ctx is canceled. The canceled
// signal context cannot time the drain, so Shutdown runs on a fresh one.
func shutdownOnDone(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(drainCtx)
}

func newRouter(e *env, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(limiter))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/projects/{projectID}/interviews/{interviewID}/report", func(w http.ResponseWriter, req *http.Request) {
		rep, err := e.Svc.Report(req.Context(),
			chi.URLParam(req, "projectID"),
			chi.URLParam(req, "interviewID"),
			req.URL.Query().Get("lang"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	r.Post("/exports", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProjectID    string   `json:"project_id"`
			InterviewIDs []string `json:"interview_ids"`
			Exclude      []string `json:"exclude"`
			Language     string   `json:"language"`
			FileType     string   `json:"file_type"`
			Filename     string   `json:"filename"`
			RequestedBy  string   `json:"requested_by"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.ProjectID == "" || len(body.InterviewIDs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project_id and interview_ids are required"})
			return
		}

		ref, err := e.Svc.Export(req.Context(), service.ExportRequest{
			ProjectID:    body.ProjectID,
			InterviewIDs: body.InterviewIDs,
			Exclude:      body.Exclude,
			Language:     body.Language,
			FileType:     body.FileType,
			Filename:     body.Filename,
			RequestedBy:  body.RequestedBy,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if ref.URL == "" {
			// Blob write failed; stream the bytes directly.
			w.Header().Set("Content-Type", contentTypeFor(ref.Filename))
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.Filename))
			w.WriteHeader(http.StatusOK)
			w.Write(ref.Data)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"url":      ref.URL,
			"filename": ref.Filename,
		})
	})

	r.Post("/projects/{projectID}/interviews/{interviewID}/invalidate", func(w http.ResponseWriter, req *http.Request) {
		err := e.Svc.Invalidate(req.Context(),
			chi.URLParam(req, "projectID"),
			chi.URLParam(req, "interviewID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
	})

	r.Post("/projects/{projectID}/interviews/{interviewID}/responses/{responseID}/answers/{questionID}/proof", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProofedBy string `json:"proofed_by"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		err := e.Svc.Proof(req.Context(),
			chi.URLParam(req, "projectID"),
			chi.URLParam(req, "interviewID"),
			chi.URLParam(req, "responseID"),
			chi.URLParam(req, "questionID"),
			body.ProofedBy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "proofed"})
	})

	r.Get("/files/*", func(w http.ResponseWriter, req *http.Request) {
		blobPath := chi.URLParam(req, "*")
		if err := e.Blobs.Verify(blobPath, req.URL.Query()); err != nil {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid or expired reference"})
			return
		}
		data, err := e.Blobs.Open(req.Context(), blobPath)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		w.Header().Set("Content-Type", contentTypeFor(blobPath))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	})

	return r
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, service.ErrNoReportData):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data found"})
	case eris.Is(err, service.ErrNoExport), eris.Is(err, service.ErrFileReference):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
