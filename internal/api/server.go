// Package api serves stored analysis runs over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/flow.report/internal/db"
	"github.com/banshee-data/flow.report/internal/edie"
	"github.com/banshee-data/flow.report/internal/fsutil"
	"github.com/banshee-data/flow.report/internal/httputil"
	"github.com/banshee-data/flow.report/internal/monitoring"
	"github.com/banshee-data/flow.report/internal/render"
	"github.com/banshee-data/flow.report/internal/security"
)

// ANSI escape codes for request logging.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// RunStore is the read side of the run database.
type RunStore interface {
	ListRuns(ctx context.Context) ([]db.Run, error)
	Run(ctx context.Context, id string) (*db.Run, error)
	Cells(ctx context.Context, id string) ([]db.Cell, error)
	Fits(ctx context.Context, runID string) ([]db.Fit, error)
	LoadResult(ctx context.Context, id string) (*edie.Result, error)
}

type Server struct {
	store     RunStore
	fs        fsutil.FileSystem
	artifacts string
	page      render.PageOptions
}

// NewServer serves runs from store and files from the artifacts directory.
func NewServer(store RunStore, fs fsutil.FileSystem, artifacts string, page render.PageOptions) *Server {
	return &Server{
		store:     store,
		fs:        fs,
		artifacts: artifacts,
		page:      page,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.showRun)
	mux.HandleFunc("/api/runs/{id}/cells", s.listCells)
	mux.HandleFunc("/api/runs/{id}/fits", s.listFits)
	mux.HandleFunc("/charts/{id}", s.showCharts)
	mux.HandleFunc("/artifacts/{name}", s.serveArtifact)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// storeError maps a store failure onto a JSON error response.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	monitoring.Logf("store error: %v", err)
	httputil.InternalServerError(w, "failed to read run store")
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, err := s.store.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) listCells(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	cells, err := s.store.Cells(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, cells)
}

func (s *Server) listFits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	fits, err := s.store.Fits(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, fits)
}

func (s *Server) showCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.PathValue("id")
	res, err := s.store.LoadResult(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	page := s.page
	if page.Subtitle == "" {
		page.Subtitle = fmt.Sprintf("run %s, class %s", id, res.Class)
	}
	httputil.WriteHTML(w, func(out io.Writer) error {
		return render.ContourPage(out, res, page)
	})
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w)
		return
	}
	name := r.PathValue("name")
	path, err := security.ResolveArtifact(s.artifacts, name)
	if err != nil {
		httputil.BadRequest(w, "invalid artifact name")
		return
	}
	if !s.fs.Exists(path) {
		httputil.NotFound(w, fmt.Sprintf("artifact %s not found", name))
		return
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		monitoring.Logf("read artifact %s: %v", path, err)
		httputil.InternalServerError(w, "failed to read artifact")
		return
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// ListenAndServe runs handler on addr until ctx is cancelled, then shuts
// the server down.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
