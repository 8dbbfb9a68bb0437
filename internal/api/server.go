package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mightytools/sitecrawler/internal/crawl"
	"github.com/mightytools/sitecrawler/internal/metrics"
	"github.com/mightytools/sitecrawler/internal/scheduler"
	"github.com/mightytools/sitecrawler/internal/sitemap"
)

// Server wires HTTP handlers to the scheduler and history store.
type Server struct {
	router          chi.Router
	sched           *scheduler.Scheduler
	history         crawl.HistoryStore
	logger          *zap.Logger
	baseCtx         context.Context
	maxPagesDefault int
}

// NewServer constructs a Server. Crawls started over HTTP run on baseCtx, so
// they outlive the request but stop on process shutdown.
func NewServer(
	baseCtx context.Context,
	sched *scheduler.Scheduler,
	history crawl.HistoryStore,
	maxPagesDefault int,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sched:           sched,
		history:         history,
		logger:          logger,
		baseCtx:         baseCtx,
		maxPagesDefault: maxPagesDefault,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.startCrawl)
			r.Post("/batch", s.startBatchCrawl)
			r.Get("/status", s.crawlStatus)
			r.Get("/suspended", s.suspended)
		})
		r.Post("/sitemap/diff", s.sitemapDiff)
		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.listHistory)
			r.Delete("/{result_id}", s.deleteHistory)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startCrawlRequest struct {
	RootURL     string `json:"root_url"`
	MaxPages    int    `json:"max_pages"`
	FromScratch bool   `json:"from_scratch"`
}

func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req startCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RootURL == "" {
		writeError(w, http.StatusBadRequest, "root_url is required")
		return
	}
	if req.MaxPages <= 0 {
		req.MaxPages = s.maxPagesDefault
	}
	rootKey, err := crawl.RootKey(req.RootURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if state := s.sched.State(); state == crawl.StateRunning || state == crawl.StatePaused {
		writeError(w, http.StatusConflict, crawl.ErrCrawlInProgress.Error())
		return
	}

	go func() {
		err := s.sched.StartCrawl(s.baseCtx, req.RootURL, req.MaxPages, req.FromScratch)
		s.logCrawlEnd("crawl", rootKey, err)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"root_key": rootKey,
		"status":   "started",
	})
}

type batchCrawlRequest struct {
	URLs []string `json:"urls"`
}

func (s *Server) startBatchCrawl(w http.ResponseWriter, r *http.Request) {
	var req batchCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}
	if state := s.sched.State(); state == crawl.StateRunning || state == crawl.StatePaused {
		writeError(w, http.StatusConflict, crawl.ErrCrawlInProgress.Error())
		return
	}

	urls := append([]string(nil), req.URLs...)
	go func() {
		err := s.sched.StartBatchCrawl(s.baseCtx, urls)
		s.logCrawlEnd("batch crawl", crawl.BatchRootKey, err)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"root_key": crawl.BatchRootKey,
		"status":   "started",
		"seeds":    len(urls),
	})
}

func (s *Server) crawlStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"state":  string(s.sched.State()),
		"status": s.sched.Status(),
	})
}

func (s *Server) suspended(w http.ResponseWriter, r *http.Request) {
	rootURL := r.URL.Query().Get("root_url")
	if rootURL == "" {
		writeError(w, http.StatusBadRequest, "root_url is required")
		return
	}
	info, ok, err := s.sched.ResumeIfSuspended(r.Context(), rootURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"suspended": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suspended": true,
		"session":   info,
	})
}

type sitemapDiffRequest struct {
	New    []sitemap.Entry    `json:"new"`
	Old    []sitemap.Entry    `json:"old"`
	Policy sitemap.SeedPolicy `json:"policy"`
	Start  bool               `json:"start"`
}

func (s *Server) sitemapDiff(w http.ResponseWriter, r *http.Request) {
	var req sitemapDiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Policy == "" {
		req.Policy = sitemap.PrependUpdated
	}

	added, changed := sitemap.Diff(req.New, req.Old)
	remaining := sitemap.Remainder(req.New, added, changed)
	seeds := sitemap.SeedList(added, changed, remaining, req.Policy)

	started := false
	if req.Start && len(seeds) > 0 {
		if state := s.sched.State(); state == crawl.StateRunning || state == crawl.StatePaused {
			writeError(w, http.StatusConflict, crawl.ErrCrawlInProgress.Error())
			return
		}
		go func() {
			err := s.sched.StartBatchCrawl(s.baseCtx, seeds)
			s.logCrawlEnd("sitemap crawl", crawl.BatchRootKey, err)
		}()
		started = true
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"added":   added,
		"changed": changed,
		"seeds":   seeds,
		"started": started,
	})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	results, err := s.history.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "result_id")
	err := s.history.Delete(r.Context(), id)
	if errors.Is(err, crawl.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.HistoryDeleted()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logCrawlEnd(kind, rootKey string, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, context.Canceled):
		s.logger.Info(kind+" stopped by shutdown", zap.String("root", rootKey))
	default:
		s.logger.Error(kind+" ended with error", zap.String("root", rootKey), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
