package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	videopipelineservice "turntable/contexts/media-generation/video-pipeline-service"
	assetsadapter "turntable/contexts/media-generation/video-pipeline-service/adapters/assets"
	pipelinedomainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	pipelinehttp "turntable/contexts/media-generation/video-pipeline-service/transport/http"
	_ "turntable/internal/platform/httpserver/docs"
)

const maxRequestBodyBytes = 1 << 20

type Server struct {
	router   chi.Router
	logger   *slog.Logger
	addr     string
	pipeline videopipelineservice.Module
	assetDir string
	http     *http.Server
}

// New builds the API server. assetDir may be empty to disable /assets/.
func New(
	pipeline videopipelineservice.Module,
	logger *slog.Logger,
	addr string,
	assetDir string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		logger:   logger,
		addr:     addr,
		pipeline: pipeline,
		assetDir: assetDir,
	}
	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if s.assetDir != "" {
		r.Handle(assetsadapter.RoutePrefix+"*", http.StripPrefix(assetsadapter.RoutePrefix, http.FileServer(http.Dir(s.assetDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/pipeline-runs", s.handleStartPipeline)
		r.Get("/pipeline-runs/{run_id}", s.handleGetPipelineRun)
		r.Get("/prompts", s.handleListPrompts)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request served",
			"event", "http_request_served",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartPipeline(w http.ResponseWriter, r *http.Request) {
	var req pipelinehttp.StartPipelineRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writePipelineError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.pipeline.Handler.StartPipelineHandler(r.Context(), resolveClientIP(r), req)
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleGetPipelineRun(w http.ResponseWriter, r *http.Request) {
	resp, err := s.pipeline.Handler.GetPipelineRunHandler(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := pipelinehttp.ListPromptsRequest{Email: query.Get("email")}
	if limitRaw := query.Get("limit"); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			writePipelineError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	resp, err := s.pipeline.Handler.ListPromptsHandler(r.Context(), req)
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePipelineDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipelinedomainerrors.ErrInvalidInput):
		writePipelineError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, pipelinedomainerrors.ErrRunNotFound):
		writePipelineError(w, http.StatusNotFound, "run_not_found", err.Error())
	default:
		writePipelineError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePipelineError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pipelinehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// resolveClientIP prefers the first X-Forwarded-For hop.
func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
