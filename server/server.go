// Package server publishes registered tools over HTTP: one endpoint per
// tool, a natural-language /query endpoint, a listing, a health probe, and a
// stateless MCP endpoint.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/petal-labs/petaltools/orchestrate"
	"github.com/petal-labs/petaltools/tool"
)

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Dispatcher *tool.Dispatcher
	// Router serves POST /query. When nil the endpoint answers with
	// ConfigurationError.
	Router     *orchestrate.Router
	CORSOrigin string
	MaxBody    int64
	EnableMCP  bool
	Version    string
	Logger     *slog.Logger
}

// Server is the petaltools HTTP API server.
type Server struct {
	dispatcher *tool.Dispatcher
	registry   *tool.Registry
	router     *orchestrate.Router
	corsOrigin string
	maxBody    int64
	enableMCP  bool
	version    string
	logger     *slog.Logger
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("server: dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		dispatcher: cfg.Dispatcher,
		registry:   cfg.Dispatcher.Registry(),
		router:     cfg.Router,
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
		enableMCP:  cfg.EnableMCP,
		version:    version,
		logger:     logger,
	}
	s.warnShadowedTools()
	return s, nil
}

// warnShadowedTools logs tools whose endpoints collide with fixed routes.
func (s *Server) warnShadowedTools() {
	shadowed := map[string]string{
		"health": http.MethodGet,
		"query":  http.MethodPost,
	}
	if s.enableMCP {
		shadowed["mcp"] = "GET, POST, DELETE"
	}
	for _, name := range s.registry.Names() {
		if methods, ok := shadowed[name]; ok {
			s.logger.Warn("tool endpoint shadowed by a built-in route; use MCP or the CLI to call it",
				"tool", name, "methods", methods)
		}
	}
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	handler = s.requestIDMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)
	handler = s.corsMiddleware(handler)

	return handler
}

// RegisterRoutes mounts the API onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleListTools)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /query", s.handleQuery)
	if s.enableMCP {
		mcpHandler := s.newMCPHandler()
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			mux.Handle(method+" /mcp", mcpHandler)
		}
	}
	mux.HandleFunc("GET /{tool}", s.handleCallTool)
	mux.HandleFunc("POST /{tool}", s.handleCallTool)
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

const requestIDHeader = "X-Request-ID"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = tool.NewRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(tool.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", tool.RequestIDFrom(r.Context()),
		)
	})
}

// --- JSON helpers ---

// writeJSON encodes v before committing the status. A value that cannot be
// encoded is answered with a 500 ToolExecutionError envelope.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(tool.Failure(tool.KindToolExecution,
			"result is not JSON-serializable: "+err.Error(), nil))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
