// Package web is the inbound transport: an HTTP and WebSocket gateway that
// accepts track requests, streams status updates, and serves finished files.
package web

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"audiobot/internal/pipeline"
	"audiobot/internal/ratelimit"
)

// Processor runs one track request end to end.
type Processor interface {
	Process(ctx context.Context, rawURL string) (pipeline.Result, error)
}

type Server struct {
	ctx      context.Context
	reqMgr   *RequestManager
	limiter  *ratelimit.Limiter
	pipe     Processor
	cacheDir string
	logger   *log.Logger
}

func NewServer(ctx context.Context, reqMgr *RequestManager, limiter *ratelimit.Limiter, pipe Processor, cacheDir string, logger *log.Logger) *Server {
	return &Server{
		ctx:      ctx,
		reqMgr:   reqMgr,
		limiter:  limiter,
		pipe:     pipe,
		cacheDir: cacheDir,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/welcome", s.handleWelcome)
	mux.HandleFunc("/api/tracks", s.handleSubmit)
	mux.HandleFunc("/api/tracks/", s.handleTrackFile)
	mux.HandleFunc("/api/requests/", s.handleRequestStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
