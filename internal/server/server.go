package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/neurobridge/matchcore/internal/audit"
	"github.com/neurobridge/matchcore/internal/config"
	"github.com/neurobridge/matchcore/internal/consent"
	"github.com/neurobridge/matchcore/internal/gateway"
	"github.com/neurobridge/matchcore/internal/matching"
	"github.com/neurobridge/matchcore/internal/server/middleware"
	"github.com/neurobridge/matchcore/internal/store"
)

// Deps holds everything the server serves.
type Deps struct {
	Port     int
	Engine   *matching.Engine
	Workflow *consent.Workflow
	Gateway  *gateway.Gateway
	Matches  store.MatchStore
	Audit    *audit.Log
	JWT      *JWTService
	Export   *config.ExportConfig
	Logger   *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	engine     *matching.Engine
	workflow   *consent.Workflow
	gateway    *gateway.Gateway
	matches    store.MatchStore
	audit      *audit.Log
	jwtService *JWTService
	export     *config.ExportConfig
	log        *zap.Logger
}

// New creates a new server instance
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:     deps.Engine,
		workflow:   deps.Workflow,
		gateway:    deps.Gateway,
		matches:    deps.Matches,
		audit:      deps.Audit,
		jwtService: deps.JWT,
		export:     deps.Export,
		log:        log,
	}

	auth := middleware.Auth(s.jwtService.AsTokenValidator())
	reviewerOnly := middleware.RequireRole(middleware.RoleReviewer)
	candidateOnly := middleware.RequireRole(middleware.RoleCandidate)

	mux := http.NewServeMux()

	// Inference endpoints. Open to any caller; admission is charged to the
	// token actor when one is presented, else the remote IP.
	mux.HandleFunc("POST /analyze/posting", s.handleAnalyzePosting)
	mux.HandleFunc("POST /evaluate/candidate", s.handleEvaluateCandidate)
	mux.HandleFunc("POST /explain/match", s.handleExplainMatch)

	// Match workflow endpoints
	mux.Handle("POST /matches", auth(reviewerOnly(http.HandlerFunc(s.handleProposeMatch))))
	mux.Handle("GET /matches/{id}", auth(http.HandlerFunc(s.handleGetMatch)))
	mux.Handle("POST /matches/{id}/review", auth(reviewerOnly(http.HandlerFunc(s.handleReviewMatch))))
	mux.Handle("POST /matches/{id}/respond", auth(candidateOnly(http.HandlerFunc(s.handleCandidateRespond))))
	mux.Handle("POST /matches/{id}/revoke", auth(candidateOnly(http.HandlerFunc(s.handleRevokeConsent))))
	mux.Handle("POST /matches/sweep", auth(reviewerOnly(http.HandlerFunc(s.handleSweep))))

	// Connection pipeline
	mux.Handle("POST /connections/{id}/stage", auth(http.HandlerFunc(s.handleAdvanceStage)))

	// Compliance export
	mux.HandleFunc("GET /audit", s.handleAuditExport)

	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", deps.Port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for requests and blocks until SIGINT/SIGTERM,
// then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Let in-flight explanation tasks land before the process exits.
	s.engine.Wait()

	s.log.Info("server stopped")
	return nil
}

// Handler returns the server's HTTP handler (for testing purposes).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response, mapping the error to a
// status code and setting Retry-After on rate-limit denials.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusTooManyRequests {
		if rlerr, ok := err.(*gateway.RateLimitError); ok && rlerr.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rlerr.RetryAfter.Seconds()+0.5)))
		}
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		s.jsonResponse(w, status, map[string]string{"error": "internal error"})
		return
	}
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}

// callerID identifies the caller for rate limiting: the token actor when a
// valid bearer token is presented, else the remote IP.
func (s *Server) callerID(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if claims, err := s.jwtService.ValidateToken(parts[1]); err == nil {
				return claims.ActorID.String()
			}
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
