package control

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"meetmic/internal/domain"
)

// Routines is the set of operations the control server exposes.
type Routines interface {
	SetupVirtualMicrophone(ctx context.Context) domain.Result
	PublishActiveMicrophone(ctx context.Context) domain.Result
	DisableCamera(ctx context.Context) domain.CameraOutcome
}

// RequestObserver receives one call per handled request.
type RequestObserver interface {
	ObserveRequest(route string, status int)
}

// Server lets an external controller trigger the routines over HTTP.
type Server struct {
	addr        string
	server      *http.Server
	routines    Routines
	observer    RequestObserver
	logger      *slog.Logger
	mu          sync.Mutex
	running     bool
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	authToken   string
}

type resultResponse struct {
	OK         bool     `json:"ok"`
	Result     string   `json:"result"`
	Label      string   `json:"label,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Message    string   `json:"message,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

type cameraResponse struct {
	Result string `json:"result"`
}

func NewServer(addr, authToken string, ratePerMinute int, routines Routines, observer RequestObserver, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		routines:    routines,
		observer:    observer,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(ratePerMinute, time.Minute),
		authToken:   authToken,
	}
	s.route("POST /microphone/select", s.guard(s.handleSelect))
	s.route("POST /microphone/publish", s.guard(s.handlePublish))
	s.route("POST /camera/disable", s.guard(s.handleCamera))
	// No rate limiting on health check
	s.route("GET /health", s.handleHealth)
	return s
}

// Mount adds an extra handler, e.g. the metrics endpoint.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("control server starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("control server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			if err := s.server.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}

	s.running = false
	return nil
}

func (s *Server) route(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if s.observer != nil {
			s.observer.ObserveRequest(pattern, rec.status)
		}
	})
}

// guard applies rate limiting and, when configured, token auth.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return s.rateLimiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
				s.logger.Warn("unauthorized control request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	result := s.routines.SetupVirtualMicrophone(r.Context())
	s.writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	result := s.routines.PublishActiveMicrophone(r.Context())
	s.writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	outcome := s.routines.DisableCamera(r.Context())
	s.writeJSON(w, http.StatusOK, cameraResponse{Result: outcome.String()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	statusCode := http.StatusOK

	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, statusCode, map[string]any{"status": status, "running": running})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("writing response", "error", err)
	}
}

func toResponse(r domain.Result) resultResponse {
	return resultResponse{
		OK:         r.OK(),
		Result:     r.String(),
		Label:      r.Label,
		Kind:       string(r.Kind),
		Message:    r.Message,
		Candidates: r.Candidates,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
