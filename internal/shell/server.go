package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/instance"
)

// Route paths served on the control address.
const (
	PathWebSocket = "/ws"
	PathHealth    = "/healthz"
)

// TagSecondInstance is posted when another launch asks this one to focus.
const TagSecondInstance = "second-instance"

// Server is the loopback control server the shell and later launches talk to.
type Server struct {
	hub      *Hub
	addr     string
	logger   *zap.Logger
	listener net.Listener
	srv      *http.Server
}

// NewServer creates a server for hub on addr.
func NewServer(addr string, hub *Hub, logger *zap.Logger) *Server {
	s := &Server{hub: hub, addr: addr, logger: logger.Named("control")}
	s.srv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(PathWebSocket, s.hub.ServeWS).Methods(http.MethodGet)
	r.HandleFunc(instance.FocusPath, s.handleFocus).Methods(http.MethodPost)
	r.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	return r
}

// Listen binds the control address. Must be called before URL or Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("control server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Close releases the listener of a server that will not be served.
func (s *Server) Close() {
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// URL returns the base HTTP URL of the bound address.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// WebSocketURL returns the address the shell connects to.
func (s *Server) WebSocketURL() string {
	if s.listener == nil {
		return ""
	}
	return "ws://" + s.listener.Addr().String() + PathWebSocket
}

// Serve runs until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Flush(500 * time.Millisecond)
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("control server shutdown", zap.Error(err))
	}
	return nil
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req instance.FocusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid focus request", http.StatusBadRequest)
		return
	}
	s.logger.Info("second instance launched", zap.Int("pid", req.PID), zap.Strings("args", req.Args))

	raw, _ := json.Marshal(req)
	s.hub.Post(domain.Message{
		Source:  domain.SourceSupervisor,
		Tag:     TagSecondInstance,
		Payload: raw,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"shellConnected": s.hub.Connected(),
	})
}
