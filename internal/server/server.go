// Package server exposes the retrieval service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
	"github.com/DrNightingales/Custom-RAG/internal/retrieve"
)

// Config configures the HTTP server.
type Config struct {
	Addr string
}

// Server serves POST /retrieve and GET /healthz.
type Server struct {
	cfg     Config
	service *retrieve.Service
	logger  *slog.Logger
	http    *http.Server
}

// retrieveRequest is the wire shape of a retrieval call.
type retrieveRequest struct {
	Query     string `json:"query"`
	FullInput string `json:"fullInput"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// New creates the server. Call ListenAndServe to run it.
func New(cfg Config, service *retrieve.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, service: service, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/retrieve", s.handleRetrieve)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe runs the server until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrCodeInternal, err)
	}
	s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "")
		return
	}

	results, err := s.service.Retrieve(r.Context(), retrieve.Query{
		Query:     req.Query,
		FullInput: req.FullInput,
	})
	if err != nil {
		code := ragerr.GetCode(err)
		if code == ragerr.ErrCodeInvalidQuery {
			writeError(w, http.StatusBadRequest, err.Error(), code)
			return
		}
		s.logger.Error("retrieval failed",
			slog.String("code", code),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "retrieval failed", code)
		return
	}

	// An empty result set is still a valid JSON array.
	if results == nil {
		results = []retrieve.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
