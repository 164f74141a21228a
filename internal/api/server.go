// Package api serves the blocking Service over HTTP on a local socket and
// provides the matching client used by the CLI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/blackwell-systems/pomoblock/internal/blocker"
	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxBodyBytes        = 1 << 20
)

// ErrorResponse is written for requests that never reach the Service.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// DomainsRequest carries a domain list.
type DomainsRequest struct {
	Domains []string `json:"domains"`
}

// BlocklistResponse is the saved blocklist.
type BlocklistResponse struct {
	Domains []string `json:"domains"`
}

// HistoryResponse lists recent events, newest first.
type HistoryResponse struct {
	Events []*store.Event `json:"events"`
}

// Server exposes a blocker.Service. The store is optional; without it the
// blocklist and history routes answer 503.
type Server struct {
	svc      *blocker.Service
	store    *store.Store
	shutdown func()
	router   *mux.Router
	http     *http.Server
}

// NewServer builds the router. shutdown is called when a client asks the
// daemon to exit; it may be nil.
func NewServer(svc *blocker.Service, st *store.Store, shutdown func()) *Server {
	s := &Server{
		svc:      svc,
		store:    st,
		shutdown: shutdown,
		router:   mux.NewRouter(),
	}
	s.RegisterRoutes(s.router)
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// WithBaseContext makes ctx the parent of every request context, so
// cancelling it aborts in-flight requests, including one waiting on an
// elevation prompt.
func (s *Server) WithBaseContext(ctx context.Context) *Server {
	s.http.BaseContext = func(net.Listener) context.Context { return ctx }
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RegisterRoutes registers API routes
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/blocking/start", s.handleStart).Methods("POST")
	router.HandleFunc("/v1/blocking/stop", s.handleStop).Methods("POST")
	router.HandleFunc("/v1/blocking/status", s.handleStatus).Methods("GET")
	router.HandleFunc("/v1/hosts/force-clean", s.handleForceClean).Methods("POST")
	router.HandleFunc("/v1/admin", s.handleAdmin).Methods("GET")

	router.HandleFunc("/v1/blocklist", s.handleGetBlocklist).Methods("GET")
	router.HandleFunc("/v1/blocklist", s.handleSetBlocklist).Methods("PUT")
	router.HandleFunc("/v1/blocklist", s.handleResetBlocklist).Methods("DELETE")
	router.HandleFunc("/v1/history", s.handleHistory).Methods("GET")

	router.HandleFunc("/v1/shutdown", s.handleShutdown).Methods("POST")
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	log.Infof("api listening on %s %s", l.Addr().Network(), l.Addr())
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req DomainsRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, s.svc.StartBlocking(r.Context(), req.Domains))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.svc.StopBlocking(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetBlockingStatus())
}

func (s *Server) handleForceClean(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.svc.ForceCleanHosts(r.Context()))
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.CheckAdminPermissions())
}

func (s *Server) handleGetBlocklist(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	domains, err := s.store.GetBlocklist()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, BlocklistResponse{Domains: domains})
}

func (s *Server) handleSetBlocklist(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req DomainsRequest
	if !decode(w, r, &req) {
		return
	}

	set, err := hosts.NewEntrySet(req.Domains)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.SetBlocklist(set); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, BlocklistResponse{Domains: []string(set)})
}

func (s *Server) handleResetBlocklist(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.ResetBlocklist(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.handleGetBlocklist(w, r)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	events, err := s.store.ListEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Events: events})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if s.shutdown == nil {
		writeError(w, http.StatusNotImplemented, errors.New("shutdown not supported"))
		return
	}
	writeJSON(w, http.StatusAccepted, blocker.Result{Success: true, Message: "shutting down"})
	go s.shutdown()
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("history database not available"))
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// statusFor maps a failed Result to an HTTP status. The body is always the
// Result itself.
func statusFor(res blocker.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case blocker.CodeEmptyDomainList, blocker.CodeInvalidDomain:
		return http.StatusBadRequest
	case blocker.CodePermissionDenied:
		return http.StatusForbidden
	case blocker.CodeNoBackup:
		return http.StatusConflict
	case blocker.CodeBusy:
		return http.StatusServiceUnavailable
	case blocker.CodeUnsupportedPlatform:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, res blocker.Result) {
	writeJSON(w, statusFor(res), res)
}

func writeJSON(w http.ResponseWriter, status int, obj any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Debugf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Debugf("api error %d: %v", status, err)
	writeJSON(w, status, &ErrorResponse{Message: err.Error(), Code: status})
}
