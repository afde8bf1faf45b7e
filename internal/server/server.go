// Package server exposes the reconciliation controller over HTTP. It is
// a thin JSON shim: every mutation lands in the controller, which
// reconciles synchronously; no business logic lives here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/backstock/internal/config"
	"github.com/roach88/backstock/internal/reconcile"
)

// Server serves the collection configuration API.
type Server struct {
	controller *reconcile.Controller
	router     *mux.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a Server listening on addr.
func New(controller *reconcile.Controller, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		controller: controller,
		logger:     logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/collections", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/collections/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/collections/{id}/config", s.handlePutConfig).Methods(http.MethodPut)
	r.HandleFunc("/collections/{id}/status", s.handleGetStatus).Methods(http.MethodGet)
	r.HandleFunc("/collections/{id}/retry", s.handleRetry).Methods(http.MethodPost)
	s.router = r

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router exposes the route table for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// configPayload is the wire form of a collection's configuration.
type configPayload struct {
	Enabled       bool     `json:"enabled"`
	SortKey       string   `json:"sortKey"`
	ExclusionTags []string `json:"exclusionTags"`
}

func payloadFromState(st config.State) configPayload {
	return configPayload{
		Enabled:       st.Enabled,
		SortKey:       string(st.SortKey),
		ExclusionTags: st.ExclusionTags,
	}
}

// collectionView is one collection's full reconciliation picture.
type collectionView struct {
	ID          string           `json:"id"`
	Desired     configPayload    `json:"desired"`
	Implemented *configPayload   `json:"implemented,omitempty"`
	Status      reconcile.Status `json:"status"`
}

func (s *Server) view(id string) collectionView {
	v := collectionView{
		ID:      id,
		Desired: payloadFromState(s.controller.Desired(id)),
		Status:  s.controller.Status(id),
	}
	if impl, ok := s.controller.Implemented(id); ok {
		p := payloadFromState(impl)
		v.Implemented = &p
	}
	return v
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	entities := s.controller.Entities()
	views := make([]collectionView, len(entities))
	for i, id := range entities {
		views[i] = s.view(id)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view(mux.Vars(r)["id"]))
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload configPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sortKey, err := config.ParseSortKey(payload.SortKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := config.New(payload.Enabled, sortKey, payload.ExclusionTags)
	s.controller.SetDesired(id, st)
	s.logger.Info("desired state updated", "collection_id", id, "enabled", st.Enabled)

	writeJSON(w, http.StatusOK, s.view(id))
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status(mux.Vars(r)["id"]))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.controller.RetryOperation(id)
	writeJSON(w, http.StatusAccepted, s.view(id))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
