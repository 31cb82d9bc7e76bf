// Package statusserver exposes the latest SALUTE report of each role, which
// the core already writes to disk, as a small read-only HTTP surface. The core itself never pushes events or listens on a socket
// (spec §6); this package is the external-observer convenience the spec
// explicitly carves out room for, built the same go-chi way the corpus
// wires its other HTTP surfaces.
package statusserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/cogscaffold/core/pkg/orgkernel"
)

// Server serves the configured role ids, the current SALUTE latest file of
// each role, and a liveness probe; archived reports are not listed. It holds no pipeline state of
// its own: every response is read straight off the filesystem at request
// time, so it can run in a separate process from the turn loop.
type Server struct {
	Reports *orgkernel.ReportStore
	RoleIDs []string
	router  chi.Router
}

func New(reports *orgkernel.ReportStore, roleIDs []string) *Server {
	s := &Server{Reports: reports, RoleIDs: roleIDs}
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/roles", s.handleRoles)
	r.Get("/roles/{roleID}/latest", s.handleLatest)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"roles": s.RoleIDs})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	report, err := s.Reports.ReadLatest(roleID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no SALUTE report for role " + roleID})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
