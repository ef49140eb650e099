// Package httpapi exposes a small read-only status/debug surface over
// the node actor: health, a JSON snapshot, the neighbour table, and a
// Prometheus scrape endpoint. It never mutates node state; every handler
// either reads a constant or sends a synchronous snapshot message to the
// actor.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redstarssystems/swim-sub000/swim"
)

// Server is the debug HTTP API, one per running Node.
type Server struct {
	node *swim.Node
}

// NewServer creates a debug server fronting node.
func NewServer(node *swim.Node) *Server {
	return &Server{node: node}
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/neighbours", s.handleNeighbours)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusView is the JSON shape returned by /status.
type statusView struct {
	ID             string `json:"id"`
	Host           string `json:"host"`
	Port           uint16 `json:"port"`
	Status         string `json:"status"`
	RestartCounter uint64 `json:"restart_counter"`
	Tx             uint64 `json:"tx"`
	ClusterSize    int    `json:"cluster_size"`
	NeighbourCount int    `json:"neighbour_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.node.Snapshot()
	writeJSON(w, http.StatusOK, statusView{
		ID:             snap.ID.String(),
		Host:           snap.Host,
		Port:           snap.Port,
		Status:         snap.Status.String(),
		RestartCounter: snap.RestartCounter,
		Tx:             snap.Tx,
		ClusterSize:    snap.ClusterSize,
		NeighbourCount: len(snap.Neighbours),
	})
}

type neighbourView struct {
	ID             string `json:"id"`
	Host           string `json:"host"`
	Port           uint16 `json:"port"`
	Status         string `json:"status"`
	Access         string `json:"access"`
	RestartCounter uint64 `json:"restart_counter"`
	Tx             uint64 `json:"tx"`
}

func (s *Server) handleNeighbours(w http.ResponseWriter, r *http.Request) {
	snap := s.node.Snapshot()
	out := make([]neighbourView, 0, len(snap.Neighbours))
	for _, nb := range snap.Neighbours {
		out = append(out, neighbourView{
			ID:             nb.ID.String(),
			Host:           nb.Host,
			Port:           nb.Port,
			Status:         nb.Status.String(),
			Access:         nb.Access.String(),
			RestartCounter: nb.RestartCounter,
			Tx:             nb.Tx,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
