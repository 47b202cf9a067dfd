package worker

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/wire"
)

// Server exposes a Worker over HTTP, the listening half of the
// Worker/Leader RPC kinds spec.md §4.5 names. Grounded on
// cmd/coordinator/main.go's http.ServeMux + handleXxx wiring, with
// bodies swapped from JSON to the msgpack wire codec spec.md §6
// requires.
type Server struct {
	w   *Worker
	log *zap.Logger
}

// NewServer wraps w for HTTP serving.
func NewServer(w *Worker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{w: w, log: log}
}

// Mux builds the route table; callers embed it in their own
// http.Server{Handler: mux} the way cmd/coordinator/main.go does.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/run_domain", s.handleRunDomain)
	mux.HandleFunc("/apply_table_ops", s.handleApplyTableOps)
	mux.HandleFunc("/update_timestamp", s.handleUpdateTimestamp)
	mux.HandleFunc("/remove_nodes", s.handleRemoveNodes)
	mux.HandleFunc("/gossip_domain_information", s.handleGossip)
	mux.HandleFunc("/get_statistics", s.handleGetStatistics)
	mux.HandleFunc("/flush_partial", s.handleFlushPartial)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := wire.Unmarshal(body, out); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeReply(w http.ResponseWriter, v any) {
	body, err := wire.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", wire.ContentType)
	_, _ = w.Write(body)
}

func (s *Server) handleRunDomain(w http.ResponseWriter, r *http.Request) {
	var req RunDomainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.w.RunDomain(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeReply(w, resp)
}

func (s *Server) handleApplyTableOps(w http.ResponseWriter, r *http.Request) {
	var req ApplyTableOpsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.w.ApplyTableOps(req); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeReply(w, struct{}{})
}

func (s *Server) handleUpdateTimestamp(w http.ResponseWriter, r *http.Request) {
	var req UpdateTimestampRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.w.UpdateTimestamp(req); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeReply(w, struct{}{})
}

func (s *Server) handleRemoveNodes(w http.ResponseWriter, r *http.Request) {
	var req RemoveNodesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.w.RemoveNodes(req); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeReply(w, struct{}{})
}

// handleGossip accepts the domain placements the Leader broadcasts
// (spec.md §4.5 GossipDomainInformation); nothing downstream currently
// consults it (cross-domain routing goes through the Leader's Channel
// Coordinator, not a worker-local copy), so this just logs receipt.
func (s *Server) handleGossip(w http.ResponseWriter, r *http.Request) {
	var req []migration.DomainDescriptor
	if !decodeBody(w, r, &req) {
		return
	}
	s.log.Info("received domain gossip", zap.Int("domains", len(req)))
	writeReply(w, struct{}{})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	writeReply(w, s.w.GetStatistics())
}

func (s *Server) handleFlushPartial(w http.ResponseWriter, r *http.Request) {
	writeReply(w, struct{ BytesFreed int }{BytesFreed: s.w.FlushPartial()})
}
