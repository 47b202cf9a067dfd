package leader

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/replication"
	"github.com/flowmesh/dataflow/internal/wire"
)

// Server exposes a Leader over the Controller RPC surface spec.md §6
// tabulates. Grounded on cmd/coordinator/main.go's http.ServeMux +
// handleXxx routing, the same pattern internal/worker/http.go follows for
// the worker side.
type Server struct {
	l   *Leader
	log *zap.Logger
}

func NewServer(l *Leader, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{l: l, log: log}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/graph", s.handleGraph(false))
	mux.HandleFunc("/simple_graph", s.handleGraph(true))
	mux.HandleFunc("/inputs", s.handleInputs)
	mux.HandleFunc("/outputs", s.handleOutputs)
	mux.HandleFunc("/extend_recipe", s.handleExtendRecipe)
	mux.HandleFunc("/install_recipe", s.handleInstallRecipe)
	mux.HandleFunc("/remove_query", s.handleRemoveQuery)
	mux.HandleFunc("/table_builder", s.handleTableBuilder)
	mux.HandleFunc("/view_builder", s.handleViewBuilder)
	mux.HandleFunc("/set_replication_offset", s.handleSetReplicationOffset)
	mux.HandleFunc("/replicate_readers", s.handleReplicateReaders)
	mux.HandleFunc("/replication_offset", s.handleReplicationOffset)
	mux.HandleFunc("/get_info", s.handleGetInfo)
	mux.HandleFunc("/workers", s.handleWorkers(false))
	mux.HandleFunc("/healthy_workers", s.handleWorkers(true))
	mux.HandleFunc("/remove_node", s.handleRemoveNode)
	mux.HandleFunc("/nodes", s.handleNodes)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if len(body) == 0 {
		return true
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

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) handleGraph(simple bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		_, _ = w.Write([]byte(s.l.Graphviz(simple)))
	}
}

func (s *Server) handleInputs(w http.ResponseWriter, r *http.Request) {
	writeReply(w, s.l.Inputs())
}

func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	writeReply(w, s.l.Outputs())
}

func (s *Server) handleExtendRecipe(w http.ResponseWriter, r *http.Request) {
	var spec RecipeSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	result, err := s.l.ExtendRecipe(r.Context(), spec.Recipe, spec.ReplicationOffset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReply(w, result)
}

func (s *Server) handleInstallRecipe(w http.ResponseWriter, r *http.Request) {
	var spec RecipeSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	result, err := s.l.InstallRecipe(r.Context(), spec.Recipe, spec.ReplicationOffset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReply(w, result)
}

func (s *Server) handleRemoveQuery(w http.ResponseWriter, r *http.Request) {
	var name string
	if !decodeBody(w, r, &name) {
		return
	}
	result, err := s.l.RemoveQuery(r.Context(), name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReply(w, result)
}

func (s *Server) handleTableBuilder(w http.ResponseWriter, r *http.Request) {
	var name string
	if !decodeBody(w, r, &name) {
		return
	}
	tb, err := s.l.TableBuilder(name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReply(w, tb)
}

func (s *Server) handleViewBuilder(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	replicas, err := s.l.ViewBuilder(req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReply(w, replicas)
}

func (s *Server) handleSetReplicationOffset(w http.ResponseWriter, r *http.Request) {
	var offset *replication.Offset
	if !decodeBody(w, r, &offset) {
		return
	}
	if offset == nil {
		writeReply(w, struct{}{})
		return
	}
	if err := s.l.SetReplicationOffset(r.Context(), *offset); err != nil {
		writeErr(w, err)
		return
	}
	writeReply(w, struct{}{})
}

func (s *Server) handleReplicateReaders(w http.ResponseWriter, r *http.Request) {
	var spec ReaderReplicationSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	result, err := s.l.ReplicateReaders(r.Context(), spec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReply(w, result)
}

func (s *Server) handleReplicationOffset(w http.ResponseWriter, r *http.Request) {
	writeReply(w, s.l.ReplicationOffset())
}

func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	writeReply(w, s.l.GetInfo())
}

func (s *Server) handleWorkers(healthyOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if healthyOnly {
			writeReply(w, s.l.HealthyWorkers())
			return
		}
		writeReply(w, s.l.Workers())
	}
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	var idx graph.Index
	if !decodeBody(w, r, &idx) {
		return
	}
	if err := s.l.RemoveNode(r.Context(), idx); err != nil {
		writeErr(w, err)
		return
	}
	writeReply(w, struct{}{})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	worker := r.URL.Query().Get("w")
	info := s.l.GetInfo()
	type row struct {
		Index       graph.Index
		Name        string
		Description string
	}
	var out []row
	for _, n := range info.Nodes {
		if worker != "" {
			addrs := s.l.coordinator.Shards(n.Domain, 1)
			if len(addrs) == 0 || addrs[0] != worker {
				continue
			}
		}
		out = append(out, row{Index: n.Index, Name: n.Name, Description: n.Description})
	}
	writeReply(w, out)
}
