package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dreamware/jubatus/internal/cluster"
	"github.com/dreamware/jubatus/internal/coordinator"
)

// server holds the coordinator's runtime state: the set of registered
// nodes, the model-instance placement registry, the health monitor gating
// MIX participation, and the round driver that actually exercises MIX
// across nodes.
type server struct {
	registry  *coordinator.InstanceRegistry
	health    *coordinator.HealthMonitor
	mixDriver *coordinator.MixRoundDriver

	nodes []cluster.NodeInfo
	mu    sync.RWMutex

	log *zap.Logger
}

func newServer(cfg *CoordinatorConfig, log *zap.Logger) *server {
	s := &server{
		registry: coordinator.NewInstanceRegistry(),
		health:   coordinator.NewHealthMonitor(cfg.HealthCheckInterval, log),
		log:      log,
	}
	s.mixDriver = coordinator.NewMixRoundDriver(s.registry, s.health, s.snapshotNodes, log)

	s.health.SetOnUnhealthy(func(nodeID string) {
		s.log.Warn("node marked unhealthy, excluded from MIX peer sets", zap.String("node_id", nodeID))
	})

	return s
}

func (s *server) snapshotNodes() []cluster.NodeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]cluster.NodeInfo(nil), s.nodes...)
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/cluster/register", s.handleRegister)
	mux.HandleFunc("/nodes", s.handleListNodes)
	mux.HandleFunc("/broadcast", s.handleBroadcast)
	mux.HandleFunc("/instances", s.handleListInstances)
	mux.HandleFunc("/instances/assign", s.handleAssignInstance)
	return mux
}

// handleRegister records a node's membership. A fresh node carries no
// instance assignments of its own — an operator (or a future
// auto-placement pass) must explicitly assign it via /instances/assign
// before it joins any MIX round.
func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req cluster.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Node.ID == "" || req.Node.Addr == "" {
		http.Error(w, "missing id/addr", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.nodes, func(n cluster.NodeInfo) bool { return n.ID == req.Node.ID })
	if idx >= 0 {
		s.nodes[idx] = req.Node
	} else {
		s.nodes = append(s.nodes, req.Node)
	}
	s.mu.Unlock()

	s.log.Info("node registered", zap.String("node_id", req.Node.ID), zap.String("addr", req.Node.Addr))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	nodes := make([]cluster.NodeInfo, len(s.nodes))
	copy(nodes, s.nodes)
	s.mu.RUnlock()

	allHealth := s.health.GetAllNodeHealth()
	for i, n := range nodes {
		if health := allHealth[n.ID]; health != nil {
			nodes[i].Status = health.Status
			nodes[i].LastHealthCheck = health.LastCheck
		} else {
			nodes[i].Status = "unknown"
		}
	}

	_ = json.NewEncoder(w).Encode(struct {
		Nodes []cluster.NodeInfo `json:"nodes"`
	}{Nodes: nodes})
}

// handleBroadcast fans req.Payload out to req.Path on every registered
// node — a simple control-plane fan-out mechanism independent of
// per-instance placement.
func (s *server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req cluster.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Path == "" || req.Path[0] != '/' {
		http.Error(w, "path must start with '/'", http.StatusBadRequest)
		return
	}

	targets := s.snapshotNodes()

	type result struct {
		NodeID string `json:"node_id"`
		Err    string `json:"err,omitempty"`
	}
	out := make([]result, 0, len(targets))

	ctx, cancel := context.WithTimeout(r.Context(), 4*time.Second)
	defer cancel()

	for _, n := range targets {
		url := n.Addr + req.Path
		err := cluster.PostJSON(ctx, url, req.Payload, nil)
		res := result{NodeID: n.ID}
		if err != nil {
			res.Err = err.Error()
		}
		out = append(out, res)
	}

	_ = json.NewEncoder(w).Encode(struct {
		Results []result `json:"results"`
		SentTo  int      `json:"sent_to"`
	}{Results: out, SentTo: len(out)})
}

func (s *server) handleListInstances(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(struct {
		Assignments []*coordinator.InstanceAssignment `json:"assignments"`
	}{Assignments: s.registry.GetAllAssignments()})
}

type assignInstanceRequest struct {
	InstanceID string `json:"instance_id"`
	NodeID     string `json:"node_id"`
	Primary    bool   `json:"primary"`
}

// handleAssignInstance lets an operator (or a placement script) place a
// model instance on a node, making that node a MIX peer for it on the
// next round.
func (s *server) handleAssignInstance(w http.ResponseWriter, r *http.Request) {
	var req assignInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.registry.AssignInstance(req.InstanceID, req.NodeID, req.Primary); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
