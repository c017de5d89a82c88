package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/dreamware/jubatus/internal/jerrors"
	"github.com/dreamware/jubatus/internal/lsh"
	"github.com/dreamware/jubatus/internal/model"
	"github.com/dreamware/jubatus/internal/table"
)

// server hosts a fixed set of named model instances and exposes
// training, prediction, and MIX endpoints for each. Instances are
// created once at startup from config and never added or removed at
// runtime, since a model instance's type must be known up front to
// configure its LSH/clustering parameters.
type server struct {
	nodeID   string
	handles  map[string]model.Handle
	log      *zap.Logger
	requests *prometheus.CounterVec
	diffSize *prometheus.HistogramVec
}

func newServer(nodeID string, handles map[string]model.Handle, log *zap.Logger) *server {
	return &server{
		nodeID:  nodeID,
		handles: handles,
		log:     log,
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jubatus",
			Subsystem: "node",
			Name:      "requests_total",
			Help:      "Requests served per instance and endpoint.",
		}, []string{"instance", "endpoint", "status"}),
		diffSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jubatus",
			Subsystem: "node",
			Name:      "mix_diff_bytes",
			Help:      "Size in bytes of diffs exchanged over MIX endpoints.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"instance", "endpoint"}),
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/instances/", s.handleInstance)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.handles))
	kinds := make(map[string]string, len(s.handles))
	for name, h := range s.handles {
		names = append(names, name)
		kinds[name] = h.Kind()
	}
	resp := struct {
		NodeID    string            `json:"node_id"`
		Instances []string          `json:"instances"`
		Kinds     map[string]string `json:"kinds"`
	}{NodeID: s.nodeID, Instances: names, Kinds: kinds}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleInstance routes /instances/{name}/{op} requests to the named
// instance's handle. Recognized ops: train, predict, mix/argument,
// mix/pull, mix/push, mix/diff.
func (s *server) handleInstance(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/instances/")
	slash := strings.Index(path, "/")
	if slash == -1 {
		http.Error(w, "missing instance operation", http.StatusBadRequest)
		return
	}
	name, op := path[:slash], path[slash+1:]

	h, ok := s.handles[name]
	if !ok {
		http.Error(w, "unknown instance", http.StatusNotFound)
		return
	}

	switch {
	case op == "train" && r.Method == http.MethodPost:
		s.handleTrain(w, r, name, h)
	case op == "predict" && r.Method == http.MethodPost:
		s.handlePredict(w, r, name, h)
	case op == "mix/argument" && r.Method == http.MethodGet:
		s.handleMixArgument(w, r, name, h)
	case op == "mix/pull" && r.Method == http.MethodPost:
		s.handleMixPull(w, r, name, h)
	case op == "mix/push" && r.Method == http.MethodPost:
		s.handleMixPush(w, r, name, h)
	case op == "mix/diff" && r.Method == http.MethodGet:
		s.handleMixGetDiff(w, r, name, h)
	case op == "mix/diff" && r.Method == http.MethodPost:
		s.handleMixPutDiff(w, r, name, h)
	default:
		http.Error(w, "unknown operation", http.StatusNotFound)
	}
}

func (s *server) count(instance, endpoint, status string) {
	s.requests.WithLabelValues(instance, endpoint, status).Inc()
}

// trainRequest is deliberately loose: only the fields relevant to the
// target instance's family need to be set.
type trainRequest struct {
	ID      string             `json:"id"`
	Vector  lsh.SparseVector   `json:"vector,omitempty"`
	Columns map[string]float64 `json:"columns,omitempty"`
	Terms   []string           `json:"terms,omitempty"`
}

func (s *server) handleTrain(w http.ResponseWriter, r *http.Request, name string, h model.Handle) {
	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.count(name, "train", "bad_request")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var trainErr error
	switch underlying := h.Underlying().(type) {
	case *model.Recommender:
		underlying.Train(req.ID, req.Vector)
	case *model.Anomaly:
		cols := make(table.Columns, len(req.Columns))
		for k, v := range req.Columns {
			cols[k] = v
		}
		underlying.Add(req.ID, cols)
	case *model.WeightModel:
		underlying.UpdateWeight(req.Terms)
	default:
		trainErr = jerrors.New(jerrors.ArgumentUnmatch, "node.train", "instance %q has no trainable handler", name)
	}

	if trainErr != nil {
		s.count(name, "train", "error")
		http.Error(w, trainErr.Error(), http.StatusBadRequest)
		return
	}
	s.count(name, "train", "ok")
	w.WriteHeader(http.StatusNoContent)
}

type predictRequest struct {
	ID     string           `json:"id"`
	Vector lsh.SparseVector `json:"vector,omitempty"`
	K      int              `json:"k,omitempty"`
	Terms  []string         `json:"terms,omitempty"`
}

func (s *server) handlePredict(w http.ResponseWriter, r *http.Request, name string, h model.Handle) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.count(name, "predict", "bad_request")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.K <= 0 {
		req.K = 10
	}

	var resp any
	switch underlying := h.Underlying().(type) {
	case *model.Recommender:
		resp = underlying.SimilarRow(req.Vector, req.K)
	case *model.Anomaly:
		_, cols, ok := underlying.GetRow(req.ID)
		if !ok {
			s.count(name, "predict", "not_found")
			http.Error(w, "row not found", http.StatusNotFound)
			return
		}
		resp = cols
	case *model.WeightModel:
		resp = underlying.GetWeight(req.Terms)
	default:
		s.count(name, "predict", "error")
		http.Error(w, "instance has no predict handler", http.StatusBadRequest)
		return
	}

	s.count(name, "predict", "ok")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) handleMixArgument(w http.ResponseWriter, _ *http.Request, name string, h model.Handle) {
	arg, err := h.GetArgument()
	if err != nil {
		s.writeMixError(w, name, "mix_argument", err)
		return
	}
	s.count(name, "mix_argument", "ok")
	s.writeBinary(w, arg)
}

func (s *server) handleMixPull(w http.ResponseWriter, r *http.Request, name string, h model.Handle) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.count(name, "mix_pull", "bad_request")
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	diff, err := h.Pull(body)
	if err != nil {
		s.writeMixError(w, name, "mix_pull", err)
		return
	}
	s.diffSize.WithLabelValues(name, "mix_pull").Observe(float64(len(diff)))
	s.count(name, "mix_pull", "ok")
	s.writeBinary(w, diff)
}

func (s *server) handleMixPush(w http.ResponseWriter, r *http.Request, name string, h model.Handle) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.count(name, "mix_push", "bad_request")
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	s.diffSize.WithLabelValues(name, "mix_push").Observe(float64(len(body)))
	if err := h.Push(body); err != nil {
		s.writeMixError(w, name, "mix_push", err)
		return
	}
	s.count(name, "mix_push", "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMixGetDiff(w http.ResponseWriter, _ *http.Request, name string, h model.Handle) {
	diff, err := h.GetDiff()
	if err != nil {
		s.writeMixError(w, name, "mix_diff_get", err)
		return
	}
	s.diffSize.WithLabelValues(name, "mix_diff_get").Observe(float64(len(diff)))
	s.count(name, "mix_diff_get", "ok")
	s.writeBinary(w, diff)
}

func (s *server) handleMixPutDiff(w http.ResponseWriter, r *http.Request, name string, h model.Handle) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.count(name, "mix_diff_put", "bad_request")
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	s.diffSize.WithLabelValues(name, "mix_diff_put").Observe(float64(len(body)))
	accepted, err := h.PutDiff(body)
	if err != nil {
		s.writeMixError(w, name, "mix_diff_put", err)
		return
	}
	s.count(name, "mix_diff_put", "ok")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Accepted bool `json:"accepted"`
	}{Accepted: accepted})
}

func (s *server) writeMixError(w http.ResponseWriter, instance, endpoint string, err error) {
	s.count(instance, endpoint, "error")
	s.log.Warn("mix endpoint failed", zap.String("instance", instance), zap.String("endpoint", endpoint), zap.Error(err))
	if jerrors.Is(err, jerrors.ArgumentUnmatch) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *server) writeBinary(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/msgpack")
	_, _ = w.Write(b)
}
