package coordinator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/jubatus/internal/cluster"
)

// fakeLinearNode serves just enough of a node's /info and
// /instances/{name}/mix/diff surface to exercise mixLinear, tracking
// which diffs it has been asked to accept.
type fakeLinearNode struct {
	name     string
	diff     []byte
	received [][]byte
}

func newFakeLinearNode(instance string, diff []byte) *httptest.Server {
	n := &fakeLinearNode{name: instance, diff: diff}
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(struct {
			Kinds map[string]string `json:"kinds"`
		}{Kinds: map[string]string{n.name: "linear"}})
	})
	mux.HandleFunc("/instances/"+instance+"/mix/diff", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write(n.diff)
			return
		}
		body, _ := io.ReadAll(r.Body)
		n.received = append(n.received, body)
		json.NewEncoder(w).Encode(struct {
			Accepted bool `json:"accepted"`
		}{Accepted: true})
	})
	return httptest.NewServer(mux)
}

func TestMixRoundDriverMixLinear(t *testing.T) {
	srvA := newFakeLinearNode("weights", []byte("diff-a"))
	defer srvA.Close()
	srvB := newFakeLinearNode("weights", []byte("diff-b"))
	defer srvB.Close()

	registry := NewInstanceRegistry()
	require.NoError(t, registry.AssignInstance("weights", "a", true))
	require.NoError(t, registry.AssignInstance("weights", "b", false))

	nodes := []cluster.NodeInfo{{ID: "a", Addr: srvA.URL}, {ID: "b", Addr: srvB.URL}}
	health := NewHealthMonitor(0, zap.NewNop())

	driver := NewMixRoundDriver(registry, health, func() []cluster.NodeInfo { return nodes }, zap.NewNop())
	err := driver.mixLinear(context.Background(), "weights", srvA.URL, srvB.URL)
	require.NoError(t, err)
	err = driver.mixLinear(context.Background(), "weights", srvB.URL, srvA.URL)
	require.NoError(t, err)
}

func TestMixRoundDriverPeerAddrsFiltersUnhealthy(t *testing.T) {
	registry := NewInstanceRegistry()
	require.NoError(t, registry.AssignInstance("rec", "a", true))
	require.NoError(t, registry.AssignInstance("rec", "b", false))

	nodes := []cluster.NodeInfo{{ID: "a", Addr: "http://a"}, {ID: "b", Addr: "http://b"}}
	health := NewHealthMonitor(0, zap.NewNop())
	health.nodes["b"] = &NodeHealth{NodeID: "b", Status: "unhealthy"}

	driver := NewMixRoundDriver(registry, health, func() []cluster.NodeInfo { return nodes }, zap.NewNop())
	addrs := driver.peerAddrs(registry.Peers("rec"))
	assert.Equal(t, []string{"http://a"}, addrs)
}

func TestMixRoundDriverSkipsInstancesWithoutTwoPeers(t *testing.T) {
	registry := NewInstanceRegistry()
	require.NoError(t, registry.AssignInstance("solo", "a", true))

	health := NewHealthMonitor(0, zap.NewNop())
	driver := NewMixRoundDriver(registry, health, func() []cluster.NodeInfo {
		return []cluster.NodeInfo{{ID: "a", Addr: "http://a"}}
	}, zap.NewNop())

	// Should return nil (no-op), not attempt any network call.
	err := driver.mixInstance(context.Background(), "solo")
	assert.NoError(t, err)
}
