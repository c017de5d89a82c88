package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/dreamware/jubatus/internal/cluster"
)

// MixRoundDriver runs periodic MIX rounds across the nodes hosting each
// known model instance: it is the network-facing counterpart of
// internal/mixer.Mixer, which runs the same kind of round in-process
// against local shards. Where internal/mixer.Mixer.Mix folds every local
// shard's GetDiff into one diff and installs it on all shards via PutDiff,
// MixRoundDriver picks a random pair of remote nodes and exchanges
// payloads between them over HTTP against their /instances/{name}/mix/*
// endpoints.
type MixRoundDriver struct {
	registry *InstanceRegistry
	health   *HealthMonitor
	nodes    func() []cluster.NodeInfo
	client   *http.Client
	rnd      *rand.Rand
	log      *zap.Logger
}

// NewMixRoundDriver builds a driver over registry, gating peer selection
// through health, and resolving node IDs to addresses via nodes.
func NewMixRoundDriver(registry *InstanceRegistry, health *HealthMonitor, nodes func() []cluster.NodeInfo, log *zap.Logger) *MixRoundDriver {
	if log == nil {
		log = zap.NewNop()
	}
	return &MixRoundDriver{
		registry: registry,
		health:   health,
		nodes:    nodes,
		client:   &http.Client{Timeout: 10 * time.Second},
		rnd:      rand.New(rand.NewSource(0)),
		log:      log.Named("mix_round"),
	}
}

// RunRound drives one MIX round for every known instance, logging but not
// failing the round on a single instance's error — one stuck peer must
// not block convergence for every other instance.
func (d *MixRoundDriver) RunRound(ctx context.Context) {
	for _, instanceID := range d.registry.Instances() {
		if err := d.mixInstance(ctx, instanceID); err != nil {
			d.log.Warn("mix round failed", zap.String("instance", instanceID), zap.Error(err))
		}
	}
}

func (d *MixRoundDriver) mixInstance(ctx context.Context, instanceID string) error {
	peers := d.registry.Peers(instanceID)
	if len(peers) < 2 {
		return nil
	}

	addrs := d.peerAddrs(peers)
	if len(addrs) < 2 {
		return nil
	}

	from, to := d.pickPair(addrs)
	kind, err := d.instanceKind(ctx, from, instanceID)
	if err != nil {
		return fmt.Errorf("learn instance kind: %w", err)
	}

	switch kind {
	case "linear":
		return d.mixLinear(ctx, instanceID, from, to)
	case "push":
		return d.mixPush(ctx, instanceID, from, to)
	default:
		return fmt.Errorf("unrecognized instance kind %q", kind)
	}
}

// peerAddrs resolves peer node IDs to addresses, keeping only nodes the
// health monitor currently considers healthy.
func (d *MixRoundDriver) peerAddrs(peerIDs []string) []string {
	byID := make(map[string]cluster.NodeInfo, len(peerIDs))
	want := make(map[string]bool, len(peerIDs))
	for _, id := range peerIDs {
		want[id] = true
	}
	for _, n := range d.nodes() {
		if want[n.ID] {
			byID[n.ID] = n
		}
	}
	var candidates []cluster.NodeInfo
	for _, n := range byID {
		candidates = append(candidates, n)
	}
	healthy := d.health.FilterHealthy(candidates)

	addrs := make([]string, 0, len(healthy))
	for _, n := range healthy {
		addrs = append(addrs, n.Addr)
	}
	return addrs
}

// pickPair draws two distinct addresses from addrs — the network analogue
// of internal/mixer.Mixer.GetRandom's local peer draw.
func (d *MixRoundDriver) pickPair(addrs []string) (from, to string) {
	i := d.rnd.Intn(len(addrs))
	j := d.rnd.Intn(len(addrs) - 1)
	if j >= i {
		j++
	}
	return addrs[i], addrs[j]
}

func (d *MixRoundDriver) instanceKind(ctx context.Context, addr, instanceID string) (string, error) {
	var info struct {
		Kinds map[string]string `json:"kinds"`
	}
	if err := cluster.GetJSON(ctx, addr+"/info", &info); err != nil {
		return "", err
	}
	kind, ok := info.Kinds[instanceID]
	if !ok {
		return "", fmt.Errorf("node %s does not host instance %q", addr, instanceID)
	}
	return kind, nil
}

// mixLinear drives a symmetric diff exchange between two Linear-mixable
// replicas: each side's diff is installed on the other via PutDiff.
func (d *MixRoundDriver) mixLinear(ctx context.Context, instanceID, from, to string) error {
	diffFrom, err := d.getBinaryPath(ctx, from, instanceID, "mix/diff")
	if err != nil {
		return fmt.Errorf("get diff from %s: %w", from, err)
	}
	if _, err := d.postBinary(ctx, to, instanceID, "mix/diff", diffFrom); err != nil {
		return fmt.Errorf("put diff on %s: %w", to, err)
	}

	diffTo, err := d.getBinaryPath(ctx, to, instanceID, "mix/diff")
	if err != nil {
		return fmt.Errorf("get diff from %s: %w", to, err)
	}
	if _, err := d.postBinary(ctx, from, instanceID, "mix/diff", diffTo); err != nil {
		return fmt.Errorf("put diff on %s: %w", from, err)
	}
	return nil
}

// mixPush drives the asymmetric argument/pull/push exchange: "to" reports
// what it has via GetArgument, "from" computes the gap via Pull, and the
// resulting diff is installed on "to" via Push.
func (d *MixRoundDriver) mixPush(ctx context.Context, instanceID, from, to string) error {
	arg, err := d.getBinaryPath(ctx, to, instanceID, "mix/argument")
	if err != nil {
		return fmt.Errorf("get argument from %s: %w", to, err)
	}
	diff, err := d.postBinary(ctx, from, instanceID, "mix/pull", arg)
	if err != nil {
		return fmt.Errorf("pull diff from %s: %w", from, err)
	}
	if err := d.pushBinary(ctx, to, instanceID, diff); err != nil {
		return fmt.Errorf("push diff to %s: %w", to, err)
	}
	return nil
}

func (d *MixRoundDriver) getBinaryPath(ctx context.Context, addr, instanceID, op string) ([]byte, error) {
	url := fmt.Sprintf("%s/instances/%s/%s", addr, instanceID, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// postBinary issues a POST and returns the response body, used for
// mix/diff (which echoes a JSON accept flag, not a diff) and mix/pull
// (which echoes a diff). Callers that don't need the response body
// still benefit from the status-code check.
func (d *MixRoundDriver) postBinary(ctx context.Context, addr, instanceID, op string, payload []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/instances/%s/%s", addr, instanceID, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/msgpack")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (d *MixRoundDriver) pushBinary(ctx context.Context, addr, instanceID string, payload []byte) error {
	url := fmt.Sprintf("%s/instances/%s/mix/push", addr, instanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/msgpack")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %s: %d: %s", url, resp.StatusCode, body)
	}
	return nil
}
