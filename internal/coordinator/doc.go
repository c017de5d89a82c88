// Package coordinator implements the control plane for a Jubatus cluster:
// it tracks which nodes host which model instances, monitors node health,
// and drives periodic MIX rounds that reconcile each instance's state
// across its peers.
//
// # Overview
//
// Unlike a storage coordinator that owns authoritative data placement, the
// Jubatus coordinator owns only placement metadata and liveness. It stores
// no model state; during a MIX round it fetches a serialized diff or pull
// result from one node over HTTP and posts it to the other. It decides
// which pairs of nodes mix next and keeps that decision clear of
// unhealthy peers.
//
// # Core Components
//
// InstanceRegistry: tracks which nodes host which model instances.
//   - Maintains node ↔ instance assignments with a primary flag each;
//     the number of primaries per instance is not limited
//   - Provides the peer set for a given instance (AssignInstance/Peers)
//   - Thread-safe for concurrent access from HTTP handlers and the mix
//     round driver
//
// HealthMonitor: polls registered nodes and classifies them healthy or
// unhealthy.
//   - Runs on a configurable interval via Start/Stop
//   - Calls an operator-supplied callback on a healthy→unhealthy
//     transition (used here to log exclusion from MIX peer sets)
//   - FilterHealthy narrows a candidate peer list before a MIX round
//     picks a pair, treating unmonitored nodes as healthy by default
//
// MixRoundDriver: the network-facing counterpart of internal/mixer's
// in-process Mixer.
//   - For each known instance, draws a random pair of healthy peers
//     hosting it
//   - Learns the instance's mixable kind (linear or push) from the
//     node's /info endpoint, then drives the matching exchange:
//     a symmetric diff/merge for linear contracts, an asymmetric
//     pull/push for push contracts
//   - Runs once per tick; a failed round for one instance never blocks
//     others
//
// # Request Handling
//
// cmd/coordinator wires these components behind a small HTTP surface:
// node registration, node listing, control-plane broadcast, instance
// assignment, and instance listing. The coordinator itself never serves
// model traffic — train/predict are handled by the nodes directly; for MIX
// it only relays the serialized payloads between two nodes.
//
// # Concurrency
//
// InstanceRegistry and HealthMonitor each guard their state with their
// own mutex. MixRoundDriver holds no long-lived state beyond its peer
// selection RNG, which is not guarded; RunRound mixes the known instances
// one after another.
//
// # See Also
//
// Related packages:
//   - internal/cluster: node registration/broadcast types and the
//     PostJSON/GetJSON helpers used to reach nodes over HTTP
//   - internal/mixer: the in-process MIX instance and mixer that
//     MixRoundDriver drives remotely
//   - cmd/coordinator: coordinator server implementation
//   - cmd/node: the MIX/train/predict HTTP surface MixRoundDriver talks to
package coordinator
