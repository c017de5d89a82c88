// Package cluster provides the core distributed system types and
// communication helpers for a Jubatus cluster: node identity, health
// status, and the HTTP/JSON request/response shapes nodes and the
// coordinator exchange.
//
// # Overview
//
// The package implements a coordinator-based topology: a single
// coordinator process tracks node membership and model-instance
// placement and drives MIX rounds by fetching a diff from one node and
// posting it to another.
// This package supplies the shared vocabulary both sides speak —
// NodeInfo, RegisterRequest, BroadcastRequest — plus PostJSON/GetJSON,
// small HTTP helpers used by every caller that needs to reach another
// node or the coordinator.
//
// # Architecture
//
//	              ┌──────────────┐
//	              │ Coordinator  │
//	              │              │
//	              │ - Placement  │
//	              │ - Health Mon │
//	              │ - Broadcasts │
//	              └──────┬───────┘
//	                     │
//	      ┌──────────────┼──────────────────┐
//	      │              │                  │
//	┌─────▼─────┐  ┌─────▼─────┐      ┌─────▼─────┐
//	│  Node 1   │  │  Node 2   │      │  Node 3   │
//	│           │  │           │      │           │
//	│ Instances │  │ Instances │      │ Instances │
//	└───────────┘  └───────────┘      └───────────┘
//
// # Core Components
//
// NodeInfo: identifies a worker node and its last-known health.
//   - Tracks node identity, address, and health status
//   - Populated and returned by the coordinator's /nodes endpoint
//
// RegisterRequest: the payload a node POSTs to /cluster/register on
// startup. Registration only records membership — model-instance
// placement is a separate, explicit step against the coordinator's
// /instances/assign endpoint.
//
// BroadcastRequest: a control-plane fan-out message the coordinator
// forwards to every registered node's given path.
//
// # Communication Protocol
//
// The package uses HTTP/JSON for all inter-node and node-coordinator
// communication:
//
// Node Registration (POST /cluster/register):
//   - A node announces itself to the coordinator on startup
//   - Re-registering the same node ID updates its address in place
//
// Health Checking:
//   - The coordinator's health monitor polls each node periodically
//   - Unhealthy nodes are excluded from MIX peer selection until they
//     recover
//
// State Broadcasting (POST /broadcast):
//   - Coordinator pushes a payload to a fixed path on every node
//   - Failed broadcasts for one node are reported but don't block
//     delivery to the rest
//
// # Concurrency Model
//
// PostJSON and GetJSON are safe for concurrent use; the shared
// httpClient pools connections across callers. Types in this package
// carry no internal locking — callers owning a NodeInfo slice or map are
// responsible for their own synchronization (see
// internal/coordinator.InstanceRegistry for an example).
//
// # See Also
//
// Related packages:
//   - internal/coordinator: node health monitoring, instance placement,
//     and the MIX round driver built on top of these types
//   - cmd/node, cmd/coordinator: the processes that speak this protocol
package cluster
