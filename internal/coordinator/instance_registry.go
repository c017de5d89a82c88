// Package coordinator implements the orchestration layer for the cluster:
// node registration, health monitoring, and tracking which node hosts which
// model instance. See doc.go for complete package documentation.
package coordinator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// InstanceAssignment records which node hosts a named model instance
// (e.g. "news-classifier", "session-recommender") and whether that node is
// the instance's primary. Unlike a key-range shard, a model instance isn't
// partitioned data — every node assigned to it holds a full, independently
// mixable replica (internal/mixer.Instance) that converges via MIX rounds
// rather than by owning a slice of the keyspace.
//
// Thread Safety:
// InstanceAssignment structs are immutable once created. The registry
// returns copies to prevent external modification.
type InstanceAssignment struct {
	// InstanceID identifies the model instance, matching the ID passed to
	// internal/mixer.NewInstance on the node itself.
	InstanceID string

	// NodeID identifies the node hosting this replica.
	NodeID string

	// IsPrimary records the primary flag given at assignment. Neither the
	// registry nor the nodes restrict training on non-primary replicas;
	// every assigned replica participates in MIX.
	IsPrimary bool
}

// InstanceRegistry tracks which nodes host which model instances, serving
// as the coordinator's placement record for listing assignments and for
// driving periodic MIX rounds (every node assigned to an instance is a MIX
// peer for it). It does not route training/serving requests.
//
// Concurrency Model:
//   - Read operations use RLock for parallel access
//   - Write operations use Lock for exclusive access
//   - All returned data is copied to prevent races
type InstanceRegistry struct {
	// assignments maps instanceID -> nodeID -> assignment. A model
	// instance may be hosted on several nodes simultaneously (that's the
	// whole point of MIX), so the inner map, not a single node ID, is the
	// unit of placement.
	assignments map[string]map[string]*InstanceAssignment

	mu sync.RWMutex
}

// NewInstanceRegistry creates an empty instance registry.
func NewInstanceRegistry() *InstanceRegistry {
	return &InstanceRegistry{
		assignments: make(map[string]map[string]*InstanceAssignment),
	}
}

// AssignInstance records that nodeID hosts instanceID, creating or
// updating the assignment. Previous primary status for the same
// (instanceID, nodeID) pair is overwritten.
func (r *InstanceRegistry) AssignInstance(instanceID, nodeID string, isPrimary bool) error {
	if instanceID == "" {
		return errors.New("instance ID cannot be empty")
	}
	if nodeID == "" {
		return errors.New("node ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byNode, ok := r.assignments[instanceID]
	if !ok {
		byNode = make(map[string]*InstanceAssignment)
		r.assignments[instanceID] = byNode
	}
	byNode[nodeID] = &InstanceAssignment{
		InstanceID: instanceID,
		NodeID:     nodeID,
		IsPrimary:  isPrimary,
	}
	return nil
}

// RemoveInstance drops nodeID's hosting of instanceID, e.g. after the node
// is decommissioned or the instance is deleted on that node. It is a no-op
// if the pair was never assigned.
func (r *InstanceRegistry) RemoveInstance(instanceID, nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byNode, ok := r.assignments[instanceID]
	if !ok {
		return
	}
	delete(byNode, nodeID)
	if len(byNode) == 0 {
		delete(r.assignments, instanceID)
	}
}

// RemoveNode drops every assignment for nodeID across all instances,
// typically called once a node is confirmed gone: a dead peer stops
// participating in every MIX round it was part of, not just one.
func (r *InstanceRegistry) RemoveNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for instanceID, byNode := range r.assignments {
		delete(byNode, nodeID)
		if len(byNode) == 0 {
			delete(r.assignments, instanceID)
		}
	}
}

// GetAssignment returns the assignment of instanceID on nodeID, or nil if
// that node doesn't host the instance.
func (r *InstanceRegistry) GetAssignment(instanceID, nodeID string) *InstanceAssignment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byNode, ok := r.assignments[instanceID]
	if !ok {
		return nil
	}
	a, ok := byNode[nodeID]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// Peers returns every node hosting instanceID, in no particular order.
// This is the MIX round driver's peer set for that instance: every member
// is eligible to be picked as the random mix target (internal/mixer's
// get_random semantics), subject to the health monitor's gating.
func (r *InstanceRegistry) Peers(instanceID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byNode, ok := r.assignments[instanceID]
	if !ok {
		return nil
	}
	nodes := make([]string, 0, len(byNode))
	for nodeID := range byNode {
		nodes = append(nodes, nodeID)
	}
	return nodes
}

// PrimaryNode returns the node currently marked primary for instanceID, or
// "" if none is assigned or none is primary.
func (r *InstanceRegistry) PrimaryNode(instanceID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.assignments[instanceID] {
		if a.IsPrimary {
			return a.NodeID
		}
	}
	return ""
}

// GetAllAssignments returns every assignment in the cluster, each a copy
// safe to modify, in no particular order.
func (r *InstanceRegistry) GetAllAssignments() []*InstanceAssignment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*InstanceAssignment, 0)
	for _, byNode := range r.assignments {
		for _, a := range byNode {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// GetNodeInstances returns the IDs of every model instance hosted on
// nodeID, sorted for determinism.
func (r *InstanceRegistry) GetNodeInstances(nodeID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var instances []string
	for instanceID, byNode := range r.assignments {
		if _, ok := byNode[nodeID]; ok {
			instances = append(instances, instanceID)
		}
	}
	sort.Strings(instances)
	return instances
}

// Instances returns every known instance ID, sorted.
func (r *InstanceRegistry) Instances() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.assignments))
	for instanceID := range r.assignments {
		out = append(out, instanceID)
	}
	sort.Strings(out)
	return out
}

// RebalanceInstances assigns instanceID to every node in nodes as a
// replica, designating nodes[0] as primary. Existing assignments for
// instanceID are replaced. Used when scaling a model instance out to new
// nodes or recovering its replication factor after a failure.
func (r *InstanceRegistry) RebalanceInstances(instanceID string, nodes []string) error {
	if len(nodes) == 0 {
		return fmt.Errorf("cannot rebalance instance %q with no nodes", instanceID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byNode := make(map[string]*InstanceAssignment, len(nodes))
	for i, nodeID := range nodes {
		byNode[nodeID] = &InstanceAssignment{
			InstanceID: instanceID,
			NodeID:     nodeID,
			IsPrimary:  i == 0,
		}
	}
	r.assignments[instanceID] = byNode
	return nil
}
