package coordinator

import (
	"sync"
	"testing"
)

func TestNewInstanceRegistry(t *testing.T) {
	registry := NewInstanceRegistry()
	if registry == nil {
		t.Fatal("expected registry instance, got nil")
	}
	if len(registry.GetAllAssignments()) != 0 {
		t.Errorf("expected 0 assignments initially, got %d", len(registry.GetAllAssignments()))
	}
}

func TestAssignInstance(t *testing.T) {
	t.Run("assign instance to node", func(t *testing.T) {
		registry := NewInstanceRegistry()

		if err := registry.AssignInstance("news-classifier", "node1", true); err != nil {
			t.Fatalf("failed to assign instance: %v", err)
		}

		a := registry.GetAssignment("news-classifier", "node1")
		if a == nil {
			t.Fatal("expected assignment, got nil")
		}
		if a.InstanceID != "news-classifier" {
			t.Errorf("expected instance ID 'news-classifier', got %s", a.InstanceID)
		}
		if a.NodeID != "node1" {
			t.Errorf("expected node ID 'node1', got %s", a.NodeID)
		}
		if !a.IsPrimary {
			t.Error("expected primary assignment")
		}
	})

	t.Run("same instance on multiple nodes", func(t *testing.T) {
		registry := NewInstanceRegistry()
		registry.AssignInstance("news-classifier", "node1", true)
		registry.AssignInstance("news-classifier", "node2", false)

		peers := registry.Peers("news-classifier")
		if len(peers) != 2 {
			t.Fatalf("expected 2 peers, got %d: %v", len(peers), peers)
		}
	})

	t.Run("reassign primary on same node", func(t *testing.T) {
		registry := NewInstanceRegistry()
		registry.AssignInstance("news-classifier", "node1", false)
		registry.AssignInstance("news-classifier", "node1", true)

		a := registry.GetAssignment("news-classifier", "node1")
		if !a.IsPrimary {
			t.Error("expected node1 to become primary after reassignment")
		}
	})

	t.Run("empty instance ID rejected", func(t *testing.T) {
		registry := NewInstanceRegistry()
		if err := registry.AssignInstance("", "node1", true); err == nil {
			t.Error("expected error for empty instance ID, got nil")
		}
	})

	t.Run("empty node ID rejected", func(t *testing.T) {
		registry := NewInstanceRegistry()
		if err := registry.AssignInstance("news-classifier", "", true); err == nil {
			t.Error("expected error for empty node ID, got nil")
		}
	})
}

func TestRemoveInstance(t *testing.T) {
	registry := NewInstanceRegistry()
	registry.AssignInstance("news-classifier", "node1", true)
	registry.AssignInstance("news-classifier", "node2", false)

	registry.RemoveInstance("news-classifier", "node1")

	if registry.GetAssignment("news-classifier", "node1") != nil {
		t.Error("expected node1's assignment to be gone")
	}
	if registry.GetAssignment("news-classifier", "node2") == nil {
		t.Error("expected node2's assignment to survive")
	}

	registry.RemoveInstance("news-classifier", "node2")
	if len(registry.Instances()) != 0 {
		t.Errorf("expected instance to be dropped once its last replica is removed, got %v", registry.Instances())
	}
}

func TestRemoveNode(t *testing.T) {
	registry := NewInstanceRegistry()
	registry.AssignInstance("news-classifier", "node1", true)
	registry.AssignInstance("session-recommender", "node1", true)
	registry.AssignInstance("session-recommender", "node2", false)

	registry.RemoveNode("node1")

	if registry.GetAssignment("news-classifier", "node1") != nil {
		t.Error("expected news-classifier's node1 assignment gone")
	}
	if len(registry.Instances()) != 1 {
		t.Errorf("expected news-classifier to be fully unassigned, got instances %v", registry.Instances())
	}
	if registry.GetAssignment("session-recommender", "node2") == nil {
		t.Error("expected session-recommender's node2 assignment to survive")
	}
}

func TestPrimaryNode(t *testing.T) {
	registry := NewInstanceRegistry()
	registry.AssignInstance("news-classifier", "node1", false)
	registry.AssignInstance("news-classifier", "node2", true)

	if got := registry.PrimaryNode("news-classifier"); got != "node2" {
		t.Errorf("expected primary node2, got %s", got)
	}
	if got := registry.PrimaryNode("unknown"); got != "" {
		t.Errorf("expected empty primary for unknown instance, got %s", got)
	}
}

func TestGetNodeInstances(t *testing.T) {
	registry := NewInstanceRegistry()
	registry.AssignInstance("news-classifier", "node1", true)
	registry.AssignInstance("session-recommender", "node1", true)
	registry.AssignInstance("session-recommender", "node2", false)

	got := registry.GetNodeInstances("node1")
	if len(got) != 2 || got[0] != "news-classifier" || got[1] != "session-recommender" {
		t.Errorf("expected sorted [news-classifier session-recommender], got %v", got)
	}

	if got := registry.GetNodeInstances("node3"); len(got) != 0 {
		t.Errorf("expected no instances for unassigned node, got %v", got)
	}
}

func TestRebalanceInstances(t *testing.T) {
	t.Run("replaces existing assignment", func(t *testing.T) {
		registry := NewInstanceRegistry()
		registry.AssignInstance("news-classifier", "stale-node", true)

		err := registry.RebalanceInstances("news-classifier", []string{"node1", "node2", "node3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if registry.GetAssignment("news-classifier", "stale-node") != nil {
			t.Error("expected stale assignment to be replaced")
		}
		if got := registry.PrimaryNode("news-classifier"); got != "node1" {
			t.Errorf("expected node1 to be primary, got %s", got)
		}
		if len(registry.Peers("news-classifier")) != 3 {
			t.Errorf("expected 3 peers, got %d", len(registry.Peers("news-classifier")))
		}
	})

	t.Run("rejects empty node list", func(t *testing.T) {
		registry := NewInstanceRegistry()
		if err := registry.RebalanceInstances("news-classifier", nil); err == nil {
			t.Error("expected error for empty node list, got nil")
		}
	})
}

func TestInstanceRegistryConcurrentAccess(t *testing.T) {
	registry := NewInstanceRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			nodeID := "node" + string(rune('A'+n%26))
			registry.AssignInstance("news-classifier", nodeID, n == 0)
			registry.GetAllAssignments()
			registry.Peers("news-classifier")
		}(i)
	}
	wg.Wait()

	if len(registry.Peers("news-classifier")) == 0 {
		t.Error("expected at least one peer after concurrent assignment")
	}
}
