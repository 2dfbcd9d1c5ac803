package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

// buildScenario2 wires up §8 scenario 2: dataset /X/Y/Z complete at
// T1_a, complete at T2_b owned by group G, plus an uninvolved T2_c.
func buildScenario2(t *testing.T) (inv *inventory.Inventory, groupG *inventory.Group) {
	t.Helper()
	inv = inventory.New()

	inv.Lock()
	groupG = inv.NewGroup("G", "")
	inv.Unlock()

	t1a := inv.NewSiteLocking("T1_a")
	t2b := inv.NewSiteLocking("T2_b")
	inv.NewSiteLocking("T2_c")

	d := inv.NewDatasetLocking("/X/Y/Z")

	inv.Lock()
	blk := inv.NewBlock(d, "XYZ#1")
	blk.Size = 10 * 1e9

	br1 := inventory.NewBlockReplica(blk, t1a)
	br1.Size = blk.Size
	br1.IsComplete = true
	inv.AddBlockReplica(br1)

	br2 := inventory.NewBlockReplica(blk, t2b)
	br2.Size = blk.Size
	br2.IsComplete = true
	br2.Group = groupG
	inv.AddBlockReplica(br2)
	inv.Unlock()

	// Group assignment only lands on the DatasetReplica via Recompute when
	// every owned block replica shares one group; BlockReplica.Group was set
	// before AddBlockReplica recomputed, so check that it landed.
	dr, ok := d.Replica("T2_b")
	require.True(t, ok)
	require.Equal(t, groupG, dr.Group)

	return inv, groupG
}

func TestEnforcerSatisfiedRuleEmitsNothing(t *testing.T) {
	inv, groupG := buildScenario2(t)

	rule := &EnforcerRule{
		NumCopies:               2,
		SourceSitePatterns:      []string{"T1_*"},
		DestinationSitePatterns: []string{"T2_*"},
		DatasetNamePatterns:     []string{"/X/*/*"},
		DestinationGroup:        groupG,
	}

	reqs := rule.Evaluate(inv)
	assert.Empty(t, reqs)
}

func TestEnforcerUnsatisfiedRuleEmitsOneRequest(t *testing.T) {
	inv, groupG := buildScenario2(t)

	d, ok := inv.Dataset("/X/Y/Z")
	require.True(t, ok)
	inv.DeleteDatasetReplica(d, "T2_b")

	rule := &EnforcerRule{
		NumCopies:               2,
		SourceSitePatterns:      []string{"T1_*"},
		DestinationSitePatterns: []string{"T2_*"},
		DatasetNamePatterns:     []string{"/X/*/*"},
		DestinationGroup:        groupG,
	}

	reqs := rule.Evaluate(inv)
	require.Len(t, reqs, 1)
	assert.Equal(t, "/X/Y/Z", reqs[0].Dataset.Name)
	assert.Contains(t, []string{"T2_b", "T2_c"}, reqs[0].Site.Name)
}

func TestEnforcerFlipsOwnershipBeforeNewCopy(t *testing.T) {
	inv := inventory.New()

	inv.Lock()
	groupG := inv.NewGroup("G", "")
	groupOther := inv.NewGroup("Other", "")
	inv.Unlock()

	t1a := inv.NewSiteLocking("T1_a")
	t2b := inv.NewSiteLocking("T2_b")

	d := inv.NewDatasetLocking("/X/Y/Z")

	inv.Lock()
	blk := inv.NewBlock(d, "XYZ#1")
	blk.Size = 10 * 1e9

	br1 := inventory.NewBlockReplica(blk, t1a)
	br1.Size = blk.Size
	br1.IsComplete = true
	inv.AddBlockReplica(br1)

	br2 := inventory.NewBlockReplica(blk, t2b)
	br2.Size = blk.Size
	br2.IsComplete = true
	br2.Group = groupOther
	inv.AddBlockReplica(br2)
	inv.Unlock()

	rule := &EnforcerRule{
		NumCopies:               1,
		SourceSitePatterns:      []string{"T1_*"},
		DestinationSitePatterns: []string{"T2_*"},
		DatasetNamePatterns:     []string{"/X/*/*"},
		DestinationGroup:        groupG,
	}

	reqs := rule.Evaluate(inv)
	require.Len(t, reqs, 1)
	assert.Equal(t, "T2_b", reqs[0].Site.Name)
}

func TestEnforcerIgnoresNonMatchingDataset(t *testing.T) {
	inv, groupG := buildScenario2(t)

	rule := &EnforcerRule{
		NumCopies:               2,
		SourceSitePatterns:      []string{"T1_*"},
		DestinationSitePatterns: []string{"T2_*"},
		DatasetNamePatterns:     []string{"/Other/*/*"},
		DestinationGroup:        groupG,
	}
	reqs := rule.Evaluate(inv)
	assert.Empty(t, reqs)
}
