package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmsdynamo/dynamo/pkg/adapters"
	"github.com/cmsdynamo/dynamo/pkg/demand"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

// buildScenario1 wires up §8 scenario 1: datasets A, B; sites S1, S2
// (quota 100 TB each); A complete on S1, incomplete on S2; B complete on
// S1 only. Both are tracked in the "disk" leaf partition wherever they
// have a replica.
func buildScenario1(t *testing.T) (inv *inventory.Inventory, p *inventory.Partition, s1 *inventory.Site) {
	t.Helper()
	inv = inventory.New()

	inv.Lock()
	p = inv.NewPartition("disk")
	inv.Unlock()

	s1 = inv.NewSiteLocking("S1")
	s2 := inv.NewSiteLocking("S2")

	inv.Lock()
	s1.Partition("disk").QuotaBytes = 100 * 1e12
	s2.Partition("disk").QuotaBytes = 100 * 1e12
	inv.Unlock()

	a := inv.NewDatasetLocking("/A/B/C")
	b := inv.NewDatasetLocking("/D/E/F")

	inv.Lock()
	ab1 := inv.NewBlock(a, "A#1")
	ab1.Size = 60 * 1e12
	bb1 := inv.NewBlock(b, "B#1")
	bb1.Size = 30 * 1e12

	brA1 := inventory.NewBlockReplica(ab1, s1)
	brA1.Size = ab1.Size
	brA1.IsComplete = true
	inv.AddBlockReplica(brA1)

	brA2 := inventory.NewBlockReplica(ab1, s2)
	brA2.Size = ab1.Size / 2
	brA2.IsComplete = false
	inv.AddBlockReplica(brA2)

	brB1 := inventory.NewBlockReplica(bb1, s1)
	brB1.Size = bb1.Size
	brB1.IsComplete = true
	inv.AddBlockReplica(brB1)
	inv.Unlock()

	Materialize(inv, Definition{
		Partition: p,
		Member:    func(br *inventory.BlockReplica) bool { return true },
	})

	require.NotNil(t, s1.Partition("disk"))
	return inv, p, s1
}

// rankedDemand returns a demand.Manager whose RequestRank reproduces the
// given per-dataset ranks via repeated pending-request entries (the
// rank signal that needs no clock stubbing).
func rankedDemand(ranks map[string]int) *demand.Manager {
	m := demand.New(demand.Config{})
	var reqs []adapters.PendingRequest
	for name, n := range ranks {
		for i := 0; i < n; i++ {
			reqs = append(reqs, adapters.PendingRequest{Dataset: name})
		}
	}
	m.SetPendingRequests(reqs)
	return m
}

func TestDetoxEvictionOrdersByDemandRank(t *testing.T) {
	_, p, s1 := buildScenario1(t)
	dmd := rankedDemand(map[string]int{"/A/B/C": 3, "/D/E/F": 0})

	dp := &DetoxPolicy{
		Partition:               p,
		DefaultDecision:         DecisionDelete,
		TargetSiteOccupancyFrac: 0.5,
	}

	scheduled := dp.RunEviction(s1, dmd)
	require.Len(t, scheduled, 2)
	assert.Equal(t, "/D/E/F", scheduled[0].Replica.Dataset.Name)
	assert.Equal(t, "/A/B/C", scheduled[1].Replica.Dataset.Name)
}

func TestDetoxProtectRuleExcludesReplica(t *testing.T) {
	_, p, s1 := buildScenario1(t)
	dmd := rankedDemand(map[string]int{"/A/B/C": 3, "/D/E/F": 0})

	protectOnTape := func(dr *inventory.DatasetReplica, _ *demand.Manager) (Decision, string, bool) {
		if dr.Dataset.Name == "/A/B/C" && dr.Dataset.OnTape {
			return DecisionProtect, "on tape", true
		}
		return "", "", false
	}

	a, ok := s1.DatasetReplica("/A/B/C")
	require.True(t, ok)
	a.Dataset.OnTape = true

	dp := &DetoxPolicy{
		Partition:               p,
		DefaultDecision:         DecisionDelete,
		Rules:                   []Rule{protectOnTape},
		TargetSiteOccupancyFrac: 0.5,
	}
	scheduled := dp.RunEviction(s1, dmd)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "/D/E/F", scheduled[0].Replica.Dataset.Name)
}

func TestDetoxSkipsCustodialReplicas(t *testing.T) {
	_, p, s1 := buildScenario1(t)
	dmd := rankedDemand(nil)

	a, ok := s1.DatasetReplica("/A/B/C")
	require.True(t, ok)
	a.IsCustodial = true

	dp := &DetoxPolicy{
		Partition:               p,
		DefaultDecision:         DecisionDelete,
		TargetSiteOccupancyFrac: 0,
	}
	scheduled := dp.RunEviction(s1, dmd)
	for _, sd := range scheduled {
		assert.NotEqual(t, "/A/B/C", sd.Replica.Dataset.Name)
	}
}

func TestDetoxSiteRequirementStopsEarly(t *testing.T) {
	_, p, s1 := buildScenario1(t)
	dmd := rankedDemand(map[string]int{"/A/B/C": 3, "/D/E/F": 0})

	dp := &DetoxPolicy{
		Partition:               p,
		DefaultDecision:         DecisionDelete,
		TargetSiteOccupancyFrac: 0,
		SiteRequirement: func(_ *inventory.Site, _ string, initialCheck bool) bool {
			return initialCheck // stop as soon as the loop asks to continue popping
		},
	}
	scheduled := dp.RunEviction(s1, dmd)
	assert.Empty(t, scheduled)
}
