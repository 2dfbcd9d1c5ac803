package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmsdynamo/dynamo/pkg/adapters"
	"github.com/cmsdynamo/dynamo/pkg/demand"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

func buildDealerFixture(t *testing.T, quota1, quota2 int64) (inv *inventory.Inventory, s1, s2 *inventory.Site, d *inventory.Dataset) {
	t.Helper()
	inv = inventory.New()

	inv.Lock()
	p := inv.NewPartition("disk")
	inv.Unlock()

	s1 = inv.NewSiteLocking("T2_a")
	s2 = inv.NewSiteLocking("T2_b")

	inv.Lock()
	s1.Partition("disk").QuotaBytes = quota1
	s2.Partition("disk").QuotaBytes = quota2
	inv.Unlock()

	d = inv.NewDatasetLocking("/X/Y/Z")

	inv.Lock()
	blk := inv.NewBlock(d, "XYZ#1")
	blk.Size = 10 * 1e9
	br := inventory.NewBlockReplica(blk, s1)
	br.Size = blk.Size
	br.IsComplete = true
	inv.AddBlockReplica(br)
	inv.Unlock()

	Materialize(inv, Definition{
		Partition: p,
		Member:    func(br *inventory.BlockReplica) bool { return true },
	})

	return inv, s1, s2, d
}

func TestDealerSchedulesCopyWhenAboveThreshold(t *testing.T) {
	inv, _, s2, _ := buildDealerFixture(t, 0, 100*1e12)

	dmd := demand.New(demand.Config{})
	dmd.SetPendingRequests([]adapters.PendingRequest{
		{Dataset: "/X/Y/Z"}, {Dataset: "/X/Y/Z"}, {Dataset: "/X/Y/Z"},
	})

	dl := NewDealer(DealerConfig{
		PartitionName:           "disk",
		IncludedSitePatterns:    []string{"T2_*"},
		RequestToReplicaThresh:  1.0,
		TargetSiteOccupancyFrac: 0.9,
		OverflowFactor:          1.0,
	})

	reqs := dl.Evaluate(inv, dmd)
	require.Len(t, reqs, 1)
	assert.Equal(t, s2.Name, reqs[0].Site.Name)
}

func TestDealerSkipsWhenBelowThreshold(t *testing.T) {
	inv, _, _, _ := buildDealerFixture(t, 0, 100*1e12)

	dmd := demand.New(demand.Config{})
	dl := NewDealer(DealerConfig{
		PartitionName:          "disk",
		IncludedSitePatterns:   []string{"T2_*"},
		RequestToReplicaThresh: 1.0,
	})

	reqs := dl.Evaluate(inv, dmd)
	assert.Empty(t, reqs)
}

func TestDealerZeroQuotaSiteExcluded(t *testing.T) {
	inv, _, _, _ := buildDealerFixture(t, 0, 0)

	dmd := demand.New(demand.Config{})
	dmd.SetPendingRequests([]adapters.PendingRequest{
		{Dataset: "/X/Y/Z"}, {Dataset: "/X/Y/Z"}, {Dataset: "/X/Y/Z"},
	})

	dl := NewDealer(DealerConfig{
		PartitionName:           "disk",
		IncludedSitePatterns:    []string{"T2_*"},
		RequestToReplicaThresh:  1.0,
		TargetSiteOccupancyFrac: 0.9,
		OverflowFactor:          1.0,
	})

	reqs := dl.Evaluate(inv, dmd)
	assert.Empty(t, reqs, "quota=0 at every candidate site emits zero requests")
}

func TestDealerBalancerRuleTriggersCopyBelowThreshold(t *testing.T) {
	inv, _, s2, _ := buildDealerFixture(t, 0, 100*1e12)

	dmd := demand.New(demand.Config{})
	dl := NewDealer(DealerConfig{
		PartitionName:           "disk",
		IncludedSitePatterns:    []string{"T2_*"},
		RequestToReplicaThresh:  1.0,
		TargetSiteOccupancyFrac: 0.9,
		OverflowFactor:          1.0,
		BalancerRules: []BalancerRule{
			func(d *inventory.Dataset) (BalancerReason, bool) {
				return BalancerReason("under-diversified"), true
			},
		},
	})

	reqs := dl.Evaluate(inv, dmd)
	require.Len(t, reqs, 1)
	assert.Equal(t, s2.Name, reqs[0].Site.Name)
}

func TestDealerMaxReplicasCapsCandidates(t *testing.T) {
	inv, _, _, _ := buildDealerFixture(t, 0, 100*1e12)

	dmd := demand.New(demand.Config{})
	dmd.SetPendingRequests([]adapters.PendingRequest{
		{Dataset: "/X/Y/Z"}, {Dataset: "/X/Y/Z"}, {Dataset: "/X/Y/Z"},
	})

	dl := NewDealer(DealerConfig{
		PartitionName:           "disk",
		IncludedSitePatterns:    []string{"T2_*"},
		RequestToReplicaThresh:  1.0,
		TargetSiteOccupancyFrac: 0.9,
		OverflowFactor:          1.0,
		MaxReplicas:             1,
	})

	reqs := dl.Evaluate(inv, dmd)
	assert.Empty(t, reqs)
}
