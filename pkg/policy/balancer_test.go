package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

func buildBalancerDataset(t *testing.T, name string, numFullDiskCommonOwner int) *inventory.Dataset {
	t.Helper()
	inv := inventory.New()
	d := inv.NewDatasetLocking(name)

	inv.Lock()
	defer inv.Unlock()
	g := inv.NewGroup("AnalysisOps", "Dataset")
	b := inv.NewBlock(d, inventory.InternalBlockName(name+"#1"))
	for i := 0; i < numFullDiskCommonOwner; i++ {
		site := inv.NewSite("T2_Site" + string(rune('A'+i)))
		site.StorageType = inventory.StorageDisk
		br := inventory.NewBlockReplica(b, site)
		br.IsComplete = true
		br.Group = g
		inv.AddBlockReplica(br)
	}
	return d
}

func TestParseBalancerRulesCompilesKnownShapes(t *testing.T) {
	rules, err := ParseBalancerRules([]string{
		"dataset.name == /*/*/MINIAOD* and replica.num_full_disk_copy_common_owner < 3",
		"replica.num_full_disk_copy_common_owner < 2",
	})
	require.NoError(t, err)
	require.Len(t, rules, 2)
}

func TestParseBalancerRulesRejectsUnknownShape(t *testing.T) {
	_, err := ParseBalancerRules([]string{"replica.size > 100"})
	assert.Error(t, err)
}

func TestBalancerRuleMatchesDatasetPatternAndThreshold(t *testing.T) {
	rules, err := ParseBalancerRules([]string{
		"dataset.name == /A/B/* and replica.num_full_disk_copy_common_owner < 3",
	})
	require.NoError(t, err)
	rule := rules[0]

	under := buildBalancerDataset(t, "/A/B/C", 1)
	_, triggered := rule(under)
	assert.True(t, triggered, "1 full disk common-owner copy is below the threshold of 3")

	atThreshold := buildBalancerDataset(t, "/A/B/D", 3)
	_, triggered = rule(atThreshold)
	assert.False(t, triggered, "3 full disk common-owner copies meets the threshold")

	nonMatchingDataset := buildBalancerDataset(t, "/X/Y/Z", 0)
	_, triggered = rule(nonMatchingDataset)
	assert.False(t, triggered, "dataset name outside the rule's pattern never triggers")
}

func TestBalancerRuleWithoutDatasetPatternAppliesToAll(t *testing.T) {
	rules, err := ParseBalancerRules([]string{"replica.num_full_disk_copy_common_owner < 2"})
	require.NoError(t, err)
	rule := rules[0]

	d := buildBalancerDataset(t, "/Any/Dataset/Name", 0)
	_, triggered := rule(d)
	assert.True(t, triggered)
}
