package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetBlockFileRollup(t *testing.T) {
	inv := New()
	inv.Lock()
	defer inv.Unlock()

	d := inv.NewDataset("/a/b/c")
	b := inv.NewBlock(d, "guid-1")
	inv.NewFile(b, "/store/a/1.root", 100)
	inv.NewFile(b, "/store/a/2.root", 200)

	assert.EqualValues(t, 300, b.Size)
	assert.Equal(t, 2, b.NumFiles)
	assert.EqualValues(t, 300, d.Size)
	assert.Equal(t, 2, d.NumFiles)

	b.removeFile("/store/a/1.root")
	assert.EqualValues(t, 200, b.Size)
	assert.Equal(t, 1, b.NumFiles)
}

func TestBlockNameInternalExternalRoundTrip(t *testing.T) {
	ext := NewExternalBlockName("/a/b/c", "guid-1")
	internal, err := ext.Internal()
	require.NoError(t, err)
	assert.Equal(t, InternalBlockName("guid-1"), internal)
	assert.Equal(t, ext, internal.External("/a/b/c"))

	_, _, err = ExternalBlockName("malformed").Split()
	assert.Error(t, err)
}

func TestAddBlockReplicaDerivesDatasetReplica(t *testing.T) {
	inv := New()
	inv.Lock()
	d := inv.NewDataset("/a/b/c")
	b1 := inv.NewBlock(d, "guid-1")
	b2 := inv.NewBlock(d, "guid-2")
	inv.NewFile(b1, "/store/1.root", 100)
	inv.NewFile(b2, "/store/2.root", 100)
	s := inv.NewSite("T2_Test_Site")
	g := inv.NewGroup("AnalysisOps", "DATASET")
	inv.Unlock()

	inv.Lock()
	br1 := NewBlockReplica(b1, s)
	br1.IsComplete = true
	br1.Group = g
	inv.AddBlockReplica(br1)
	inv.Unlock()

	dr, ok := d.Replica(s.Name)
	require.True(t, ok)
	assert.True(t, dr.IsPartial, "only one of two blocks replicated")
	assert.False(t, dr.IsComplete, "dataset replica cannot be complete while partial")
	assert.Equal(t, g, dr.Group)

	inv.Lock()
	br2 := NewBlockReplica(b2, s)
	br2.IsComplete = true
	br2.Group = g
	inv.AddBlockReplica(br2)
	inv.Unlock()

	assert.False(t, dr.IsPartial)
	assert.True(t, dr.IsComplete)
	assert.Equal(t, g, dr.Group)

	// site secondary index reflects both block replicas
	assert.Len(t, s.BlockReplicasOf(d.Name), 2)
	assert.EqualValues(t, 200, s.GroupUsage(g.Name))
}

func TestRemoveBlockReplicaPrunesEmptyDatasetReplica(t *testing.T) {
	inv := New()
	inv.Lock()
	d := inv.NewDataset("/a/b/c")
	b := inv.NewBlock(d, "guid-1")
	inv.NewFile(b, "/store/1.root", 100)
	s := inv.NewSite("T2_Test_Site")
	br := NewBlockReplica(b, s)
	br.IsComplete = true
	inv.AddBlockReplica(br)
	inv.Unlock()

	_, ok := d.Replica(s.Name)
	require.True(t, ok)

	inv.Lock()
	inv.RemoveBlockReplica(br)
	inv.Unlock()

	_, ok = d.Replica(s.Name)
	assert.False(t, ok, "dataset replica with no remaining block replicas is pruned")
	assert.Empty(t, s.BlockReplicasOf(d.Name))
}

func TestDeleteDatasetCascades(t *testing.T) {
	inv := New()
	inv.Lock()
	d := inv.NewDataset("/a/b/c")
	b := inv.NewBlock(d, "guid-1")
	inv.NewFile(b, "/store/1.root", 100)
	s := inv.NewSite("T2_Test_Site")
	br := NewBlockReplica(b, s)
	br.IsComplete = true
	inv.AddBlockReplica(br)
	inv.Unlock()

	inv.Lock()
	inv.DeleteDataset(d.Name)
	inv.Unlock()

	_, ok := inv.Dataset(d.Name)
	assert.False(t, ok)
	assert.Empty(t, s.DatasetReplicas())
	assert.Empty(t, s.BlockReplicasOf(d.Name))
}

func TestCompositePartitionIsUnionOfSubpartitions(t *testing.T) {
	inv := New()
	inv.Lock()
	d := inv.NewDataset("/a/b/c")
	b := inv.NewBlock(d, "guid-1")
	inv.NewFile(b, "/store/1.root", 100)
	s := inv.NewSite("T2_Test_Site")
	br := NewBlockReplica(b, s)
	br.IsComplete = true
	inv.AddBlockReplica(br)
	leaf := inv.NewPartition("AnalysisOps")
	inv.Unlock()

	dr, _ := d.Replica(s.Name)
	sp := s.Partition(leaf.Name)
	sp.Replicas[dr] = &Membership{Full: true}

	composite, err := inv.NewCompositePartition("Physics", leaf.Name)
	require.NoError(t, err)
	assert.True(t, composite.Applies(s, br))
	assert.False(t, composite.IsLeaf())

	other := inv.NewPartition("Unrelated")
	assert.False(t, other.Applies(s, br))
}

func TestIDUnsaved(t *testing.T) {
	var id ID
	assert.True(t, id.Unsaved())
	id = 42
	assert.False(t, id.Unsaved())
}
