package inventory

// DatasetReplica is a dataset's presence at a site, derived from the set
// of BlockReplicas it owns. IsComplete, IsPartial, IsCustodial, and Group
// are all derived fields recomputed by Recompute whenever the underlying
// block replica set changes; they are never set directly by adapters.
type DatasetReplica struct {
	Dataset *Dataset
	Site    *Site

	IsComplete  bool
	IsPartial   bool
	IsCustodial bool
	Group       *Group // non-nil only when every block replica shares one group

	blockReplicas map[InternalBlockName]*BlockReplica
}

// NewDatasetReplica constructs an empty DatasetReplica bound to d and s.
func NewDatasetReplica(d *Dataset, s *Site) *DatasetReplica {
	return &DatasetReplica{
		Dataset:       d,
		Site:          s,
		blockReplicas: make(map[InternalBlockName]*BlockReplica),
	}
}

// BlockReplicas returns every block replica owned by this dataset replica.
func (dr *DatasetReplica) BlockReplicas() []*BlockReplica {
	out := make([]*BlockReplica, 0, len(dr.blockReplicas))
	for _, br := range dr.blockReplicas {
		out = append(out, br)
	}
	return out
}

// PhysicalSize sums the size of every block replica owned by this dataset
// replica (the physical bytes occupied at the site, as opposed to
// Dataset.Size which is the logical size of the whole dataset).
func (dr *DatasetReplica) PhysicalSize() uint64 {
	var total uint64
	for _, br := range dr.blockReplicas {
		total += br.Size
	}
	return total
}

// attachBlockReplica adds br to the owning dataset replica's block set and
// recomputes derived fields. Caller must hold the inventory write lock.
func (dr *DatasetReplica) attachBlockReplica(br *BlockReplica) {
	dr.blockReplicas[br.Block.InternalName] = br
	br.DatasetReplica = dr
	dr.Recompute()
}

// detachBlockReplica removes the block replica named name and recomputes
// derived fields.
func (dr *DatasetReplica) detachBlockReplica(name InternalBlockName) {
	delete(dr.blockReplicas, name)
	dr.Recompute()
}

// Recompute derives IsPartial, IsComplete, and Group from the current
// block replica set (invariant 4/5/6):
//   - IsPartial is true when this dataset replica does not own a replica of
//     every block belonging to the dataset.
//   - IsComplete of the dataset replica is true when every owned block
//     replica is itself complete and the dataset replica is not partial.
//   - Group is the single group shared by every block replica, or nil when
//     the set is empty, mixed, or any member has no group.
func (dr *DatasetReplica) Recompute() {
	dr.IsPartial = len(dr.blockReplicas) < len(dr.Dataset.blocks)

	complete := len(dr.blockReplicas) > 0
	custodial := len(dr.blockReplicas) > 0
	var group *Group
	first := true
	mixed := false
	for _, br := range dr.blockReplicas {
		if !br.IsComplete {
			complete = false
		}
		if !br.IsCustodial {
			custodial = false
		}
		if first {
			group = br.Group
			first = false
		} else if br.Group != group {
			mixed = true
		}
	}
	if mixed {
		group = nil
	}
	dr.IsComplete = complete && !dr.IsPartial
	dr.IsCustodial = custodial
	dr.Group = group
}

// BlockReplica is a single block's presence at a site. IsComplete is set
// by the replica adapter (Open Question (c)) as an OR: true when the
// remote reports the replica complete, or when the bytes it reports are
// less than the block size.
type BlockReplica struct {
	Block          *Block
	Site           *Site
	DatasetReplica *DatasetReplica
	Group          *Group

	Size        uint64
	IsComplete  bool
	IsCustodial bool
	LastUpdate  int64
}

// NewBlockReplica constructs a BlockReplica. The caller is responsible for
// attaching it to a Block and DatasetReplica via Inventory methods so the
// site indices and derived fields stay consistent. IsComplete is computed
// by the calling adapter (pkg/adapters) before construction; the inventory
// only stores and propagates it.
func NewBlockReplica(b *Block, s *Site) *BlockReplica {
	return &BlockReplica{Block: b, Site: s, Size: b.Size}
}
