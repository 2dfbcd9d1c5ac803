package inventory

// Partition is a named policy scope over the replica graph. A leaf
// partition is defined directly by its membership predicate (recorded per
// site in SitePartition.Replicas); a non-leaf partition has Subpartitions
// and is, by decision, a strict union of its subpartitions' membership —
// it carries no independent quota or predicate of its own (Open Question
// (d)).
type Partition struct {
	ID            ID
	Name          string
	Subpartitions []*Partition
}

// IsLeaf reports whether this partition has no subpartitions.
func (p *Partition) IsLeaf() bool {
	return len(p.Subpartitions) == 0
}

// Applies reports whether the given block replica is a member of this
// partition at site s. For a leaf partition this looks up the site's own
// SitePartition membership; for a non-leaf partition it is the union of
// the subpartitions' Applies, matching the decision that non-leaf
// partitions add no membership beyond what their children already define.
func (p *Partition) Applies(s *Site, br *BlockReplica) bool {
	if p.IsLeaf() {
		sp, ok := s.partitions[p.Name]
		if !ok {
			return false
		}
		m, ok := sp.Replicas[br.DatasetReplica]
		if !ok {
			return false
		}
		if m.Full {
			return true
		}
		_, ok = m.Blocks[br.Block.InternalName]
		return ok
	}
	for _, sub := range p.Subpartitions {
		if sub.Applies(s, br) {
			return true
		}
	}
	return false
}

// AppliesToReplica evaluates membership at the DatasetReplica granularity:
// 0 = not in partition, 1 = every block replica is in the partition, 2 =
// some but not all are (§4.6). A dataset replica with no block replicas is
// not in the partition.
func (p *Partition) AppliesToReplica(dr *DatasetReplica) int {
	brs := dr.BlockReplicas()
	if len(brs) == 0 {
		return 0
	}
	in := 0
	for _, br := range brs {
		if p.Applies(dr.Site, br) {
			in++
		}
	}
	switch {
	case in == 0:
		return 0
	case in == len(brs):
		return 1
	default:
		return 2
	}
}
