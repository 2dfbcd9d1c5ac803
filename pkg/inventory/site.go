package inventory

// StorageType classifies a site's backing storage.
type StorageType string

const (
	StorageDisk    StorageType = "disk"
	StorageMSS     StorageType = "mss"
	StorageBuffer  StorageType = "buffer"
	StorageUnknown StorageType = "unknown"
)

// SiteStatus is the operational state of a site.
type SiteStatus string

const (
	SiteReady    SiteStatus = "READY"
	SiteWaitroom SiteStatus = "WAITROOM"
	SiteMorgue   SiteStatus = "MORGUE"
	SiteUnknown  SiteStatus = "UNKNOWN"
)

// Site is a storage endpoint. It owns two indices over its replicas:
// datasetReplicas (by dataset name) and blockReplicasByDataset, a secondary
// index of block replicas grouped by the owning dataset so adapters and the
// policy engine can iterate a dataset's replicas at a site without scanning
// every replica the site holds.
type Site struct {
	ID          ID
	Name        string
	Host        string
	StorageType StorageType
	Backend     string
	Status      SiteStatus

	datasetReplicas        map[string]*DatasetReplica            // dataset name -> replica
	blockReplicasByDataset  map[string]map[InternalBlockName]*BlockReplica // dataset name -> block name -> replica
	groupUsage              map[string]uint64                    // group name -> bytes owned at this site
	partitions              map[string]*SitePartition             // partition name -> site partition
}

// NewSite constructs a Site with its indices initialized. Sites are created
// through Inventory.NewSite; this constructor is exported for tests that
// build a graph without a full Inventory.
func NewSite(name string) *Site {
	return &Site{
		Name:                   name,
		Status:                 SiteUnknown,
		datasetReplicas:        make(map[string]*DatasetReplica),
		blockReplicasByDataset: make(map[string]map[InternalBlockName]*BlockReplica),
		groupUsage:             make(map[string]uint64),
		partitions:             make(map[string]*SitePartition),
	}
}

// DatasetReplica returns the replica of the named dataset at this site, if
// any.
func (s *Site) DatasetReplica(datasetName string) (*DatasetReplica, bool) {
	dr, ok := s.datasetReplicas[datasetName]
	return dr, ok
}

// DatasetReplicas returns all dataset replicas held at this site.
func (s *Site) DatasetReplicas() []*DatasetReplica {
	out := make([]*DatasetReplica, 0, len(s.datasetReplicas))
	for _, dr := range s.datasetReplicas {
		out = append(out, dr)
	}
	return out
}

// BlockReplicasOf returns the block replicas of the named dataset held at
// this site, using the secondary index rather than scanning the dataset
// replica's own block set.
func (s *Site) BlockReplicasOf(datasetName string) []*BlockReplica {
	m := s.blockReplicasByDataset[datasetName]
	out := make([]*BlockReplica, 0, len(m))
	for _, br := range m {
		out = append(out, br)
	}
	return out
}

// GroupUsage returns the bytes owned by the named group at this site,
// derived from the per-group usage cache maintained by replica
// insert/remove.
func (s *Site) GroupUsage(groupName string) uint64 {
	return s.groupUsage[groupName]
}

// Partition returns the SitePartition for the named partition, creating an
// empty one (zero quota) if it does not yet exist.
func (s *Site) Partition(partitionName string) *SitePartition {
	sp, ok := s.partitions[partitionName]
	if !ok {
		sp = &SitePartition{
			Site:      s,
			Partition: partitionName,
			Replicas:  make(map[*DatasetReplica]*Membership),
		}
		s.partitions[partitionName] = sp
	}
	return sp
}

// Partitions returns every SitePartition configured at this site.
func (s *Site) Partitions() []*SitePartition {
	out := make([]*SitePartition, 0, len(s.partitions))
	for _, sp := range s.partitions {
		out = append(out, sp)
	}
	return out
}

// addDatasetReplica links dr into the site's primary index. Caller must
// hold the inventory write lock.
func (s *Site) addDatasetReplica(dr *DatasetReplica) {
	s.datasetReplicas[dr.Dataset.Name] = dr
	if _, ok := s.blockReplicasByDataset[dr.Dataset.Name]; !ok {
		s.blockReplicasByDataset[dr.Dataset.Name] = make(map[InternalBlockName]*BlockReplica)
	}
}

// removeDatasetReplica drops dr and its secondary-index entries. Caller
// must hold the inventory write lock.
func (s *Site) removeDatasetReplica(dr *DatasetReplica) {
	for name, br := range s.blockReplicasByDataset[dr.Dataset.Name] {
		s.removeGroupUsage(br)
		delete(s.blockReplicasByDataset[dr.Dataset.Name], name)
	}
	delete(s.blockReplicasByDataset, dr.Dataset.Name)
	delete(s.datasetReplicas, dr.Dataset.Name)
}

// addBlockReplica maintains the secondary index and group usage cache.
// Caller must hold the inventory write lock.
func (s *Site) addBlockReplica(br *BlockReplica) {
	byDataset := s.blockReplicasByDataset[br.Block.Dataset.Name]
	if byDataset == nil {
		byDataset = make(map[InternalBlockName]*BlockReplica)
		s.blockReplicasByDataset[br.Block.Dataset.Name] = byDataset
	}
	byDataset[br.Block.InternalName] = br
	if br.Group != nil {
		s.groupUsage[br.Group.Name] += br.Size
	}
}

// removeBlockReplica reverses addBlockReplica.
func (s *Site) removeBlockReplica(br *BlockReplica) {
	byDataset := s.blockReplicasByDataset[br.Block.Dataset.Name]
	if byDataset != nil {
		delete(byDataset, br.Block.InternalName)
	}
	s.removeGroupUsage(br)
}

func (s *Site) removeGroupUsage(br *BlockReplica) {
	if br.Group == nil {
		return
	}
	if cur, ok := s.groupUsage[br.Group.Name]; ok {
		if cur <= br.Size {
			delete(s.groupUsage, br.Group.Name)
		} else {
			s.groupUsage[br.Group.Name] = cur - br.Size
		}
	}
}

// resetGroupUsage clears the per-group usage cache, used by the
// synchronizer at the end of the replica-catalog phase before recomputing
// it from the merged replica set (§4.3.3).
func (s *Site) resetGroupUsage() {
	s.groupUsage = make(map[string]uint64)
}

// RecomputeAfterMerge resets the per-group usage cache and replays it from
// the current block replica set, then recomputes every dataset replica's
// derived fields (is_partial, group). Called once per site after the
// replica catalog adapter has finished splicing all chunks in (§4.3.3).
func (s *Site) RecomputeAfterMerge() {
	s.resetGroupUsage()
	for _, byDataset := range s.blockReplicasByDataset {
		for _, br := range byDataset {
			if br.Group != nil {
				s.groupUsage[br.Group.Name] += br.Size
			}
		}
	}
	for _, dr := range s.datasetReplicas {
		dr.Recompute()
	}
}

// Membership records a dataset replica's partial or total membership in a
// SitePartition. Full == true means "all block replicas of that dataset
// replica belong to the partition" (the spec's null value); Full == false
// means only the block replicas named in Blocks belong.
type Membership struct {
	Full   bool
	Blocks map[InternalBlockName]*BlockReplica
}

// SitePartition is the per-site, per-partition quota and membership record
// (§3). Replicas maps each DatasetReplica present (even partially) in the
// partition to its Membership.
type SitePartition struct {
	Site      *Site
	Partition string
	QuotaBytes int64
	Replicas  map[*DatasetReplica]*Membership
}

// Occupancy sums the physical bytes of every replica recorded as a member
// of this partition, honoring partial membership.
func (sp *SitePartition) Occupancy() uint64 {
	var total uint64
	for dr, m := range sp.Replicas {
		if m.Full {
			total += dr.PhysicalSize()
			continue
		}
		for _, br := range m.Blocks {
			total += br.Size
		}
	}
	return total
}
