package inventory

import "sync"

// Inventory is the in-memory replica catalog: an arena of Datasets, Sites,
// Groups, and Partitions keyed by natural name, with the cross-entity
// graph (blocks, files, replicas) hung off them. All mutation goes through
// Inventory methods so that rollups and secondary indices never drift from
// the underlying entities.
//
// Concurrency: the embedded RWMutex is held for writing during the
// synchronizer's Pass 1 (existence-ensuring inserts) and Pass 3 (splice)
// and for the whole duration of a policy evaluation cycle, since the spec
// disallows a sync cycle and a policy cycle running concurrently. Readers
// (REST handlers, ad hoc queries) take the read lock.
type Inventory struct {
	mu sync.RWMutex

	datasets   map[string]*Dataset
	sites      map[string]*Site
	groups     map[string]*Group
	partitions map[string]*Partition
}

// New returns an empty Inventory.
func New() *Inventory {
	return &Inventory{
		datasets:   make(map[string]*Dataset),
		sites:      make(map[string]*Site),
		groups:     make(map[string]*Group),
		partitions: make(map[string]*Partition),
	}
}

// Lock/Unlock/RLock/RUnlock expose the inventory's lock directly so that
// multi-step operations (a sync cycle's passes, a full policy evaluation)
// can hold it across several calls instead of re-acquiring per method.
func (inv *Inventory) Lock()    { inv.mu.Lock() }
func (inv *Inventory) Unlock()  { inv.mu.Unlock() }
func (inv *Inventory) RLock()   { inv.mu.RLock() }
func (inv *Inventory) RUnlock() { inv.mu.RUnlock() }

// Dataset returns the dataset with the given name.
func (inv *Inventory) Dataset(name string) (*Dataset, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.DatasetNoLock(name)
}

// DatasetNoLock is the lock-free counterpart of Dataset, for callers that
// already hold inv's lock (e.g. a batch mutation in progress).
func (inv *Inventory) DatasetNoLock(name string) (*Dataset, bool) {
	d, ok := inv.datasets[name]
	return d, ok
}

// Datasets returns every dataset in the inventory.
func (inv *Inventory) Datasets() []*Dataset {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.DatasetsNoLock()
}

// DatasetsNoLock is the lock-free counterpart of Datasets.
func (inv *Inventory) DatasetsNoLock() []*Dataset {
	out := make([]*Dataset, 0, len(inv.datasets))
	for _, d := range inv.datasets {
		out = append(out, d)
	}
	return out
}

// NewDataset registers and returns a new Dataset, or the existing one if
// already present. Caller must hold the write lock when used from a batch
// operation; NewDatasetLocking takes the lock itself for single-shot use.
func (inv *Inventory) NewDataset(name string) *Dataset {
	if d, ok := inv.datasets[name]; ok {
		return d
	}
	d := NewDataset(name)
	inv.datasets[name] = d
	return d
}

// NewDatasetLocking is the locking counterpart of NewDataset.
func (inv *Inventory) NewDatasetLocking(name string) *Dataset {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.NewDataset(name)
}

// DeleteDataset cascades: the dataset's site replicas are detached first,
// then every block together with its files and replicas, then the dataset
// itself.
// Caller must hold the write lock.
func (inv *Inventory) DeleteDataset(name string) {
	d, ok := inv.datasets[name]
	if !ok {
		return
	}
	for siteName := range d.replicas {
		inv.deleteDatasetReplica(d, siteName)
	}
	for blockName := range d.blocks {
		inv.deleteBlock(d, blockName)
	}
	delete(inv.datasets, name)
}

// Site returns the site with the given name.
func (inv *Inventory) Site(name string) (*Site, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.SiteNoLock(name)
}

// SiteNoLock is the lock-free counterpart of Site.
func (inv *Inventory) SiteNoLock(name string) (*Site, bool) {
	s, ok := inv.sites[name]
	return s, ok
}

// Sites returns every site in the inventory.
func (inv *Inventory) Sites() []*Site {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.SitesNoLock()
}

// SitesNoLock is the lock-free counterpart of Sites.
func (inv *Inventory) SitesNoLock() []*Site {
	out := make([]*Site, 0, len(inv.sites))
	for _, s := range inv.sites {
		out = append(out, s)
	}
	return out
}

// NewSite registers and returns a new Site, or the existing one. Caller
// must hold the write lock.
func (inv *Inventory) NewSite(name string) *Site {
	if s, ok := inv.sites[name]; ok {
		return s
	}
	s := NewSite(name)
	inv.sites[name] = s
	return s
}

// NewSiteLocking is the locking counterpart of NewSite.
func (inv *Inventory) NewSiteLocking(name string) *Site {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.NewSite(name)
}

// DeleteSite removes a site and every replica it holds. Caller must hold
// the write lock.
func (inv *Inventory) DeleteSite(name string) {
	s, ok := inv.sites[name]
	if !ok {
		return
	}
	for datasetName, dr := range s.datasetReplicas {
		if d, ok := inv.datasets[datasetName]; ok {
			inv.deleteDatasetReplica(d, dr.Site.Name)
		}
	}
	delete(inv.sites, name)
}

// Group returns the group with the given name.
func (inv *Inventory) Group(name string) (*Group, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.GroupNoLock(name)
}

// GroupNoLock is the lock-free counterpart of Group.
func (inv *Inventory) GroupNoLock(name string) (*Group, bool) {
	g, ok := inv.groups[name]
	return g, ok
}

// Groups returns every group in the inventory.
func (inv *Inventory) Groups() []*Group {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.GroupsNoLock()
}

// GroupsNoLock is the lock-free counterpart of Groups.
func (inv *Inventory) GroupsNoLock() []*Group {
	out := make([]*Group, 0, len(inv.groups))
	for _, g := range inv.groups {
		out = append(out, g)
	}
	return out
}

// NewGroup registers and returns a new Group, or the existing one. Caller
// must hold the write lock.
func (inv *Inventory) NewGroup(name, olevel string) *Group {
	if g, ok := inv.groups[name]; ok {
		return g
	}
	g := &Group{Name: name, Olevel: olevel}
	inv.groups[name] = g
	return g
}

// NewGroupLocking is the locking counterpart of NewGroup.
func (inv *Inventory) NewGroupLocking(name, olevel string) *Group {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.NewGroup(name, olevel)
}

// Partition returns the partition with the given name.
func (inv *Inventory) Partition(name string) (*Partition, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.PartitionNoLock(name)
}

// PartitionNoLock is the lock-free counterpart of Partition.
func (inv *Inventory) PartitionNoLock(name string) (*Partition, bool) {
	p, ok := inv.partitions[name]
	return p, ok
}

// Partitions returns every partition in the inventory.
func (inv *Inventory) Partitions() []*Partition {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.PartitionsNoLock()
}

// PartitionsNoLock is the lock-free counterpart of Partitions.
func (inv *Inventory) PartitionsNoLock() []*Partition {
	out := make([]*Partition, 0, len(inv.partitions))
	for _, p := range inv.partitions {
		out = append(out, p)
	}
	return out
}

// NewPartition registers and returns a new leaf Partition, or the existing
// one. Caller must hold the write lock.
func (inv *Inventory) NewPartition(name string) *Partition {
	if p, ok := inv.partitions[name]; ok {
		return p
	}
	p := &Partition{Name: name}
	inv.partitions[name] = p
	return p
}

// NewCompositePartition registers a non-leaf partition whose membership is
// the strict union of the named subpartitions (Open Question (d)). The
// subpartitions must already exist.
func (inv *Inventory) NewCompositePartition(name string, subNames ...string) (*Partition, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	subs := make([]*Partition, 0, len(subNames))
	for _, sn := range subNames {
		sub, ok := inv.partitions[sn]
		if !ok {
			return nil, &ConfigError{Detail: "unknown subpartition " + sn}
		}
		subs = append(subs, sub)
	}
	p := &Partition{Name: name, Subpartitions: subs}
	inv.partitions[name] = p
	return p, nil
}

// NewBlock creates a block under d, or returns the existing one. Caller
// must hold the write lock.
func (inv *Inventory) NewBlock(d *Dataset, name InternalBlockName) *Block {
	if b, ok := d.blocks[name]; ok {
		return b
	}
	b := &Block{
		Dataset:      d,
		InternalName: name,
		files:        make(map[string]*File),
		replicas:     make(map[string]*BlockReplica),
	}
	d.addBlock(b)
	return b
}

// deleteBlock cascades: removes every file and every replica of b, then
// the block itself.
func (inv *Inventory) deleteBlock(d *Dataset, name InternalBlockName) {
	b, ok := d.blocks[name]
	if !ok {
		return
	}
	for lfn := range b.files {
		b.removeFile(lfn)
	}
	for siteName := range b.replicas {
		b.removeReplica(siteName)
	}
	d.removeBlock(name)
}

// DeleteBlock is the locking entry point for deleteBlock.
func (inv *Inventory) DeleteBlock(d *Dataset, name InternalBlockName) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.deleteBlock(d, name)
}

// DeleteBlockNoLock is the lock-free counterpart of DeleteBlock, for
// callers that already hold inv's write lock.
func (inv *Inventory) DeleteBlockNoLock(d *Dataset, name InternalBlockName) {
	inv.deleteBlock(d, name)
}

// NewFile creates a file under b, or returns the existing one if a file by
// that LFN is already present. Caller must hold the write lock.
func (inv *Inventory) NewFile(b *Block, lfn string, size uint64) *File {
	if f, ok := b.files[lfn]; ok {
		return f
	}
	f := &File{LFN: lfn, Block: b, Size: size}
	b.addFile(f)
	return f
}

// NewDatasetReplica creates the DatasetReplica linking d and s, or returns
// the existing one. Caller must hold the write lock.
func (inv *Inventory) NewDatasetReplica(d *Dataset, s *Site) *DatasetReplica {
	if dr, ok := d.replicas[s.Name]; ok {
		return dr
	}
	dr := NewDatasetReplica(d, s)
	d.addReplica(dr)
	return dr
}

// deleteDatasetReplica cascades: detaches every block replica owned by dr
// (which also clears site secondary indices and group usage), then drops
// dr itself.
func (inv *Inventory) deleteDatasetReplica(d *Dataset, siteName string) {
	dr, ok := d.replicas[siteName]
	if !ok {
		return
	}
	for name := range dr.blockReplicas {
		b, ok := d.blocks[name]
		if ok {
			b.removeReplica(dr.Site.Name)
		}
	}
	d.removeReplica(siteName)
}

// DeleteDatasetReplica is the locking entry point for deleteDatasetReplica.
func (inv *Inventory) DeleteDatasetReplica(d *Dataset, siteName string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.deleteDatasetReplica(d, siteName)
}

// AddBlockReplica attaches br to its Block (and the site's secondary
// index) and to the DatasetReplica linking br.Block.Dataset and br.Site,
// creating that DatasetReplica if it does not yet exist. Caller must hold
// the write lock — this is the hot-path mutation used by the replica
// catalog merge (§4.3.3 Pass 1/3) and must be cheap.
func (inv *Inventory) AddBlockReplica(br *BlockReplica) {
	dr := inv.NewDatasetReplica(br.Block.Dataset, br.Site)
	br.Block.addReplica(br)
	dr.attachBlockReplica(br)
}

// RemoveBlockReplica detaches br from its block and dataset replica,
// recomputing derived fields. If the owning dataset replica is left with
// no block replicas it is removed too. Caller must hold the write lock.
func (inv *Inventory) RemoveBlockReplica(br *BlockReplica) {
	dr := br.DatasetReplica
	br.Block.removeReplica(br.Site.Name)
	if dr != nil {
		dr.detachBlockReplica(br.Block.InternalName)
		if len(dr.blockReplicas) == 0 {
			dr.Dataset.removeReplica(dr.Site.Name)
		}
	}
}
