package inventory

// DatasetStatus mirrors the remote catalog's dataset lifecycle state.
type DatasetStatus string

const (
	DatasetValid      DatasetStatus = "VALID"
	DatasetProduction DatasetStatus = "PRODUCTION"
	DatasetDeprecated DatasetStatus = "DEPRECATED"
	DatasetInvalid    DatasetStatus = "INVALID"
	DatasetUnknown    DatasetStatus = "UNKNOWN"
	DatasetIgnored    DatasetStatus = "IGNORED"
)

// Dataset is the top-level catalog entity. Size and NumFiles are rollups
// over its Blocks (the sum of a dataset's block sizes equals the dataset
// size, and likewise for file counts) and are kept current by
// addBlock/removeBlock and by Block.addFile/removeFile, which roll each
// file into the owning dataset as well as the block.
type Dataset struct {
	ID              ID
	Name            string
	Status          DatasetStatus
	DataType        string
	SoftwareVersion string
	Size            uint64
	NumFiles        int
	IsOpen          bool
	OnTape          bool
	LastUpdate      int64

	blocks   map[InternalBlockName]*Block
	replicas map[string]*DatasetReplica // site name -> replica
}

// NewDataset constructs a Dataset with its maps initialized.
func NewDataset(name string) *Dataset {
	return &Dataset{
		Name:     name,
		Status:   DatasetUnknown,
		blocks:   make(map[InternalBlockName]*Block),
		replicas: make(map[string]*DatasetReplica),
	}
}

// Block looks up a block by its internal name.
func (d *Dataset) Block(name InternalBlockName) (*Block, bool) {
	b, ok := d.blocks[name]
	return b, ok
}

// Blocks returns every block of the dataset.
func (d *Dataset) Blocks() []*Block {
	out := make([]*Block, 0, len(d.blocks))
	for _, b := range d.blocks {
		out = append(out, b)
	}
	return out
}

// Replica returns the DatasetReplica at the named site, if any.
func (d *Dataset) Replica(siteName string) (*DatasetReplica, bool) {
	dr, ok := d.replicas[siteName]
	return dr, ok
}

// Replicas returns every DatasetReplica of the dataset.
func (d *Dataset) Replicas() []*DatasetReplica {
	out := make([]*DatasetReplica, 0, len(d.replicas))
	for _, dr := range d.replicas {
		out = append(out, dr)
	}
	return out
}

// addBlock inserts b and rolls its size/file-count into the dataset
// totals. Caller must hold the inventory write lock.
func (d *Dataset) addBlock(b *Block) {
	d.blocks[b.InternalName] = b
	d.Size += b.Size
	d.NumFiles += b.NumFiles
}

// removeBlock drops b and its rollup contribution. It does not cascade to
// the block's files or replicas; callers needing full cascade deletion use
// Inventory.DeleteBlock.
func (d *Dataset) removeBlock(name InternalBlockName) {
	b, ok := d.blocks[name]
	if !ok {
		return
	}
	if d.Size >= b.Size {
		d.Size -= b.Size
	} else {
		d.Size = 0
	}
	d.NumFiles -= b.NumFiles
	delete(d.blocks, name)
}

// RecomputeRollup recomputes Size and NumFiles as the sum over current
// blocks. Used by adapters that set a block's Size/NumFiles directly from
// a remote feed reporting at block granularity rather than file
// granularity (§4.3.4's constituent check), bypassing the file-level
// addFile/removeFile rollup.
func (d *Dataset) RecomputeRollup() {
	var size uint64
	var numFiles int
	for _, b := range d.blocks {
		size += b.Size
		numFiles += b.NumFiles
	}
	d.Size = size
	d.NumFiles = numFiles
}

// recomputeOnTape recomputes OnTape from the dataset's replicas at MSS
// sites, called whenever a dataset replica is added, removed, or changes
// site.
func (d *Dataset) recomputeOnTape() {
	for _, dr := range d.replicas {
		if dr.Site.StorageType == StorageMSS {
			d.OnTape = true
			return
		}
	}
	d.OnTape = false
}

// addReplica registers dr against both the dataset and its site.
func (d *Dataset) addReplica(dr *DatasetReplica) {
	d.replicas[dr.Site.Name] = dr
	dr.Site.addDatasetReplica(dr)
	d.recomputeOnTape()
}

// removeReplica reverses addReplica.
func (d *Dataset) removeReplica(siteName string) {
	dr, ok := d.replicas[siteName]
	if !ok {
		return
	}
	dr.Site.removeDatasetReplica(dr)
	delete(d.replicas, siteName)
	d.recomputeOnTape()
}
