package store

import (
	"context"
	"fmt"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/metrics"
)

// LoadData reconstructs the full graph into inv, optionally restricted by
// filter. The whole load runs on a single transaction/connection so that
// materialized filter id tables (temporary, connection-scoped) stay valid
// for every query in the load.
func (s *Store) LoadData(ctx context.Context, inv *inventory.Inventory, filter Filter) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StoreLoadDuration)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return &inventory.StoreError{Op: "load_data.acquire", Err: err}
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return &inventory.StoreError{Op: "load_data.begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if !filter.empty() {
		if err := materializeFilters(ctx, tx, filter); err != nil {
			return &inventory.StoreError{Op: "load_data.filter", Err: err}
		}
	}

	inv.Lock()
	defer inv.Unlock()

	groupByID := make(map[int32]*inventory.Group)
	rows, err := tx.Query(ctx, `SELECT id, name, olevel FROM groups`+filterWhereGroups(filter))
	if err != nil {
		return &inventory.StoreError{Op: "load_data.groups", Err: err}
	}
	for rows.Next() {
		var id int32
		var name, olevel string
		if err := rows.Scan(&id, &name, &olevel); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.groups.scan", Err: err}
		}
		g := inv.NewGroup(name, olevel)
		g.ID = inventory.ID(id)
		groupByID[id] = g
	}
	rows.Close()

	siteByID := make(map[int32]*inventory.Site)
	rows, err = tx.Query(ctx, `SELECT id, name, host, storage_type, backend, status FROM sites`+filterWhereSites(filter))
	if err != nil {
		return &inventory.StoreError{Op: "load_data.sites", Err: err}
	}
	for rows.Next() {
		var id int32
		var name, host, storageType, backend, status string
		if err := rows.Scan(&id, &name, &host, &storageType, &backend, &status); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.sites.scan", Err: err}
		}
		site := inv.NewSite(name)
		site.ID = inventory.ID(id)
		site.Host = host
		site.StorageType = inventory.StorageType(storageType)
		site.Backend = backend
		site.Status = inventory.SiteStatus(status)
		siteByID[id] = site
	}
	rows.Close()

	partitionByID := make(map[int32]*inventory.Partition)
	rows, err = tx.Query(ctx, `SELECT id, name FROM partitions`)
	if err != nil {
		return &inventory.StoreError{Op: "load_data.partitions", Err: err}
	}
	for rows.Next() {
		var id int32
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.partitions.scan", Err: err}
		}
		p := inv.NewPartition(name)
		p.ID = inventory.ID(id)
		partitionByID[id] = p
	}
	rows.Close()

	rows, err = tx.Query(ctx, `SELECT partition_id, subpartition_id FROM partition_subpartitions`)
	if err != nil {
		return &inventory.StoreError{Op: "load_data.partition_subpartitions", Err: err}
	}
	for rows.Next() {
		var parentID, childID int32
		if err := rows.Scan(&parentID, &childID); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.partition_subpartitions.scan", Err: err}
		}
		parent, child := partitionByID[parentID], partitionByID[childID]
		if parent == nil || child == nil {
			continue
		}
		parent.Subpartitions = append(parent.Subpartitions, child)
	}
	rows.Close()

	rows, err = tx.Query(ctx, `SELECT site_id, partition_id, storage_tb FROM quotas`)
	if err != nil {
		return &inventory.StoreError{Op: "load_data.quotas", Err: err}
	}
	for rows.Next() {
		var siteID, partitionID int32
		var quotaTB float64
		if err := rows.Scan(&siteID, &partitionID, &quotaTB); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.quotas.scan", Err: err}
		}
		site, partition := siteByID[siteID], partitionByID[partitionID]
		if site == nil || partition == nil {
			continue
		}
		site.Partition(partition.Name).QuotaBytes = TBToBytes(quotaTB)
	}
	rows.Close()

	datasetByID := make(map[int32]*inventory.Dataset)
	rows, err = tx.Query(ctx, `SELECT id, name, size, num_files, status, data_type, last_update, is_open FROM datasets`+filterWhereDatasets(filter))
	if err != nil {
		return &inventory.StoreError{Op: "load_data.datasets", Err: err}
	}
	for rows.Next() {
		var id int32
		var name, status, dataType string
		var size int64
		var numFiles int
		var lastUpdate int64
		var isOpen bool
		if err := rows.Scan(&id, &name, &size, &numFiles, &status, &dataType, &lastUpdate, &isOpen); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.datasets.scan", Err: err}
		}
		d := inv.NewDataset(name)
		d.ID = inventory.ID(id)
		d.Size = uint64(size)
		d.NumFiles = numFiles
		d.Status = inventory.DatasetStatus(status)
		d.DataType = dataType
		d.LastUpdate = lastUpdate
		d.IsOpen = isOpen
		datasetByID[id] = d
	}
	rows.Close()

	blockByID := make(map[int32]*inventory.Block)
	blockSize := make(map[int32]uint64)
	blockNumFiles := make(map[int32]int)
	rows, err = tx.Query(ctx, `SELECT id, dataset_id, name, size, num_files, is_open, last_update FROM blocks`+filterWhereDatasetsAliased(filter, "dataset_id"))
	if err != nil {
		return &inventory.StoreError{Op: "load_data.blocks", Err: err}
	}
	for rows.Next() {
		var id, datasetID int32
		var name string
		var size int64
		var numFiles int
		var isOpen bool
		var lastUpdate int64
		if err := rows.Scan(&id, &datasetID, &name, &size, &numFiles, &isOpen, &lastUpdate); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.blocks.scan", Err: err}
		}
		d := datasetByID[datasetID]
		if d == nil {
			continue
		}
		b := inv.NewBlock(d, inventory.InternalBlockName(name))
		b.ID = inventory.ID(id)
		b.IsOpen = isOpen
		b.LastUpdate = lastUpdate
		blockByID[id] = b
		blockSize[id] = uint64(size)
		blockNumFiles[id] = numFiles
	}
	rows.Close()

	rows, err = tx.Query(ctx, `SELECT id, block_id, name, size FROM files`)
	if err != nil {
		return &inventory.StoreError{Op: "load_data.files", Err: err}
	}
	for rows.Next() {
		var id, blockID int32
		var name string
		var size int64
		if err := rows.Scan(&id, &blockID, &name, &size); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.files.scan", Err: err}
		}
		b := blockByID[blockID]
		if b == nil {
			continue
		}
		f := inv.NewFile(b, name, uint64(size))
		f.ID = inventory.ID(id)
	}
	rows.Close()

	// The files loop above rolls each loaded file into its block's and its
	// dataset's Size/NumFiles via addFile. Datasets were assigned their
	// persisted totals above, so take the file-derived amount back out of
	// them, then reassert the persisted rollup from the blocks table, so
	// both match what was saved even when not all file rows are reloaded.
	for id, b := range blockByID {
		b.Dataset.Size -= b.Size
		b.Dataset.NumFiles -= b.NumFiles
		b.Size = blockSize[id]
		b.NumFiles = blockNumFiles[id]
	}

	// dataset_replicas is queried separately from block_replicas because an
	// empty DatasetReplica (a dataset_id/site_id row with no matching block
	// replica) carries no block_replicas row to reconstruct it from (§4.1
	// step 3: "the row denotes an empty DatasetReplica and contributes no
	// BlockReplica").
	rows, err = tx.Query(ctx, `SELECT dataset_id, site_id FROM dataset_replicas`)
	if err != nil {
		return &inventory.StoreError{Op: "load_data.dataset_replicas", Err: err}
	}
	for rows.Next() {
		var datasetID, siteID int32
		if err := rows.Scan(&datasetID, &siteID); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.dataset_replicas.scan", Err: err}
		}
		d, site := datasetByID[datasetID], siteByID[siteID]
		if d == nil || site == nil {
			continue
		}
		inv.NewDatasetReplica(d, site)
	}
	rows.Close()

	rows, err = tx.Query(ctx, `
		SELECT br.block_id, br.site_id, br.group_id, br.is_complete, br.is_custodial, br.last_update, brs.size
		FROM block_replicas br
		LEFT JOIN block_replica_sizes brs ON brs.block_id = br.block_id AND brs.site_id = br.site_id`)
	if err != nil {
		return &inventory.StoreError{Op: "load_data.block_replicas", Err: err}
	}
	for rows.Next() {
		var blockID, siteID int32
		var groupID *int32
		var isComplete, isCustodial bool
		var lastUpdate int64
		var overrideSize *int64
		if err := rows.Scan(&blockID, &siteID, &groupID, &isComplete, &isCustodial, &lastUpdate, &overrideSize); err != nil {
			rows.Close()
			return &inventory.StoreError{Op: "load_data.block_replicas.scan", Err: err}
		}
		b, site := blockByID[blockID], siteByID[siteID]
		if b == nil || site == nil {
			continue
		}
		br := inventory.NewBlockReplica(b, site)
		br.IsComplete = isComplete
		br.IsCustodial = isCustodial
		br.LastUpdate = lastUpdate
		if groupID != nil {
			br.Group = groupByID[*groupID]
		}
		if overrideSize != nil {
			br.Size = uint64(*overrideSize)
		}
		inv.AddBlockReplica(br)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return &inventory.StoreError{Op: "load_data.commit", Err: err}
	}
	return nil
}

func filterWhereGroups(f Filter) string {
	if len(f.Groups) == 0 {
		return ""
	}
	return " JOIN tmp_filter_groups tfg ON tfg.id = groups.id"
}

func filterWhereSites(f Filter) string {
	if len(f.Sites) == 0 {
		return ""
	}
	return " JOIN tmp_filter_sites tfs ON tfs.id = sites.id"
}

func filterWhereDatasets(f Filter) string {
	if len(f.Datasets) == 0 {
		return ""
	}
	return " JOIN tmp_filter_datasets tfd ON tfd.id = datasets.id"
}

func filterWhereDatasetsAliased(f Filter, column string) string {
	if len(f.Datasets) == 0 {
		return ""
	}
	return fmt.Sprintf(" JOIN tmp_filter_datasets tfd ON tfd.id = %s", column)
}
