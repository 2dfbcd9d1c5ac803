package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/metrics"
)

// tmpTableDefs mirrors schemaStatements' column lists but without foreign
// key constraints: the swap-table pattern recreates each table from
// scratch every save, and enforcing referential integrity while both the
// live and temporary copies exist is more trouble than it is worth — the
// inventory itself is the source of truth for referential consistency.
var tmpTableDefs = map[string]string{
	"groups":                  `id INTEGER PRIMARY KEY, name TEXT NOT NULL, olevel TEXT NOT NULL`,
	"sites":                   `id INTEGER PRIMARY KEY, name TEXT NOT NULL, host TEXT NOT NULL, storage_type TEXT NOT NULL, backend TEXT NOT NULL, status TEXT NOT NULL`,
	"partitions":              `id INTEGER PRIMARY KEY, name TEXT NOT NULL`,
	"partition_subpartitions": `partition_id INTEGER NOT NULL, subpartition_id INTEGER NOT NULL`,
	"quotas":                  `site_id INTEGER NOT NULL, partition_id INTEGER NOT NULL, storage_tb DOUBLE PRECISION NOT NULL`,
	"datasets":                `id INTEGER PRIMARY KEY, name TEXT NOT NULL, size BIGINT NOT NULL, num_files INTEGER NOT NULL, status TEXT NOT NULL, data_type TEXT NOT NULL, last_update BIGINT NOT NULL, is_open BOOLEAN NOT NULL`,
	"blocks":                  `id INTEGER PRIMARY KEY, dataset_id INTEGER NOT NULL, name TEXT NOT NULL, size BIGINT NOT NULL, num_files INTEGER NOT NULL, is_open BOOLEAN NOT NULL, last_update BIGINT NOT NULL`,
	"files":                   `id INTEGER PRIMARY KEY, block_id INTEGER NOT NULL, dataset_id INTEGER NOT NULL, size BIGINT NOT NULL, name TEXT NOT NULL`,
	"dataset_replicas":        `dataset_id INTEGER NOT NULL, site_id INTEGER NOT NULL`,
	"block_replicas":          `block_id INTEGER NOT NULL, site_id INTEGER NOT NULL, group_id INTEGER, is_complete BOOLEAN NOT NULL, is_custodial BOOLEAN NOT NULL, last_update BIGINT NOT NULL`,
	"block_replica_sizes":     `block_id INTEGER NOT NULL, site_id INTEGER NOT NULL, size BIGINT NOT NULL`,
}

// tmpTableOrder is the order tables are created in; the swap runs through
// it in reverse. It does not need to honor foreign keys (the tmp tables
// carry none) but is kept parent-before-child for readability.
var tmpTableOrder = []string{
	"groups", "sites", "partitions", "partition_subpartitions", "quotas",
	"datasets", "blocks", "files", "dataset_replicas", "block_replicas", "block_replica_sizes",
}

// SaveData performs a full snapshot of inv using the swap-table pattern:
// every table is rebuilt in a "_tmp" twin, and only once every twin has
// been populated without error are the live tables replaced — so a
// failure partway through never leaves the persistent store half-written
// (spec §4.1 error policy).
func (s *Store) SaveData(ctx context.Context, inv *inventory.Inventory) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StoreSaveDuration)

	// snapshot takes its own per-entity read locks (Inventory's accessor
	// methods each RLock individually); no outer lock is held here since
	// the synchronizer already guarantees no sync cycle runs concurrently
	// with a save.
	snap := snapshot(inv)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &inventory.StoreError{Op: "save_data.begin", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, table := range tmpTableOrder {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE TABLE %s_tmp (%s)`, table, tmpTableDefs[table])); err != nil {
			return &inventory.StoreError{Op: "save_data.create_tmp:" + table, Err: err}
		}
	}

	if err := insertSnapshot(ctx, tx, snap); err != nil {
		return err
	}

	for i := len(tmpTableOrder) - 1; i >= 0; i-- {
		table := tmpTableOrder[i]
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
			return &inventory.StoreError{Op: "save_data.drop:" + table, Err: err}
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s_tmp RENAME TO %s`, table, table)); err != nil {
			return &inventory.StoreError{Op: "save_data.rename:" + table, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &inventory.StoreError{Op: "save_data.commit", Err: err}
	}
	return nil
}

// graphSnapshot holds the top-level entity lists SaveData walks, gathered
// through the inventory's accessors, each of which takes the read lock on
// its own. The entities themselves are shared, not copied; insertSnapshot
// reads them without holding the inventory lock.
type graphSnapshot struct {
	groups     []*inventory.Group
	sites      []*inventory.Site
	partitions []*inventory.Partition
	datasets   []*inventory.Dataset
}

func snapshot(inv *inventory.Inventory) graphSnapshot {
	return graphSnapshot{
		groups:     inv.Groups(),
		sites:      inv.Sites(),
		partitions: inv.Partitions(),
		datasets:   inv.Datasets(),
	}
}

func insertSnapshot(ctx context.Context, tx pgx.Tx, snap graphSnapshot) error {
	for _, g := range snap.groups {
		if _, err := tx.Exec(ctx, `INSERT INTO groups_tmp (id, name, olevel) VALUES ($1,$2,$3)`,
			int32(g.ID), g.Name, g.Olevel); err != nil {
			return &inventory.StoreError{Op: "save_data.insert:groups", Err: err}
		}
	}

	for _, s := range snap.sites {
		if _, err := tx.Exec(ctx, `INSERT INTO sites_tmp (id, name, host, storage_type, backend, status) VALUES ($1,$2,$3,$4,$5,$6)`,
			int32(s.ID), s.Name, s.Host, string(s.StorageType), s.Backend, string(s.Status)); err != nil {
			return &inventory.StoreError{Op: "save_data.insert:sites", Err: err}
		}
		for _, sp := range s.Partitions() {
			partition, ok := findPartition(snap.partitions, sp.Partition)
			if !ok || sp.QuotaBytes == 0 {
				continue
			}
			if _, err := tx.Exec(ctx, `INSERT INTO quotas_tmp (site_id, partition_id, storage_tb) VALUES ($1,$2,$3)`,
				int32(s.ID), int32(partition.ID), BytesToTB(sp.QuotaBytes)); err != nil {
				return &inventory.StoreError{Op: "save_data.insert:quotas", Err: err}
			}
		}
	}

	for _, p := range snap.partitions {
		if _, err := tx.Exec(ctx, `INSERT INTO partitions_tmp (id, name) VALUES ($1,$2)`,
			int32(p.ID), p.Name); err != nil {
			return &inventory.StoreError{Op: "save_data.insert:partitions", Err: err}
		}
		for _, sub := range p.Subpartitions {
			if _, err := tx.Exec(ctx, `INSERT INTO partition_subpartitions_tmp (partition_id, subpartition_id) VALUES ($1,$2)`,
				int32(p.ID), int32(sub.ID)); err != nil {
				return &inventory.StoreError{Op: "save_data.insert:partition_subpartitions", Err: err}
			}
		}
	}

	for _, d := range snap.datasets {
		if _, err := tx.Exec(ctx, `INSERT INTO datasets_tmp (id, name, size, num_files, status, data_type, last_update, is_open) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			int32(d.ID), d.Name, int64(d.Size), d.NumFiles, string(d.Status), d.DataType, d.LastUpdate, d.IsOpen); err != nil {
			return &inventory.StoreError{Op: "save_data.insert:datasets", Err: err}
		}

		for _, dr := range d.Replicas() {
			if _, err := tx.Exec(ctx, `INSERT INTO dataset_replicas_tmp (dataset_id, site_id) VALUES ($1,$2)`,
				int32(d.ID), int32(dr.Site.ID)); err != nil {
				return &inventory.StoreError{Op: "save_data.insert:dataset_replicas", Err: err}
			}
		}

		for _, b := range d.Blocks() {
			if _, err := tx.Exec(ctx, `INSERT INTO blocks_tmp (id, dataset_id, name, size, num_files, is_open, last_update) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				int32(b.ID), int32(d.ID), string(b.InternalName), int64(b.Size), b.NumFiles, b.IsOpen, b.LastUpdate); err != nil {
				return &inventory.StoreError{Op: "save_data.insert:blocks", Err: err}
			}
			for _, f := range b.Files() {
				if _, err := tx.Exec(ctx, `INSERT INTO files_tmp (id, block_id, dataset_id, size, name) VALUES ($1,$2,$3,$4,$5)`,
					int32(f.ID), int32(b.ID), int32(d.ID), int64(f.Size), f.LFN); err != nil {
					return &inventory.StoreError{Op: "save_data.insert:files", Err: err}
				}
			}
			for _, br := range b.Replicas() {
				var groupID *int32
				if br.Group != nil {
					id := int32(br.Group.ID)
					groupID = &id
				}
				if _, err := tx.Exec(ctx, `INSERT INTO block_replicas_tmp (block_id, site_id, group_id, is_complete, is_custodial, last_update) VALUES ($1,$2,$3,$4,$5,$6)`,
					int32(b.ID), int32(br.Site.ID), groupID, br.IsComplete, br.IsCustodial, br.LastUpdate); err != nil {
					return &inventory.StoreError{Op: "save_data.insert:block_replicas", Err: err}
				}
				// Open Question (b): block_replica_sizes rows exist only
				// when the replica's size differs from its block's size.
				if br.Size != b.Size {
					if _, err := tx.Exec(ctx, `INSERT INTO block_replica_sizes_tmp (block_id, site_id, size) VALUES ($1,$2,$3)`,
						int32(b.ID), int32(br.Site.ID), int64(br.Size)); err != nil {
						return &inventory.StoreError{Op: "save_data.insert:block_replica_sizes", Err: err}
					}
				}
			}
		}
	}

	return nil
}

func findPartition(partitions []*inventory.Partition, name string) (*inventory.Partition, bool) {
	for _, p := range partitions {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
