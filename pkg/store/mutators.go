package store

import (
	"context"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

// assignID mints an id for an entity that has never been saved. Per
// spec's error policy, incremental mutations on a missing parent id are
// no-ops rather than errors; assignID itself never fails against a
// reachable database, so callers only need to check the returned error
// for a connection problem.
func (s *Store) assignID(ctx context.Context, table string, id *inventory.ID) error {
	if !id.Unsaved() {
		return nil
	}
	next, err := s.ids.next(ctx, s, table)
	if err != nil {
		return err
	}
	*id = inventory.ID(next)
	return nil
}

// SaveGroup upserts g, assigning it an id on first save.
func (s *Store) SaveGroup(ctx context.Context, g *inventory.Group) error {
	if err := s.assignID(ctx, "groups", &g.ID); err != nil {
		return &inventory.StoreError{Op: "save_group", Err: err}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO groups (id, name, olevel) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, olevel = EXCLUDED.olevel`,
		int32(g.ID), g.Name, g.Olevel)
	if err != nil {
		return &inventory.StoreError{Op: "save_group", Err: err}
	}
	return nil
}

// DeleteGroup removes the row for g. A zero id is a no-op.
func (s *Store) DeleteGroup(ctx context.Context, g *inventory.Group) error {
	if g.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, int32(g.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_group", Err: err}
	}
	return nil
}

// SaveSite upserts s.
func (s *Store) SaveSite(ctx context.Context, site *inventory.Site) error {
	if err := s.assignID(ctx, "sites", &site.ID); err != nil {
		return &inventory.StoreError{Op: "save_site", Err: err}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sites (id, name, host, storage_type, backend, status) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET host = EXCLUDED.host, storage_type = EXCLUDED.storage_type,
			backend = EXCLUDED.backend, status = EXCLUDED.status`,
		int32(site.ID), site.Name, site.Host, string(site.StorageType), site.Backend, string(site.Status))
	if err != nil {
		return &inventory.StoreError{Op: "save_site", Err: err}
	}
	return nil
}

// DeleteSite removes the row for site. A zero id is a no-op.
func (s *Store) DeleteSite(ctx context.Context, site *inventory.Site) error {
	if site.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM sites WHERE id = $1`, int32(site.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_site", Err: err}
	}
	return nil
}

// SaveSitePartition upserts the quota row for sp. A zero quota is stored
// as a deletion, since a quota of zero bytes is indistinguishable from
// "no quota configured".
func (s *Store) SaveSitePartition(ctx context.Context, site *inventory.Site, partition *inventory.Partition, sp *inventory.SitePartition) error {
	if site.ID.Unsaved() || partition.ID.Unsaved() {
		return nil
	}
	if sp.QuotaBytes == 0 {
		_, err := s.pool.Exec(ctx, `DELETE FROM quotas WHERE site_id = $1 AND partition_id = $2`,
			int32(site.ID), int32(partition.ID))
		if err != nil {
			return &inventory.StoreError{Op: "save_sitepartition", Err: err}
		}
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quotas (site_id, partition_id, storage_tb) VALUES ($1,$2,$3)
		ON CONFLICT (site_id, partition_id) DO UPDATE SET storage_tb = EXCLUDED.storage_tb`,
		int32(site.ID), int32(partition.ID), BytesToTB(sp.QuotaBytes))
	if err != nil {
		return &inventory.StoreError{Op: "save_sitepartition", Err: err}
	}
	return nil
}

// DeleteSitePartition removes the quota row for (site, partition).
func (s *Store) DeleteSitePartition(ctx context.Context, site *inventory.Site, partition *inventory.Partition) error {
	if site.ID.Unsaved() || partition.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM quotas WHERE site_id = $1 AND partition_id = $2`,
		int32(site.ID), int32(partition.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_sitepartition", Err: err}
	}
	return nil
}

// SaveDataset upserts d. Its blocks, files, and replicas are saved
// separately through their own mutators.
func (s *Store) SaveDataset(ctx context.Context, d *inventory.Dataset) error {
	if err := s.assignID(ctx, "datasets", &d.ID); err != nil {
		return &inventory.StoreError{Op: "save_dataset", Err: err}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO datasets (id, name, size, num_files, status, data_type, last_update, is_open)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET size = EXCLUDED.size, num_files = EXCLUDED.num_files,
			status = EXCLUDED.status, data_type = EXCLUDED.data_type,
			last_update = EXCLUDED.last_update, is_open = EXCLUDED.is_open`,
		int32(d.ID), d.Name, int64(d.Size), d.NumFiles, string(d.Status), d.DataType, d.LastUpdate, d.IsOpen)
	if err != nil {
		return &inventory.StoreError{Op: "save_dataset", Err: err}
	}
	return nil
}

// DeleteDataset removes d's row. Blocks, files, and replicas cascade via
// the schema's ON DELETE CASCADE foreign keys.
func (s *Store) DeleteDataset(ctx context.Context, d *inventory.Dataset) error {
	if d.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, int32(d.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_dataset", Err: err}
	}
	return nil
}

// SaveBlock upserts b. A zero dataset id (dataset not yet saved) is a
// no-op, per the spec's partial-mutation policy.
func (s *Store) SaveBlock(ctx context.Context, b *inventory.Block) error {
	if b.Dataset.ID.Unsaved() {
		return nil
	}
	if err := s.assignID(ctx, "blocks", &b.ID); err != nil {
		return &inventory.StoreError{Op: "save_block", Err: err}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO blocks (id, dataset_id, name, size, num_files, is_open, last_update)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET size = EXCLUDED.size, num_files = EXCLUDED.num_files,
			is_open = EXCLUDED.is_open, last_update = EXCLUDED.last_update`,
		int32(b.ID), int32(b.Dataset.ID), string(b.InternalName), int64(b.Size), b.NumFiles, b.IsOpen, b.LastUpdate)
	if err != nil {
		return &inventory.StoreError{Op: "save_block", Err: err}
	}
	return nil
}

// DeleteBlock removes b's row; its files and replicas cascade.
func (s *Store) DeleteBlock(ctx context.Context, b *inventory.Block) error {
	if b.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM blocks WHERE id = $1`, int32(b.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_block", Err: err}
	}
	return nil
}

// SaveFile upserts f. A zero block id is a no-op.
func (s *Store) SaveFile(ctx context.Context, f *inventory.File) error {
	if f.Block.ID.Unsaved() {
		return nil
	}
	if err := s.assignID(ctx, "files", &f.ID); err != nil {
		return &inventory.StoreError{Op: "save_file", Err: err}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (id, block_id, dataset_id, size, name) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET size = EXCLUDED.size`,
		int32(f.ID), int32(f.Block.ID), int32(f.Block.Dataset.ID), int64(f.Size), f.LFN)
	if err != nil {
		return &inventory.StoreError{Op: "save_file", Err: err}
	}
	return nil
}

// DeleteFile removes f's row.
func (s *Store) DeleteFile(ctx context.Context, f *inventory.File) error {
	if f.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, int32(f.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_file", Err: err}
	}
	return nil
}

// SaveDatasetReplica upserts the dataset_replicas join row. A zero dataset
// or site id is a no-op.
func (s *Store) SaveDatasetReplica(ctx context.Context, dr *inventory.DatasetReplica) error {
	if dr.Dataset.ID.Unsaved() || dr.Site.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dataset_replicas (dataset_id, site_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`,
		int32(dr.Dataset.ID), int32(dr.Site.ID))
	if err != nil {
		return &inventory.StoreError{Op: "save_datasetreplica", Err: err}
	}
	return nil
}

// DeleteDatasetReplica removes the join row for dr.
func (s *Store) DeleteDatasetReplica(ctx context.Context, dr *inventory.DatasetReplica) error {
	if dr.Dataset.ID.Unsaved() || dr.Site.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM dataset_replicas WHERE dataset_id = $1 AND site_id = $2`,
		int32(dr.Dataset.ID), int32(dr.Site.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_datasetreplica", Err: err}
	}
	return nil
}

// SaveBlockReplica upserts br, and its block_replica_sizes row following
// Open Question (b): the sizes row is written only when br.Size differs
// from its block's nominal size, and deleted otherwise.
func (s *Store) SaveBlockReplica(ctx context.Context, br *inventory.BlockReplica) error {
	if br.Block.ID.Unsaved() || br.Site.ID.Unsaved() {
		return nil
	}
	var groupID *int32
	if br.Group != nil && !br.Group.ID.Unsaved() {
		id := int32(br.Group.ID)
		groupID = &id
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO block_replicas (block_id, site_id, group_id, is_complete, is_custodial, last_update)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (block_id, site_id) DO UPDATE SET group_id = EXCLUDED.group_id,
			is_complete = EXCLUDED.is_complete, is_custodial = EXCLUDED.is_custodial,
			last_update = EXCLUDED.last_update`,
		int32(br.Block.ID), int32(br.Site.ID), groupID, br.IsComplete, br.IsCustodial, br.LastUpdate)
	if err != nil {
		return &inventory.StoreError{Op: "save_blockreplica", Err: err}
	}

	if br.Size != br.Block.Size {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO block_replica_sizes (block_id, site_id, size) VALUES ($1,$2,$3)
			ON CONFLICT (block_id, site_id) DO UPDATE SET size = EXCLUDED.size`,
			int32(br.Block.ID), int32(br.Site.ID), int64(br.Size))
	} else {
		_, err = s.pool.Exec(ctx, `DELETE FROM block_replica_sizes WHERE block_id = $1 AND site_id = $2`,
			int32(br.Block.ID), int32(br.Site.ID))
	}
	if err != nil {
		return &inventory.StoreError{Op: "save_blockreplica.size", Err: err}
	}
	return nil
}

// DeleteBlockReplica removes br's row and its block_replica_sizes row.
func (s *Store) DeleteBlockReplica(ctx context.Context, br *inventory.BlockReplica) error {
	if br.Block.ID.Unsaved() || br.Site.ID.Unsaved() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM block_replicas WHERE block_id = $1 AND site_id = $2`,
		int32(br.Block.ID), int32(br.Site.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_blockreplica", Err: err}
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM block_replica_sizes WHERE block_id = $1 AND site_id = $2`,
		int32(br.Block.ID), int32(br.Site.ID))
	if err != nil {
		return &inventory.StoreError{Op: "delete_blockreplica.size", Err: err}
	}
	return nil
}
