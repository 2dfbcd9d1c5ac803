package store

// schemaStatements define the logical persistent schema (spec §6). Each
// statement is idempotent (IF NOT EXISTS) so ensureSchema can run on every
// startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS groups (
		id SERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		olevel TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sites (
		id SERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		host TEXT NOT NULL,
		storage_type TEXT NOT NULL,
		backend TEXT NOT NULL,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS partitions (
		id SERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS partition_subpartitions (
		partition_id INTEGER NOT NULL REFERENCES partitions(id) ON DELETE CASCADE,
		subpartition_id INTEGER NOT NULL REFERENCES partitions(id) ON DELETE CASCADE,
		PRIMARY KEY (partition_id, subpartition_id)
	)`,
	`CREATE TABLE IF NOT EXISTS quotas (
		site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		partition_id INTEGER NOT NULL REFERENCES partitions(id) ON DELETE CASCADE,
		storage_tb DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (site_id, partition_id)
	)`,
	`CREATE TABLE IF NOT EXISTS software_versions (
		id SERIAL PRIMARY KEY,
		cycle INTEGER NOT NULL,
		major INTEGER NOT NULL,
		minor INTEGER NOT NULL,
		suffix TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		id SERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		size BIGINT NOT NULL DEFAULT 0,
		num_files INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		data_type TEXT NOT NULL,
		software_version_id INTEGER REFERENCES software_versions(id),
		last_update BIGINT NOT NULL DEFAULT 0,
		is_open BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		id SERIAL PRIMARY KEY,
		dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		size BIGINT NOT NULL DEFAULT 0,
		num_files INTEGER NOT NULL DEFAULT 0,
		is_open BOOLEAN NOT NULL DEFAULT false,
		last_update BIGINT NOT NULL DEFAULT 0,
		UNIQUE (dataset_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id SERIAL PRIMARY KEY,
		block_id INTEGER NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
		dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		size BIGINT NOT NULL DEFAULT 0,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dataset_replicas (
		dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		PRIMARY KEY (dataset_id, site_id)
	)`,
	`CREATE TABLE IF NOT EXISTS block_replicas (
		block_id INTEGER NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
		site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		group_id INTEGER REFERENCES groups(id),
		is_complete BOOLEAN NOT NULL DEFAULT false,
		is_custodial BOOLEAN NOT NULL DEFAULT false,
		last_update BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (block_id, site_id)
	)`,
	`CREATE TABLE IF NOT EXISTS block_replica_sizes (
		block_id INTEGER NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
		site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		size BIGINT NOT NULL,
		PRIMARY KEY (block_id, site_id)
	)`,
}
