// Package config loads Dynamo's configuration surface (§6) from a single
// YAML file into a closed, versioned schema, replacing the dynamic
// configuration blobs flagged in the redesign notes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the enumerated configuration surface (§6).
type Config struct {
	ReadOnly   bool   `yaml:"read_only"`
	DaemonMode bool   `yaml:"daemon_mode"`
	NumThreads uint16 `yaml:"num_threads"`

	Paths     PathsConfig     `yaml:"paths"`
	Store     StoreConfig     `yaml:"store"`
	Inventory InventoryConfig `yaml:"inventory"`
	Webservice WebserviceConfig `yaml:"webservice"`
	Phedex    PhedexConfig    `yaml:"phedex"`
	DBS       DBSConfig       `yaml:"dbs"`
	SSB       SSBConfig       `yaml:"ssb"`
	Weblock   WeblockConfig   `yaml:"weblock"`
	Demand    DemandConfig    `yaml:"demand"`
	Detox     DetoxConfig     `yaml:"detox"`
	Dealer    DealerConfig    `yaml:"dealer"`
}

// PathsConfig holds the base and data directories.
type PathsConfig struct {
	Base string `yaml:"base"`
	Data string `yaml:"data"`
}

// StoreConfig names the persistent store's Postgres DSN. §6 enumerates
// paths.{base,data} for filesystem layout but is silent on the
// ambient detail of how the store itself connects; this section supplies
// it rather than overloading paths.data with a connection string.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// InventoryConfig scopes the synchronizer to a subset of the grid and
// sets its refresh cadence.
type InventoryConfig struct {
	RefreshMin     int      `yaml:"refresh_min"` // seconds despite the name (§6); default 6h
	IncludedSites  []string `yaml:"included_sites"`
	ExcludedSites  []string `yaml:"excluded_sites"`
	IncludedGroups []string `yaml:"included_groups"`
}

// WebserviceConfig configures the REST client's mutual-TLS credential and
// retry budget.
type WebserviceConfig struct {
	X509Key     string `yaml:"x509_key"`
	NumAttempts uint8  `yaml:"num_attempts"`
}

// PhedexConfig points at the data-catalog REST endpoint and the
// subscription batching size (§4.7).
type PhedexConfig struct {
	URLBase               string `yaml:"url_base"`
	SubscriptionChunkSize uint64 `yaml:"subscription_chunk_size"` // bytes
}

// DBSConfig points at the dataset-catalog REST endpoint.
type DBSConfig struct {
	URLBase string `yaml:"url_base"`
}

// SSBConfig points at the site-status REST endpoint and names the two
// "getplotdata?columnid=…" feeds the site-status adapter consults (§4.3.1).
type SSBConfig struct {
	URLBase          string `yaml:"url_base"`
	WaitroomColumnID string `yaml:"waitroom_columnid"`
	MorgueColumnID   string `yaml:"morgue_columnid"`
}

// WeblockSource names one configured demand lock source (§4.5) by its URL
// and source kind ("LIST_OF_DATASETS", "SITE_TO_DATASETS", or
// "CMSWEB_LIST_OF_DATASETS").
type WeblockSource struct {
	URL  string `yaml:"url"`
	Kind string `yaml:"kind"`
}

// WeblockConfig configures the lock demand source.
type WeblockConfig struct {
	Sources []WeblockSource `yaml:"sources"`
	Lock    string          `yaml:"lock"`
}

// AccessHistoryConfig configures the access-rank demand source.
type AccessHistoryConfig struct {
	IncrementS  int `yaml:"increment_s"`
	MaxBackQuery int `yaml:"max_back_query"`
}

// TimeBinConfig is one (delta seconds, weight) pair for the access-rank
// weighted sum (§4.5).
type TimeBinConfig struct {
	DeltaS int     `yaml:"delta_s"`
	Weight float64 `yaml:"weight"`
}

// DemandConfig configures the demand manager's signal sources.
type DemandConfig struct {
	AccessHistory   AccessHistoryConfig `yaml:"access_history"`
	WeightTimeBins  []TimeBinConfig     `yaml:"weight_time_bins"`
}

// DetoxConfig is the Detox-specific slice of §6's enumerated surface.
type DetoxConfig struct {
	ActivityIndicator       string  `yaml:"activity_indicator"`
	DeletionPerIteration    float64 `yaml:"deletion_per_iteration"`
	DeletionVolumePerRequest float64 `yaml:"deletion_volume_per_request"` // TB
	ExcludeIfOn             []string `yaml:"exclude_if_on"`
	TimeShift               int     `yaml:"time_shift"` // seconds
}

// DealerConfig is the Dealer-specific slice of §6's enumerated surface.
type DealerConfig struct {
	IncludedSites             []string `yaml:"included_sites"`
	DemandRefreshIntervalS    int      `yaml:"demand_refresh_interval_s"`
	MaxDatasetSizeTB          float64  `yaml:"max_dataset_size_TB"`
	RequestToReplicaThreshold float64  `yaml:"request_to_replica_threshold"`
	MaxCopyPerSiteTB          float64  `yaml:"max_copy_per_site_TB"`
	MaxCopyTotalTB            float64  `yaml:"max_copy_total_TB"`
	MaxReplicas               int      `yaml:"max_replicas"`
	TargetSiteOccupancy       float64  `yaml:"target_site_occupancy"`
	OverflowFactor            float64  `yaml:"overflow_factor"`
	BalancerTargetReasons     []string `yaml:"balancer_target_reasons"`
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills in the zero-value defaults §6 and §4.2/§4.4/§4.7
// name explicitly.
func (c *Config) applyDefaults() {
	if c.Inventory.RefreshMin == 0 {
		c.Inventory.RefreshMin = 6 * 60 * 60 // 6h in seconds
	}
	if c.Webservice.NumAttempts == 0 {
		c.Webservice.NumAttempts = 3
	}
	if c.Phedex.SubscriptionChunkSize == 0 {
		c.Phedex.SubscriptionChunkSize = 40 << 40 // 40 TB
	}
	if c.NumThreads == 0 {
		c.NumThreads = 32
	}
}
