package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dynamo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "read_only: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 6*60*60, cfg.Inventory.RefreshMin)
	assert.EqualValues(t, 3, cfg.Webservice.NumAttempts)
	assert.EqualValues(t, 40<<40, cfg.Phedex.SubscriptionChunkSize)
	assert.EqualValues(t, 32, cfg.NumThreads)
}

func TestLoadParsesFullSurface(t *testing.T) {
	path := writeTempConfig(t, `
read_only: false
daemon_mode: true
num_threads: 16
paths:
  base: /opt/dynamo
  data: /opt/dynamo/data
inventory:
  refresh_min: 7200
  included_sites: ["T1_*", "T2_US_*"]
webservice:
  x509_key: /etc/dynamo/proxy.pem
  num_attempts: 5
phedex:
  url_base: https://cmsweb.cern.ch/phedex/datasvc/json/prod
  subscription_chunk_size: 1099511627776
dealer:
  max_replicas: 4
  target_site_occupancy: 0.9
  overflow_factor: 1.1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.DaemonMode)
	assert.Equal(t, "/opt/dynamo", cfg.Paths.Base)
	assert.Equal(t, 7200, cfg.Inventory.RefreshMin)
	assert.Equal(t, []string{"T1_*", "T2_US_*"}, cfg.Inventory.IncludedSites)
	assert.EqualValues(t, 5, cfg.Webservice.NumAttempts)
	assert.Equal(t, 4, cfg.Dealer.MaxReplicas)
	assert.InDelta(t, 0.9, cfg.Dealer.TargetSiteOccupancy, 0.0001)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
