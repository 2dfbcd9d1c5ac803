// Package sync is the periodic synchronizer: it orchestrates the source
// adapters in six ordered phases, merges their deltas into the inventory,
// and commits a full save to the persistent store (§4.4).
package sync

import (
	"context"
	"time"

	"github.com/cmsdynamo/dynamo/pkg/adapters"
	"github.com/cmsdynamo/dynamo/pkg/demand"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
	"github.com/cmsdynamo/dynamo/pkg/store"
)

var syncLog = log.WithComponent("sync")

// Config is the synchronizer's static configuration (§4.4, §6).
type Config struct {
	RefreshInterval time.Duration // default 6h
	SiteFilter      []string
	GroupFilter     []string
	DatasetFilter   []string

	WaitroomColumnID string
	MorgueColumnID   string

	LockSources []LockSourceConfig
}

// LockSourceConfig names one configured demand lock source (§4.5).
type LockSourceConfig struct {
	Resource string
	Type     adapters.LockSourceType
}

// Synchronizer runs the periodic six-phase cycle.
type Synchronizer struct {
	cfg    Config
	client *restclient.Client
	inv    *inventory.Inventory
	st     *store.Store
	dmd    *demand.Manager

	stopCh chan struct{}
}

// New constructs a Synchronizer wired to the given client, inventory,
// store, and demand manager.
func New(cfg Config, client *restclient.Client, inv *inventory.Inventory, st *store.Store, dmd *demand.Manager) *Synchronizer {
	return &Synchronizer{
		cfg:    cfg,
		client: client,
		inv:    inv,
		st:     st,
		dmd:    dmd,
		stopCh: make(chan struct{}),
	}
}

// Start runs RunCycle on cfg.RefreshInterval (default 6h) until Stop is
// called. It runs one cycle immediately before the first tick.
func (s *Synchronizer) Start(ctx context.Context) {
	interval := s.cfg.RefreshInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	if err := s.RunCycle(ctx); err != nil {
		syncLog.Error().Err(err).Msg("initial sync cycle failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				syncLog.Error().Err(err).Msg("sync cycle failed")
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the periodic loop started by Start.
func (s *Synchronizer) Stop() {
	close(s.stopCh)
}

// RunCycle executes the six phases once. Phases 1-2 failing aborts the
// cycle with no mutation committed to the store (the inventory may still
// hold partial in-memory state from phase 1, but phase 6 — the only
// point data reaches the store — never runs). Phases 3-5 are best-effort:
// individual chunk failures are logged and skipped by the adapters
// themselves. Phase 6 is all-or-nothing per the store's swap-table save.
func (s *Synchronizer) RunCycle(ctx context.Context) error {
	start := time.Now()
	syncLog.Info().Msg("sync cycle starting")

	if err := adapters.GetSiteList(ctx, s.client, s.inv, s.cfg.SiteFilter); err != nil {
		syncLog.Error().Err(err).Msg("phase 1 (site list) failed, aborting cycle")
		return err
	}
	if err := adapters.SetSiteStatus(ctx, s.client, s.inv, s.cfg.WaitroomColumnID, s.cfg.MorgueColumnID); err != nil {
		syncLog.Error().Err(err).Msg("phase 1 (site status) failed, aborting cycle")
		return err
	}

	if err := adapters.GetGroupList(ctx, s.client, s.inv, s.cfg.GroupFilter); err != nil {
		syncLog.Error().Err(err).Msg("phase 2 (group list) failed, aborting cycle")
		return err
	}

	if err := adapters.MakeReplicaLinks(ctx, s.client, s.inv, s.cfg.SiteFilter, s.cfg.GroupFilter, s.cfg.DatasetFilter); err != nil {
		syncLog.Warn().Err(err).Msg("phase 3 (replica catalog) reported an error; continuing with partial data")
	}

	detailTargets := datasetsNeedingDetail(s.inv)
	if len(detailTargets) > 0 {
		if err := adapters.FillDatasetDetail(ctx, s.client, s.inv, detailTargets); err != nil {
			syncLog.Warn().Err(err).Msg("phase 4 (dataset detail) reported an error; continuing best-effort")
		}
	}

	if err := adapters.CheckTapePresence(ctx, s.client, s.inv); err != nil {
		syncLog.Warn().Err(err).Msg("phase 5 (tape check) reported an error; continuing best-effort")
	}

	if s.st != nil {
		if err := s.st.SaveData(ctx, s.inv); err != nil {
			syncLog.Error().Err(err).Msg("phase 6 (save) failed")
			return err
		}
	}

	syncLog.Info().Dur("elapsed", time.Since(start)).Msg("sync cycle complete")
	return nil
}

// RefreshDemand fetches all configured demand sources and updates the
// demand manager's caches. It is not one of the six inventory-sync phases
// and runs on its own cadence, independent of RunCycle.
func (s *Synchronizer) RefreshDemand(ctx context.Context) {
	if s.dmd == nil {
		return
	}

	var locks []adapters.LockEntry
	for _, src := range s.cfg.LockSources {
		entries, err := adapters.FetchLocks(ctx, s.client, src.Resource, src.Type)
		if err != nil {
			syncLog.Warn().Err(err).Str("resource", src.Resource).Msg("lock source fetch failed, skipping")
			continue
		}
		locks = append(locks, entries...)
	}
	s.dmd.SetLocks(locks)

	since := time.Now().Add(-30 * 24 * time.Hour).Unix() / 86400
	if records, err := adapters.FetchAccessHistory(ctx, s.client, since); err != nil {
		syncLog.Warn().Err(err).Msg("access history fetch failed, skipping")
	} else {
		s.dmd.SetAccessHistory(records)
	}

	if reqs, err := adapters.FetchPendingRequests(ctx, s.client); err != nil {
		syncLog.Warn().Err(err).Msg("pending request queue fetch failed, skipping")
	} else {
		s.dmd.SetPendingRequests(reqs)
	}
}

// datasetsNeedingDetail restricts the dataset-detail phase to datasets
// whose status is PRODUCTION or UNKNOWN, whose data_type is UNKNOWN, or
// whose software version is unset (§4.4 phase 4).
func datasetsNeedingDetail(inv *inventory.Inventory) []string {
	var out []string
	for _, d := range inv.Datasets() {
		if d.Status == inventory.DatasetProduction || d.Status == inventory.DatasetUnknown ||
			d.DataType == "" || d.DataType == "UNKNOWN" || d.SoftwareVersion == "" {
			out = append(out, d.Name)
		}
	}
	return out
}
