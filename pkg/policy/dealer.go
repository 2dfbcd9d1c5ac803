package policy

import (
	"math/rand"

	"github.com/cmsdynamo/dynamo/pkg/demand"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
)

var dealerLog = log.WithComponent("policy.dealer")

// BalancerReason names an ownership/diversity condition that, independent
// of the request-weight threshold, forces a dataset into the replication
// candidate set (§4.6's "separate balancer reason set").
type BalancerReason string

// BalancerRule inspects a dataset and reports whether it needs an extra
// copy for balance reasons (e.g. under-replicated across site categories),
// distinct from the demand-driven request_weight trigger.
type BalancerRule func(d *inventory.Dataset) (BalancerReason, bool)

// DealerConfig mirrors §6's Dealer configuration block.
type DealerConfig struct {
	PartitionName           string // partition whose quota/occupancy gates candidate sites
	IncludedSitePatterns    []string
	RequestToReplicaThresh  float64
	MaxCopyPerSiteTB        float64
	MaxCopyTotalTB          float64
	MaxReplicas             int
	MaxDatasetSizeTB        float64
	TargetSiteOccupancyFrac float64
	OverflowFactor          float64
	BalancerRules           []BalancerRule
}

// Dealer is the demand-driven replication engine (§4.6).
type Dealer struct {
	Config DealerConfig
}

// NewDealer constructs a Dealer from cfg.
func NewDealer(cfg DealerConfig) *Dealer {
	return &Dealer{Config: cfg}
}

// copyState tracks the running totals a dealer run must respect across
// every request it emits, since the per-site and global volume caps are
// shared across all candidate datasets in one evaluation.
type copyState struct {
	perSiteBytes map[*inventory.Site]float64
	totalBytes   float64
}

// Evaluate scans every dataset, computing request_weight/num_existing
// against the threshold (falling back to the balancer rule set when the
// threshold isn't crossed), and schedules one additional copy per
// qualifying dataset to a randomly chosen eligible site, honoring the
// per-site, global, and max-replica caps.
func (dl *Dealer) Evaluate(inv *inventory.Inventory, dmd *demand.Manager) []ReplicationRequest {
	inv.RLock()
	defer inv.RUnlock()

	var candidateSites []*inventory.Site
	for _, s := range inv.SitesNoLock() {
		if MatchesAny(dl.Config.IncludedSitePatterns, s.Name) {
			candidateSites = append(candidateSites, s)
		}
	}

	state := &copyState{perSiteBytes: make(map[*inventory.Site]float64)}
	maxCopyPerSiteBytes := dl.Config.MaxCopyPerSiteTB * 1e12
	maxCopyTotalBytes := dl.Config.MaxCopyTotalTB * 1e12
	maxDatasetSizeBytes := dl.Config.MaxDatasetSizeTB * 1e12

	var out []ReplicationRequest
	for _, d := range inv.DatasetsNoLock() {
		if maxCopyTotalBytes > 0 && state.totalBytes >= maxCopyTotalBytes {
			break
		}
		if maxDatasetSizeBytes > 0 && float64(d.Size) >= maxDatasetSizeBytes {
			continue
		}

		existing := d.Replicas()
		if dl.Config.MaxReplicas > 0 && len(existing) >= dl.Config.MaxReplicas {
			continue
		}

		weight := dmd.GlobalUsageRank(d.Name)
		qualifies := len(existing) > 0 && weight/float64(len(existing)) > dl.Config.RequestToReplicaThresh

		var reason BalancerReason
		if !qualifies {
			for _, rule := range dl.Config.BalancerRules {
				if r, ok := rule(d); ok {
					reason = r
					qualifies = true
					break
				}
			}
		}
		if !qualifies {
			continue
		}

		site := dl.pickDestinationSite(d, existing, candidateSites, state, maxCopyPerSiteBytes, maxCopyTotalBytes, dl.Config.PartitionName)
		if site == nil {
			continue
		}

		out = append(out, ReplicationRequest{Dataset: d, Site: site})
		state.perSiteBytes[site] += float64(d.Size)
		state.totalBytes += float64(d.Size)

		if reason != "" {
			dealerLog.Debug().Str("dataset", d.Name).Str("reason", string(reason)).Msg("balancer-triggered copy")
		}
	}

	dealerLog.Info().Int("requests", len(out)).Msg("dealer evaluation complete")
	return out
}

// pickDestinationSite chooses a random eligible site: in included_sites,
// not already holding a replica, whose occupancy after the copy would stay
// within target_site_occupancy*overflow_factor, and within both the
// per-site and the running global volume caps. Quota 0 excludes a site
// entirely (§8 boundary: "quota=0 emits zero requests for that site").
func (dl *Dealer) pickDestinationSite(d *inventory.Dataset, existing []*inventory.DatasetReplica, candidateSites []*inventory.Site, state *copyState, maxCopyPerSiteBytes, maxCopyTotalBytes float64, partitionName string) *inventory.Site {
	has := make(map[*inventory.Site]bool, len(existing))
	for _, dr := range existing {
		has[dr.Site] = true
	}

	size := float64(d.Size)
	if maxCopyTotalBytes > 0 && state.totalBytes+size > maxCopyTotalBytes {
		return nil
	}

	var eligible []*inventory.Site
	for _, s := range candidateSites {
		if has[s] {
			continue
		}
		sp := s.Partition(partitionName)
		quota := float64(sp.QuotaBytes)
		if quota <= 0 {
			continue
		}
		if maxCopyPerSiteBytes > 0 && state.perSiteBytes[s]+size > maxCopyPerSiteBytes {
			continue
		}
		projected := float64(sp.Occupancy()) + size
		if projected > quota*dl.Config.TargetSiteOccupancyFrac*dl.Config.OverflowFactor {
			continue
		}
		eligible = append(eligible, s)
	}
	if len(eligible) == 0 {
		return nil
	}
	return eligible[rand.Intn(len(eligible))]
}
