package policy

import (
	"sort"

	"github.com/cmsdynamo/dynamo/pkg/demand"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
)

var detoxLog = log.WithComponent("policy.detox")

// Decision is a Detox rule's verdict on one replica.
type Decision string

const (
	DecisionDelete  Decision = "DELETE"
	DecisionKeep    Decision = "KEEP"
	DecisionProtect Decision = "PROTECT"
)

// Rule evaluates one replica, returning (decision, reason, true) if it
// matches, or (_, _, false) to fall through to the next rule (§4.6).
type Rule func(dr *inventory.DatasetReplica, dmd *demand.Manager) (Decision, string, bool)

// SiteRequirement decides whether a site's eviction loop should run at
// all (initialCheck true) or whether it has reached its target and should
// stop popping candidates (initialCheck false).
type SiteRequirement func(s *inventory.Site, partitionName string, initialCheck bool) bool

// DetoxPolicy is one deletion policy scoped to a partition (§4.6).
type DetoxPolicy struct {
	Partition       *inventory.Partition
	DefaultDecision Decision
	Rules           []Rule
	SiteRequirement SiteRequirement

	DeletionVolumePerRequestTB float64 // per-batch cap, 0 means unbounded
	DeletionPerIterationFrac   float64 // fraction of site quota per iteration, 0 means unbounded
	TargetSiteOccupancyFrac    float64 // fraction of quota the eviction loop drains down to
}

// Evaluation is one replica's policy verdict.
type Evaluation struct {
	Replica  *inventory.DatasetReplica
	Decision Decision
	Reason   string
}

// Evaluate runs p's rule stack against dr in order; the first matching
// rule wins (mirrors Router.Route's first-match-wins ingress rule walk),
// otherwise DefaultDecision applies.
func (p *DetoxPolicy) Evaluate(dr *inventory.DatasetReplica, dmd *demand.Manager) Evaluation {
	for _, rule := range p.Rules {
		if decision, reason, matched := rule(dr, dmd); matched {
			return Evaluation{Replica: dr, Decision: decision, Reason: reason}
		}
	}
	return Evaluation{Replica: dr, Decision: p.DefaultDecision, Reason: "policy default"}
}

// ScheduledDeletion is one replica selected for deletion by RunEviction.
type ScheduledDeletion struct {
	Replica *inventory.DatasetReplica
	Reason  string
}

// RunEviction runs the per-site eviction loop (§4.6): gather in-partition
// replicas, sort DELETE-eligible candidates by ascending demand rank so the
// least-demanded replica is evicted first (dataset name ascending
// tiebreak), and pop them until the site's
// occupancy target is met, SiteRequirement signals the site is done, or
// the per-batch/per-iteration volume caps are exhausted. PROTECT replicas
// and custodial tape replicas are never touched.
func (p *DetoxPolicy) RunEviction(s *inventory.Site, dmd *demand.Manager) []ScheduledDeletion {
	if p.SiteRequirement != nil && !p.SiteRequirement(s, p.Partition.Name, true) {
		return nil
	}

	sp := s.Partition(p.Partition.Name)

	type candidate struct {
		dr   *inventory.DatasetReplica
		eval Evaluation
		rank float64
		size uint64
	}
	var candidates []candidate
	for dr := range sp.Replicas {
		if dr.IsCustodial {
			continue
		}
		eval := p.Evaluate(dr, dmd)
		if eval.Decision != DecisionDelete {
			continue
		}
		candidates = append(candidates, candidate{
			dr:   dr,
			eval: eval,
			rank: dmd.GlobalUsageRank(dr.Dataset.Name),
			size: dr.PhysicalSize(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].dr.Dataset.Name < candidates[j].dr.Dataset.Name
	})

	quotaBytes := float64(sp.QuotaBytes)
	batchCapBytes := p.DeletionVolumePerRequestTB * 1e12
	iterationCapBytes := quotaBytes * p.DeletionPerIterationFrac
	targetBytes := quotaBytes * p.TargetSiteOccupancyFrac
	occupancy := float64(sp.Occupancy())

	var out []ScheduledDeletion
	var batchBytes, iterationBytes float64
	for _, c := range candidates {
		if occupancy <= targetBytes {
			break
		}
		if p.SiteRequirement != nil && !p.SiteRequirement(s, p.Partition.Name, false) {
			break
		}
		size := float64(c.size)
		if batchCapBytes > 0 && batchBytes+size > batchCapBytes {
			continue
		}
		if iterationCapBytes > 0 && iterationBytes+size > iterationCapBytes {
			break
		}

		out = append(out, ScheduledDeletion{Replica: c.dr, Reason: c.eval.Reason})
		batchBytes += size
		iterationBytes += size
		occupancy -= size
	}

	detoxLog.Info().Str("site", s.Name).Str("partition", p.Partition.Name).
		Int("candidates", len(candidates)).Int("scheduled", len(out)).Msg("eviction loop complete")
	return out
}
