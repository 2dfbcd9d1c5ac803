package policy

import (
	"math/rand"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
)

var enforcerLog = log.WithComponent("policy.enforcer")

// EnforcerRule is one num_copies replication rule (§4.6). Source/destination
// site and dataset conditions are OR-lists over the attribute language;
// Protect marks destination replicas this rule creates as undeletable by
// Detox (not yet consumed outside this package, recorded for the submission
// layer to propagate).
type EnforcerRule struct {
	NumCopies               int
	SourceSitePatterns      []string
	DestinationSitePatterns []string
	DatasetNamePatterns     []string
	DestinationGroup        *inventory.Group
	Protect                 bool
}

func (r *EnforcerRule) matchesDataset(name string) bool {
	return MatchesAny(r.DatasetNamePatterns, name)
}

// ReplicationRequest is one (dataset, destination site) copy to submit.
type ReplicationRequest struct {
	Dataset     *inventory.Dataset
	Site        *inventory.Site
	Group       *inventory.Group
	SourceSites []*inventory.Site
	Rule        *EnforcerRule
}

// Evaluate runs r against every (dataset, source_site) pair with a matching
// source replica, following §4.6's num_complete/num_incomplete/can_be_flipped
// procedure, and returns the resulting set of copy requests shuffled
// globally to avoid site bias.
func (r *EnforcerRule) Evaluate(inv *inventory.Inventory) []ReplicationRequest {
	inv.RLock()
	defer inv.RUnlock()

	var destSites []*inventory.Site
	for _, s := range inv.SitesNoLock() {
		if MatchesAny(r.DestinationSitePatterns, s.Name) {
			destSites = append(destSites, s)
		}
	}

	var out []ReplicationRequest
	for _, d := range inv.DatasetsNoLock() {
		if !r.matchesDataset(d.Name) {
			continue
		}

		sources := r.matchingSources(d)
		if len(sources) == 0 {
			continue
		}

		complete, incomplete, flippable, candidates := r.classifyDestinations(d, destSites)

		switch {
		case complete >= r.NumCopies:
			continue
		case complete+incomplete >= r.NumCopies:
			continue
		}

		need := r.NumCopies - complete - incomplete
		picks := r.pickDestinations(need, flippable, candidates)
		if len(picks) == 0 {
			continue
		}

		for _, site := range picks {
			out = append(out, ReplicationRequest{
				Dataset:     d,
				Site:        site,
				Group:       r.DestinationGroup,
				SourceSites: sources,
				Rule:        r,
			})
		}
	}

	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	enforcerLog.Info().Int("requests", len(out)).Msg("enforcer rule evaluated")
	return out
}

// matchingSources returns the sites holding a matching source replica of d.
func (r *EnforcerRule) matchingSources(d *inventory.Dataset) []*inventory.Site {
	var sources []*inventory.Site
	for _, dr := range d.Replicas() {
		if !MatchesAny(r.SourceSitePatterns, dr.Site.Name) {
			continue
		}
		if !dr.IsComplete {
			continue
		}
		sources = append(sources, dr.Site)
	}
	return sources
}

// classifyDestinations walks d's replicas at rule-matching destination
// sites, splitting them into complete/incomplete counts owned by the
// destination group and replicas flippable into the destination group for
// free. candidates is destSites minus every site already holding a complete
// replica of d (§4.6: "candidates = destination_sites \ {r.site | r
// complete}").
func (r *EnforcerRule) classifyDestinations(d *inventory.Dataset, destSites []*inventory.Site) (complete, incomplete int, flippable, candidates []*inventory.Site) {
	haveComplete := make(map[*inventory.Site]bool)

	for _, dr := range d.Replicas() {
		if !MatchesAny(r.DestinationSitePatterns, dr.Site.Name) {
			continue
		}
		ownedByGroup := dr.Group == r.DestinationGroup

		switch {
		case ownedByGroup && dr.IsComplete:
			complete++
			haveComplete[dr.Site] = true
		case ownedByGroup:
			incomplete++
		case !ownedByGroup && dr.IsComplete:
			// A complete replica owned by another group would satisfy the
			// rule if its ownership flipped to the destination group.
			flippable = append(flippable, dr.Site)
			haveComplete[dr.Site] = true
		}
	}

	for _, s := range destSites {
		if !haveComplete[s] {
			candidates = append(candidates, s)
		}
	}
	return complete, incomplete, flippable, candidates
}

// pickDestinations draws up to need sites, first from flippable (free),
// then randomly from the remaining candidate pool.
func (r *EnforcerRule) pickDestinations(need int, flippable, candidates []*inventory.Site) []*inventory.Site {
	var picks []*inventory.Site
	for _, s := range flippable {
		if len(picks) >= need {
			break
		}
		picks = append(picks, s)
	}
	if len(picks) >= need {
		return picks
	}

	pool := make([]*inventory.Site, len(candidates))
	copy(pool, candidates)
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for _, s := range pool {
		if len(picks) >= need {
			break
		}
		already := false
		for _, p := range picks {
			if p == s {
				already = true
				break
			}
		}
		if !already {
			picks = append(picks, s)
		}
	}
	return picks
}
