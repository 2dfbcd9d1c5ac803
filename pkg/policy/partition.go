package policy

import "github.com/cmsdynamo/dynamo/pkg/inventory"

// SitePredicate is the site half of a Partition's definition (§4.6): it
// decides whether the partition's quota/membership is tracked at a site
// at all.
type SitePredicate func(s *inventory.Site) bool

// MembershipPredicate is the per-replica half of a Partition's definition:
// it decides whether a single block replica belongs to the partition.
type MembershipPredicate func(br *inventory.BlockReplica) bool

// Definition pairs a registered leaf inventory.Partition with the two
// predicates that define it. Non-leaf partitions carry no predicates of
// their own (Open Question (d)) and are never materialized directly.
type Definition struct {
	Partition *inventory.Partition
	SitePred  SitePredicate
	Member    MembershipPredicate
}

// Materialize evaluates every dataset replica at every site matching
// def.SitePred against def.Member, populating each site's
// SitePartition.Replicas map (§4.6: "evaluating all replicas once
// materializes site_partition.replicas[dr] = null|{br,…}"). A dataset
// replica with no matching block replicas is omitted entirely; one whose
// block replicas all match is recorded as Membership{Full: true} (the
// "null" value), and any other records the matching block replicas.
func Materialize(inv *inventory.Inventory, def Definition) {
	if !def.Partition.IsLeaf() {
		return
	}

	inv.Lock()
	defer inv.Unlock()
	for _, s := range inv.SitesNoLock() {
		if def.SitePred != nil && !def.SitePred(s) {
			continue
		}
		sp := s.Partition(def.Partition.Name)
		sp.Replicas = make(map[*inventory.DatasetReplica]*inventory.Membership)

		for _, dr := range s.DatasetReplicas() {
			full := true
			any := false
			blocks := make(map[inventory.InternalBlockName]*inventory.BlockReplica)
			for _, br := range dr.BlockReplicas() {
				if def.Member(br) {
					any = true
					blocks[br.Block.InternalName] = br
				} else {
					full = false
				}
			}
			if !any {
				continue
			}
			if full {
				sp.Replicas[dr] = &inventory.Membership{Full: true}
			} else {
				sp.Replicas[dr] = &inventory.Membership{Blocks: blocks}
			}
		}
	}
}
