package inventory

// Group is an ownership principal recorded on block replicas. Name may be
// empty for the "anonymous" group: a BlockReplica whose remote-reported
// group was unknown locally is recorded with Group == nil (see
// MissingReferent), which is distinct from the anonymous Group entity.
type Group struct {
	ID     ID
	Name   string
	Olevel string // ownership level, e.g. "DATASET" or "BLOCK"
}
