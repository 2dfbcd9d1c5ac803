package inventory

// ID is a persistence-surface identifier. It is zero until an entity is
// first saved by pkg/store; zero means "unsaved" (invariant 9). The
// inventory never assigns IDs itself — entities are indexed by natural key
// (name, or name scoped to an owner) so they are fully usable before any
// store round-trip.
type ID uint32

// Unsaved reports whether the ID has never been persisted.
func (id ID) Unsaved() bool { return id == 0 }
