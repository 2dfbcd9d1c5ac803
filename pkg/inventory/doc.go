/*
Package inventory implements Dynamo's in-memory replica inventory: the
relational object graph of datasets, blocks, files, sites, groups,
partitions, and replicas that every other Dynamo component reads or
mutates.

# Ownership

The Inventory exclusively owns every entity it holds. Callers that obtain a
*Dataset, *Block, *Site, or *Group from an Inventory method hold a
back-reference only; they must not retain it past the Inventory's lifetime
and must not mutate entity fields directly except through the methods in
this package, which are responsible for maintaining the cross-indices and
invariants described in the design document (dataset size/file-count
rollups, dataset-replica completeness, site secondary indices, group
derivation).

# Identifiers

Every entity carries an ID that is zero until the entity is first persisted
by pkg/store; zero means "unsaved". The inventory itself never assigns IDs —
it indexes entities by their natural keys (dataset name, site name, group
name, block name scoped to its dataset) so that newly created, not-yet-saved
entities are fully usable before a store round-trip assigns them an ID.

# Concurrency

Inventory embeds a sync.RWMutex. Mutating methods (adapters during merge,
policy engines applying submitted operations, the store during load) must
hold the write lock for the duration of the mutation; read-only traversals
(the policy engine's evaluation pass) hold it for the duration of the
evaluation, since no concurrent synchronization is allowed while a policy
runs (see the design document's concurrency model). Inventory.Lock/Unlock
and RLock/RUnlock satisfy this directly.
*/
package inventory
