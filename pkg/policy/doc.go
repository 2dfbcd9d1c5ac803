// Package policy is the partition/policy engine: partition membership
// materialization, the Detox deletion policy and its per-site eviction
// loop, the Enforcer replication policy, and the demand-driven Dealer
// replication policy (§4.6).
package policy
