// Package adapters translates remote catalog payloads into inventory
// deltas, mostly upserts and annotations. Two adapters also remove
// entities: the replica adapter deletes datasets the replica catalog no
// longer reports, and the dataset-detail adapter deletes blocks the
// remote catalog no longer lists for a dataset.
package adapters
