// Usage:
//
//	st, err := store.Open(ctx, dsn)
//	err = st.LoadData(ctx, inv, store.Filter{})
//	err = st.SaveData(ctx, inv)
//
// Incremental mutators (SaveBlock, SaveBlockReplica, ...) and their
// Delete counterparts write single rows directly against the live tables;
// the synchronizer does not call them and persists only through SaveData.
// SaveData/LoadData are used for the periodic full snapshot and cold start
// respectively.
package store
