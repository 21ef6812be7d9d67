// Package reconcile keeps the mirror tables in step with what the appliance returns.
//
// Upstream records are schemaless: any node may carry attributes nobody has seen
// before. The package therefore treats the database catalog as the source of truth
// for which columns exist and only ever grows it.
//
// # Components
//
//  1. Naming: ShortenName maps attribute names onto the 63 byte identifier limit
//     with a stable MD5 suffix, TableName derives table names from node kinds.
//
//  2. Schema: EnsureTable and EnsureColumns create tables and add TEXT columns.
//     Nothing is dropped or retyped.
//
//  3. Upserter: batched multi-row INSERT ... ON CONFLICT statements. Batches that
//     hit a deadlock or lock timeout are retried with exponential backoff and then
//     written row by row, so one bad row never costs the rest of its batch.
//
//  4. Verify: compares the stored row count with the number of fetched records.
//
// # Usage Example
//
//	up := reconcile.NewUpserter(db, "discovery", reconcile.Options{BatchSize: 500}, logger)
//	if err := up.Schema().EnsureTable(ctx, "host", "id", columns); err != nil {
//	    return err
//	}
//	res, err := up.Upsert(ctx, reconcile.Target{Table: "host", Key: "id"}, rows)
//
// Rows are written with the dialect's native upsert: ON CONFLICT for postgres and
// sqlite, ON DUPLICATE KEY UPDATE or INSERT IGNORE for MySQL.
package reconcile
