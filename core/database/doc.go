// Package database handles database connections, identifier quoting and catalog inspection.
//
// It wraps GORM so the rest of the application can talk to postgres, MySQL or sqlite
// through one connection type. Only the handful of dialect differences the mirror
// actually needs are handled here: identifier quoting, schema namespaces, primary key
// column types, catalog queries and the classification of transient write conflicts.
//
// # Connect
//
// Connect opens the configured driver, sizes the pool and pings the server. sqlite
// connections are pinned to a single connection so concurrent writers queue instead
// of failing with SQLITE_BUSY.
//
// # Catalog
//
// GetTableColumns, ListTables, CountRows and SampleRows read the live catalog. Table
// and column names come from upstream data, so they are always passed through
// QuoteIdent or QualifiedTable before being embedded in SQL.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(ctx, db, "discovery", "host")
package database
