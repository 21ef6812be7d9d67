// Package inventory mirrors the nodes of each kind into a table of its own.
//
// For a kind the service lists every node id through the cursor paginator, fetches
// each node's detail record through the bounded fetch pool, projects the record onto
// the kind's column list and upserts the rows. The table is created on first use and
// grows whenever a projection gains a column.
//
// # Projection
//
// Detail records are flattened with "_" as separator. A logical column takes the value
// of the identical key, or else of the first key (in sorted order) ending in "_col" or
// ".col". Two tokens expand into several columns:
//
//   - __all_ip_addrs becomes ipv4 and ipv6, comma separated
//   - __all_mac_addrs becomes mac_addresses
//
// Projections default to a small built-in set per kind and can be overridden in
// config.yaml under sync.projections.
package inventory
