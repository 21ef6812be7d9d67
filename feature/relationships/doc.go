// Package relationships mirrors the relationship graph of synced nodes.
//
// For every node the Extractor fetches the graph once per focus facet
// (software-connected, software and infrastructure by default) and keeps the edges
// whose target kind is in the allow-list. Endpoint kinds missing from an edge are
// resolved through a KindCache that lives for one run. Edges are buffered and written
// with insert-or-ignore on rel_id, so an edge seen through several facets or several
// runs is stored once.
//
// The Walker drives the extractor over all nodes of a kind in fixed-size chunks.
package relationships
