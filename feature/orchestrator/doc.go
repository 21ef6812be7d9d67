// Package orchestrator sequences a complete sync run.
//
// A run goes through three phases:
//
//  1. Every configured kind is mirrored in order, each followed by its enrichment jobs.
//  2. The nodes of the walk kinds are walked for relationships in concurrent chunks,
//     sharing one kind cache for the whole run.
//  3. Retired hosts are mirrored.
//
// Failures are contained to the kind, job or node they happen in and end up in the
// run Report. Only a missing schema, an empty primary kind table or a cancelled
// context end the run early.
//
// Finished reports are logged, counted in the run metrics and, when an Archive is
// configured, stored as reports/<run_id>.json in the object store.
package orchestrator
