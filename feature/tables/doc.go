// Package tables exposes read-only inspection of the mirror tables: the list of
// tables with row counts, and the columns and sample rows of one table. The same
// service backs the tables command.
package tables
