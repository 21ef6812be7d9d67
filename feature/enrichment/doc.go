// Package enrichment writes derived attributes onto the kind tables.
//
// Some attributes, such as host uptime or the publisher of a software instance, are
// not part of a node's detail record and are only available through search queries.
// A Job pairs such a query with the column each result cell lands in. Rows with fewer
// cells than the job expects are skipped, and the number of NULL values per column is
// logged after the write.
package enrichment
