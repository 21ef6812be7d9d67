// Package discovery is the client for the discovery appliance REST API.
//
// Every request goes through Client.Get, which applies the retry policy: 5xx
// responses, session auto-logouts, timeouts and transport errors are retried with
// exponential backoff, other 4xx responses fail at once, and the "offset without
// results_id" protocol error is corrected by a single request without the offset.
//
// # Pagination
//
// List endpoints return pages of the form [{"results": [...], "next_offset": n,
// "results_id": "..."}]. Paginator follows the cursor until next_offset is absent,
// and stops early if the appliance hands out a next_offset without a results_id.
// Collect drains a paginator and keeps whatever was fetched before a failure.
//
// # Fetch pool
//
// Per-node detail fetches share a Pool, a weighted semaphore sized by
// discovery.concurrency, so a kind with a hundred thousand nodes never has more
// than that many requests in flight.
//
// # Usage
//
//	client, err := discovery.NewClient(cfg.Discovery, logger)
//	ids, err := client.FetchNodeIDs(ctx, "Host")
//	node, err := client.FetchNode(ctx, ids[0])
package discovery
