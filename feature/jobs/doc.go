// Package jobs manages sync runs over HTTP.
//
// POST /jobs starts a run in the background, optionally restricted to a list of
// kinds, and answers 409 while another run is active. GET /jobs lists recent runs
// and GET /jobs/:id returns the state of one. GET /jobs/:id/report serves the run
// report from memory or, for older runs, from the report archive.
//
// Schedule starts runs periodically for the start command.
package jobs
