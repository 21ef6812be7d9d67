package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Large result sets pause briefly every yieldEveryPages pages once more than
// yieldAfterRows rows have been collected.
var (
	yieldAfterRows  = 100000
	yieldEveryPages = 50
	yieldPause      = 100 * time.Millisecond

	yieldSleep = sleep
)

// Page is one response of a paginated endpoint.
type Page struct {
	Results    []any  `json:"results"`
	NextOffset *int64 `json:"next_offset"`
	ResultsID  string `json:"results_id"`
}

type pageEnvelope struct {
	Results    *[]any `json:"results"`
	NextOffset *int64 `json:"next_offset"`
	ResultsID  string `json:"results_id"`
}

// Paginator walks a cursor paginated endpoint page by page.
//
//	p := client.Paginate("/data/kinds/Host", params)
//	for p.Next(ctx) {
//	    rows = append(rows, p.Page().Results...)
//	}
//	if err := p.Err(); err != nil { ... }
type Paginator struct {
	client *Client
	path   string
	params url.Values
	logger *zap.Logger

	page  *Page
	err   error
	done  bool
	pages int
	rows  int
}

// Paginate returns a paginator for path. params are copied.
func (c *Client) Paginate(path string, params url.Values) *Paginator {
	return &Paginator{
		client: c,
		path:   path,
		params: cloneValues(params),
		logger: c.logger.With(zap.String("path", path)),
	}
}

// Next fetches the next page. It returns false when the sequence is exhausted or
// a request failed; Err tells the two apart.
func (p *Paginator) Next(ctx context.Context) bool {
	if p.done {
		return false
	}

	body, err := p.client.Get(ctx, p.path, p.params)
	if err != nil {
		p.err = err
		p.done = true
		return false
	}

	var envelopes []pageEnvelope
	if err := decode(body, &envelopes); err != nil {
		p.err = err
		p.done = true
		return false
	}
	if len(envelopes) == 0 || envelopes[0].Results == nil {
		p.logger.Warn("No results found in response", zap.Int("page", p.pages+1))
		p.done = true
		return false
	}

	env := envelopes[0]
	p.page = &Page{Results: *env.Results, NextOffset: env.NextOffset, ResultsID: env.ResultsID}
	p.pages++
	p.rows += len(p.page.Results)

	if p.pages%10 == 0 {
		p.logger.Info("Pagination progress", zap.Int("pages", p.pages), zap.Int("rows", p.rows))
	}

	switch {
	case env.NextOffset == nil:
		p.logger.Debug("No more pages")
		p.done = true
	case env.ResultsID == "":
		p.logger.Warn("Missing results_id with next_offset, stopping", zap.Int64("next_offset", *env.NextOffset))
		p.done = true
	default:
		p.params.Set("results_id", env.ResultsID)
		p.params.Set("offset", strconv.FormatInt(*env.NextOffset, 10))
		if p.rows > yieldAfterRows && p.pages%yieldEveryPages == 0 {
			p.logger.Info("Large result set, yielding", zap.Int("rows", p.rows))
			if err := yieldSleep(ctx, yieldPause); err != nil {
				p.err = err
				p.done = true
			}
		}
	}
	return true
}

// Page returns the page fetched by the last successful Next.
func (p *Paginator) Page() *Page {
	return p.page
}

// Err returns the error that stopped the paginator, if any.
func (p *Paginator) Err() error {
	return p.err
}

// Pages returns the number of pages fetched so far.
func (p *Paginator) Pages() int {
	return p.pages
}

// Collect drains p and returns every row. Rows gathered before a failure are
// returned together with the error.
func Collect(ctx context.Context, p *Paginator) ([]any, error) {
	var rows []any
	for p.Next(ctx) {
		rows = append(rows, p.Page().Results...)
	}
	if err := p.Err(); err != nil {
		return rows, fmt.Errorf("pagination of %s stopped after %d pages: %w", p.path, p.pages, err)
	}
	return rows, nil
}
