package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"discovery-sync/core/utils"
)

// Link is one edge returned by the node graph endpoint.
// Fields the appliance omits decode as empty strings.
type Link struct {
	RelID   string `json:"rel_id"`
	Kind    string `json:"kind"`
	SrcID   string `json:"src_id"`
	SrcRole string `json:"src_role"`
	SrcKind string `json:"src_kind"`
	TgtID   string `json:"tgt_id"`
	TgtRole string `json:"tgt_role"`
	TgtKind string `json:"tgt_kind"`
}

// Graph is the response of the node graph endpoint.
type Graph struct {
	Links []Link `json:"links"`
}

// ErrMalformedRow is returned for rows that lack the expected id cell.
var ErrMalformedRow = errors.New("discovery: malformed row")

// KindPages paginates every node of kind.
func (c *Client) KindPages(kind string) *Paginator {
	return c.Paginate("/data/kinds/"+url.PathEscape(kind), url.Values{"delete": {"false"}})
}

// SearchPages paginates the rows of a search query.
func (c *Client) SearchPages(query string) *Paginator {
	return c.Paginate("/data/search", url.Values{"query": {query}})
}

// FetchNodeIDs returns the ids of every node of kind, in upstream order.
// The id is the first cell of each row; rows without one are skipped.
func (c *Client) FetchNodeIDs(ctx context.Context, kind string) ([]string, error) {
	rows, err := Collect(ctx, c.KindPages(kind))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		id, idErr := RowID(row)
		if idErr != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, err
}

// Search returns the rows of a search query as cell lists. Rows that are not
// lists are skipped. Rows fetched before a failure are returned with the error.
func (c *Client) Search(ctx context.Context, query string) ([][]any, error) {
	rows, err := Collect(ctx, c.SearchPages(query))
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if cells, ok := row.([]any); ok {
			out = append(out, cells)
		}
	}
	return out, err
}

// RowID extracts the node id from a kinds endpoint row.
func RowID(row any) (string, error) {
	cells, ok := row.([]any)
	if !ok || len(cells) == 0 || cells[0] == nil {
		return "", ErrMalformedRow
	}
	id := utils.Stringify(cells[0])
	if id == nil || *id == "" {
		return "", ErrMalformedRow
	}
	return *id, nil
}

// FetchNode returns the attribute record of a node. The call waits for a slot
// in the client's fetch pool.
func (c *Client) FetchNode(ctx context.Context, id string) (map[string]any, error) {
	var node map[string]any
	err := c.pool.Do(ctx, func(ctx context.Context) error {
		return c.GetJSON(ctx, "/data/nodes/"+url.PathEscape(id), nil, &node)
	})
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: empty node %s", ErrMalformedRow, id)
	}
	return node, nil
}

// FetchNodeKind returns the kind of a node, or "" when the record has none.
func (c *Client) FetchNodeKind(ctx context.Context, id string) (string, error) {
	node, err := c.FetchNode(ctx, id)
	if err != nil {
		return "", err
	}
	kind, _ := node["kind"].(string)
	return kind, nil
}

// FetchGraph returns the edges around a node for one focus facet.
func (c *Client) FetchGraph(ctx context.Context, id, focus string) (*Graph, error) {
	params := url.Values{
		"focus":       {focus},
		"apply_rules": {"true"},
		"complete":    {"false"},
	}
	var graph Graph
	if err := c.GetJSON(ctx, "/data/nodes/"+url.PathEscape(id)+"/graph", params, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

// FetchNodeKinds lists the node kinds known to the appliance taxonomy.
// Both a bare array and an object with a nodeKinds array are accepted.
func (c *Client) FetchNodeKinds(ctx context.Context) ([]string, error) {
	var raw any
	if err := c.GetJSON(ctx, "/taxonomy/nodekinds", nil, &raw); err != nil {
		return nil, err
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["nodeKinds"].([]any)
	}

	kinds := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			kinds = append(kinds, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				kinds = append(kinds, name)
			}
		}
	}
	return kinds, nil
}
