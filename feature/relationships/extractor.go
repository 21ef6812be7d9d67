package relationships

import (
	"context"
	"time"

	"discovery-sync/core/discovery"
	"discovery-sync/core/reconcile"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Table is the edge table.
const Table = "relationships"

// Edge table columns.
const (
	ColumnRelID   = "rel_id"
	ColumnKind    = "kind"
	ColumnSrcID   = "src_id"
	ColumnSrcRole = "src_role"
	ColumnSrcKind = "src_kind"
	ColumnTgtID   = "tgt_id"
	ColumnTgtRole = "tgt_role"
	ColumnTgtKind = "tgt_kind"
)

// Columns lists the edge table columns in storage order.
var Columns = []string{
	ColumnRelID, ColumnKind,
	ColumnSrcID, ColumnSrcRole, ColumnSrcKind,
	ColumnTgtID, ColumnTgtRole, ColumnTgtKind,
}

// GraphSource fetches the edges around a node.
type GraphSource interface {
	FetchGraph(ctx context.Context, id, focus string) (*discovery.Graph, error)
}

// Observer receives filter outcomes, e.g. for metrics.
type Observer interface {
	ObserveDiscarded(n int)
}

type noopObserver struct{}

func (noopObserver) ObserveDiscarded(int) {}

// Options configures an Extractor.
type Options struct {
	// Focus lists the graph facets walked for every node, in order.
	Focus []string
	// AllowedTargetKinds is the set of target kinds an edge must point at to be kept.
	AllowedTargetKinds []string
	// BatchSize is the number of buffered edges that triggers a flush.
	BatchSize int
	// RetryDelay is the pause after a facet whose graph could not be fetched.
	RetryDelay time.Duration
}

// Stats counts the outcome of walking one or more nodes.
type Stats struct {
	Nodes         int `json:"nodes"`
	NodeFailures  int `json:"node_failures"`
	Links         int `json:"links"`
	Kept          int `json:"kept"`
	Discarded     int `json:"discarded"`
	Invalid       int `json:"invalid"`
	FocusFailures int `json:"focus_failures"`
	Written       int `json:"written"`
	WriteFailures int `json:"write_failures"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Nodes += other.Nodes
	s.NodeFailures += other.NodeFailures
	s.Links += other.Links
	s.Kept += other.Kept
	s.Discarded += other.Discarded
	s.Invalid += other.Invalid
	s.FocusFailures += other.FocusFailures
	s.Written += other.Written
	s.WriteFailures += other.WriteFailures
}

// Extractor walks the relationship graph of nodes and stores the allowed edges.
type Extractor struct {
	source   GraphSource
	upserter *reconcile.Upserter
	opts     Options
	allowed  map[string]struct{}
	observer Observer
	logger   *zap.Logger
}

// NewExtractor creates an Extractor writing through upserter.
func NewExtractor(source GraphSource, upserter *reconcile.Upserter, opts Options, logger *zap.Logger) *Extractor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	allowed := make(map[string]struct{}, len(opts.AllowedTargetKinds))
	for _, k := range opts.AllowedTargetKinds {
		allowed[k] = struct{}{}
	}
	return &Extractor{
		source:   source,
		upserter: upserter.WithBatchSize(opts.BatchSize),
		opts:     opts,
		allowed:  allowed,
		observer: noopObserver{},
		logger:   logger.With(zap.String("component", "relationships")),
	}
}

// WithObserver returns a copy reporting to o.
func (e *Extractor) WithObserver(o Observer) *Extractor {
	cp := *e
	cp.observer = o
	return &cp
}

// WithDB returns a copy writing through db, typically a pinned connection.
func (e *Extractor) WithDB(db *gorm.DB) *Extractor {
	cp := *e
	cp.upserter = e.upserter.WithDB(db)
	return &cp
}

// Namespace returns the schema the edge table lives in.
func (e *Extractor) Namespace() string {
	return e.upserter.Schema().Namespace()
}

// EnsureTable creates the edge table if it does not exist.
func (e *Extractor) EnsureTable(ctx context.Context) error {
	return e.upserter.Schema().EnsureTable(ctx, Table, ColumnRelID, Columns)
}

// SyncNode walks every focus facet of node id and stores the allowed edges.
//
// A facet whose graph cannot be fetched is logged and skipped after a pause.
// Buffered edges are flushed whenever the buffer reaches the batch size and once
// more when the walk ends, however it ends. Only a cancelled context is returned.
func (e *Extractor) SyncNode(ctx context.Context, id string, cache *KindCache) (stats Stats, err error) {
	l := e.logger.With(zap.String("entity_id", id))
	stats.Nodes = 1

	var buffer []reconcile.Row
	flush := func() {
		if len(buffer) == 0 {
			return
		}
		res, flushErr := e.upserter.Upsert(ctx, reconcile.Target{
			Table:        Table,
			Key:          ColumnRelID,
			Mode:         reconcile.ModeIgnore,
			FixedColumns: true,
		}, buffer)
		stats.Written += res.Written
		stats.WriteFailures += res.Failed
		if flushErr != nil {
			l.Error("Edge flush failed", zap.Int("edges", len(buffer)), zap.Error(flushErr))
			stats.WriteFailures += len(buffer) - res.Written - res.Failed
		}
		buffer = buffer[:0]
	}
	defer flush()

	for _, focus := range e.opts.Focus {
		graph, fetchErr := e.source.FetchGraph(ctx, id, focus)
		if fetchErr != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FocusFailures++
			l.Error("Graph fetch failed", zap.String("focus", focus), zap.Error(fetchErr))
			if sleepErr := sleep(ctx, e.opts.RetryDelay); sleepErr != nil {
				return stats, sleepErr
			}
			continue
		}

		l.Debug("Graph fetched", zap.String("focus", focus), zap.Int("links", len(graph.Links)))
		discarded := 0
		for _, link := range graph.Links {
			stats.Links++
			if link.RelID == "" || link.SrcID == "" || link.TgtID == "" {
				stats.Invalid++
				continue
			}

			srcKind, tgtKind, resolveErr := e.resolveKinds(ctx, link, cache)
			if resolveErr != nil {
				return stats, resolveErr
			}
			if _, ok := e.allowed[tgtKind]; !ok {
				discarded++
				continue
			}

			stats.Kept++
			buffer = append(buffer, edgeRow(link, srcKind, tgtKind))
			if len(buffer) >= e.opts.BatchSize {
				flush()
			}
		}
		if discarded > 0 {
			stats.Discarded += discarded
			e.observer.ObserveDiscarded(discarded)
		}
	}
	return stats, nil
}

// resolveKinds returns the endpoint kinds of link. Kinds the link omits are
// looked up concurrently through the cache.
func (e *Extractor) resolveKinds(ctx context.Context, link discovery.Link, cache *KindCache) (string, string, error) {
	srcKind, tgtKind := link.SrcKind, link.TgtKind
	if srcKind != "" && tgtKind != "" {
		return srcKind, tgtKind, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if srcKind == "" {
		g.Go(func() (err error) {
			srcKind, err = cache.Resolve(gctx, link.SrcID)
			return err
		})
	}
	if tgtKind == "" {
		g.Go(func() (err error) {
			tgtKind, err = cache.Resolve(gctx, link.TgtID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return srcKind, tgtKind, nil
}

func edgeRow(link discovery.Link, srcKind, tgtKind string) reconcile.Row {
	return reconcile.Row{
		ColumnRelID:   nullable(link.RelID),
		ColumnKind:    nullable(link.Kind),
		ColumnSrcID:   nullable(link.SrcID),
		ColumnSrcRole: nullable(link.SrcRole),
		ColumnSrcKind: nullable(srcKind),
		ColumnTgtID:   nullable(link.TgtID),
		ColumnTgtRole: nullable(link.TgtRole),
		ColumnTgtKind: nullable(tgtKind),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
