package reconcile

import (
	"context"
	"math"
	"sort"
	"time"

	"discovery-sync/core/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options tunes batch writes.
type Options struct {
	// BatchSize is the number of rows per multi-row statement group.
	BatchSize int
	// MaxRetries bounds attempts per batch when the database reports a write conflict.
	MaxRetries int
	// RetryDelay is the base of the exponential backoff between attempts.
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	return o
}

// Observer receives write outcomes, e.g. for metrics.
type Observer interface {
	ObserveWritten(table string, rows int)
	ObserveRetry(table string)
	ObserveFallback(table string)
	ObserveRowFailure(table string)
}

type noopObserver struct{}

func (noopObserver) ObserveWritten(string, int) {}
func (noopObserver) ObserveRetry(string)        {}
func (noopObserver) ObserveFallback(string)     {}
func (noopObserver) ObserveRowFailure(string)   {}

// Result summarizes one Upsert call.
type Result struct {
	Rows      int `json:"rows"`
	Written   int `json:"written"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Batches   int `json:"batches"`
	Fallbacks int `json:"fallbacks"`
}

// Add accumulates other into r.
func (r *Result) Add(other Result) {
	r.Rows += other.Rows
	r.Written += other.Written
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	r.Batches += other.Batches
	r.Fallbacks += other.Fallbacks
}

// Upserter writes rows in batches, growing the table schema as needed.
type Upserter struct {
	db       *gorm.DB
	schema   *Schema
	opts     Options
	logger   *zap.Logger
	observer Observer
}

// NewUpserter creates an Upserter for tables inside namespace.
func NewUpserter(db *gorm.DB, namespace string, opts Options, logger *zap.Logger) *Upserter {
	return &Upserter{
		db:       db,
		schema:   NewSchema(db, namespace, logger),
		opts:     opts.withDefaults(),
		logger:   logger,
		observer: noopObserver{},
	}
}

// WithObserver returns a copy reporting to o.
func (u *Upserter) WithObserver(o Observer) *Upserter {
	cp := *u
	cp.observer = o
	return &cp
}

// WithDB returns a copy bound to db, typically a pinned connection.
func (u *Upserter) WithDB(db *gorm.DB) *Upserter {
	cp := *u
	cp.db = db
	cp.schema = u.schema.WithDB(db)
	return &cp
}

// WithBatchSize returns a copy using a different batch size.
func (u *Upserter) WithBatchSize(n int) *Upserter {
	cp := *u
	cp.opts.BatchSize = n
	cp.opts = cp.opts.withDefaults()
	return &cp
}

// Schema returns the schema manager bound to the same connection.
func (u *Upserter) Schema() *Schema {
	return u.schema
}

// Upsert writes rows into target.
//
// Column names are shortened to the identifier limit and missing columns are
// added before any row is written. Rows without a key value are skipped. When a
// key appears more than once the last row wins. Each batch is retried on write
// conflicts with exponential backoff; a batch that still fails is written row by
// row, and rows that fail on their own are logged and counted, never fatal.
//
// Only a cancelled context or a failed schema change is returned as an error.
func (u *Upserter) Upsert(ctx context.Context, target Target, rows []Row) (Result, error) {
	res := Result{Rows: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}
	if err := database.ValidateIdentifier(target.Table); err != nil {
		return res, err
	}
	if err := database.ValidateIdentifier(target.Key); err != nil {
		return res, err
	}

	prepared, skipped := u.prepare(target, rows)
	res.Skipped = skipped
	if len(prepared) == 0 {
		return res, nil
	}

	if !target.FixedColumns {
		if _, err := u.schema.EnsureColumns(ctx, target.Table, columnsOf(prepared)); err != nil {
			return res, err
		}
	}

	for start := 0; start < len(prepared); start += u.opts.BatchSize {
		end := min(start+u.opts.BatchSize, len(prepared))
		batch := prepared[start:end]
		res.Batches++

		written, failed, fellBack, err := u.writeBatch(ctx, target, batch)
		res.Written += written
		res.Failed += failed
		if fellBack {
			res.Fallbacks++
		}
		if err != nil {
			return res, err
		}
	}

	if res.Failed > 0 || res.Skipped > 0 {
		u.logger.Warn("Upsert finished with dropped rows",
			zap.String("table", target.Table),
			zap.Int("written", res.Written),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
		)
	}
	return res, nil
}

// prepare shortens column names, drops rows without a key and collapses
// duplicate keys onto the position of their first occurrence.
func (u *Upserter) prepare(target Target, rows []Row) ([]Row, int) {
	out := make([]Row, 0, len(rows))
	index := make(map[string]int, len(rows))
	invalid := make(map[string]struct{})
	skipped := 0

	for _, row := range rows {
		clean := make(Row, len(row))
		for col, val := range row {
			name := ShortenName(col)
			if err := database.ValidateIdentifier(name); err != nil {
				if _, seen := invalid[col]; !seen {
					invalid[col] = struct{}{}
					u.logger.Warn("Skipping column with invalid name", zap.String("table", target.Table), zap.String("column", col))
				}
				continue
			}
			clean[name] = val
		}

		key := clean.Value(target.Key)
		if key == "" {
			skipped++
			u.logger.Warn("Skipping row without key", zap.String("table", target.Table), zap.String("key", target.Key))
			continue
		}

		if i, dup := index[key]; dup {
			out[i] = clean
			continue
		}
		index[key] = len(out)
		out = append(out, clean)
	}
	return out, skipped
}

// writeBatch writes one batch, falling back to per-row writes if the batch
// cannot be committed.
func (u *Upserter) writeBatch(ctx context.Context, target Target, batch []Row) (written, failed int, fellBack bool, err error) {
	batchErr := u.execWithRetry(ctx, target, batch)
	if batchErr == nil {
		u.observer.ObserveWritten(target.Table, len(batch))
		return len(batch), 0, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, 0, false, ctxErr
	}

	u.logger.Warn("Batch write failed, falling back to single rows",
		zap.String("table", target.Table),
		zap.Int("rows", len(batch)),
		zap.Error(batchErr),
	)
	u.observer.ObserveFallback(target.Table)

	for _, row := range batch {
		if err := u.execWithRetry(ctx, target, []Row{row}); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return written, failed, true, ctxErr
			}
			failed++
			u.observer.ObserveRowFailure(target.Table)
			u.logger.Error("Row write failed",
				zap.String("table", target.Table),
				zap.String(target.Key, row.Value(target.Key)),
				zap.Error(err),
			)
			continue
		}
		written++
	}
	u.observer.ObserveWritten(target.Table, written)
	return written, failed, true, nil
}

// execWithRetry runs the statements for rows in one transaction, retrying write
// conflicts up to MaxRetries attempts. Other errors are returned at once.
func (u *Upserter) execWithRetry(ctx context.Context, target Target, rows []Row) error {
	var err error
	for attempt := 0; attempt < u.opts.MaxRetries; attempt++ {
		err = u.exec(ctx, target, rows)
		if err == nil || !database.IsWriteConflict(err) {
			return err
		}
		if attempt == u.opts.MaxRetries-1 {
			break
		}

		delay := time.Duration(float64(u.opts.RetryDelay) * math.Pow(2, float64(attempt)))
		u.observer.ObserveRetry(target.Table)
		u.logger.Warn("Write conflict, retrying",
			zap.String("table", target.Table),
			zap.Int("rows", len(rows)),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", delay),
		)
		if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

func (u *Upserter) exec(ctx context.Context, target Target, rows []Row) error {
	stmts, err := buildStatements(u.db, u.schema.Namespace(), target, rows)
	if err != nil {
		return err
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range stmts {
			if err := tx.Exec(stmt.sql, stmt.args...).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func columnsOf(rows []Row) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, row := range rows {
		for col := range row {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
