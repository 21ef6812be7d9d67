package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"discovery-sync/core/database"
	"discovery-sync/core/logger"
	"discovery-sync/core/metrics"
	"discovery-sync/core/reconcile"
	"discovery-sync/feature/enrichment"
	"discovery-sync/feature/inventory"
	"discovery-sync/feature/relationships"
	"discovery-sync/feature/retired"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPrimaryKindEmpty aborts a run whose primary kind table holds no rows.
var ErrPrimaryKindEmpty = errors.New("orchestrator: primary kind table is empty")

const archiveTimeout = 30 * time.Second

// Options selects what a run does.
type Options struct {
	// Kinds are mirrored in order.
	Kinds []string
	// PrimaryKind must end up with rows, otherwise the run fails.
	PrimaryKind string
	// WalkKinds are the kinds whose nodes are walked for relationships.
	WalkKinds []string
	// Jobs are the enrichment jobs; each runs right after its kind.
	Jobs []enrichment.Job
	// Retired enables the retired host mirror.
	Retired bool
}

// Components are the feature services a run drives. Enrichment, Retired and
// Archive are optional.
type Components struct {
	Inventory  *inventory.Service
	Enrichment *enrichment.Service
	Extractor  *relationships.Extractor
	Walker     *relationships.Walker
	Kinds      relationships.KindFetcher
	Retired    *retired.Service
	Archive    *Archive
}

// RunOptions parameterize a single run.
type RunOptions struct {
	// RunID identifies the run in logs, reports and the archive.
	RunID string
	// Kinds restricts the run to these kinds. Empty means the configured kinds.
	Kinds []string
}

// Service sequences a full sync run.
type Service struct {
	db        *gorm.DB
	namespace string
	c         Components
	opts      Options
	logger    *zap.Logger
}

// New creates an orchestrator over db. namespace is the schema the mirror lives in.
func New(db *gorm.DB, namespace string, c Components, opts Options, logger *zap.Logger) *Service {
	return &Service{
		db:        db,
		namespace: namespace,
		c:         c,
		opts:      opts,
		logger:    logger,
	}
}

// Archive returns the report archive, or nil when archiving is disabled.
func (s *Service) Archive() *Archive {
	return s.c.Archive
}

// Run performs one sync run and always returns its report.
//
// Kinds are mirrored one after another, each followed by its enrichment jobs.
// Then the nodes of the walk kinds are walked for relationships, and finally the
// retired hosts are mirrored. A failure inside one kind, job or node is recorded
// in the report and the run goes on. The run fails when the schema cannot be
// created, when the primary kind ends up empty or when ctx is cancelled.
func (s *Service) Run(ctx context.Context, ro RunOptions) (*Report, error) {
	report := newReport(ro.RunID)
	l := logger.WithRun(s.logger, ro.RunID)

	kinds, walkKinds := s.opts.Kinds, s.opts.WalkKinds
	if len(ro.Kinds) > 0 {
		kinds, walkKinds = ro.Kinds, ro.Kinds
	}
	l.Info("Sync run started", zap.Strings("kinds", kinds), zap.Strings("walk_kinds", walkKinds))

	err := s.run(ctx, l, report, kinds, walkKinds)
	report.finish(err)
	s.complete(ctx, l, report)
	return report, err
}

func (s *Service) run(ctx context.Context, l *zap.Logger, report *Report, kinds, walkKinds []string) error {
	if err := database.EnsureSchema(ctx, s.db, s.namespace); err != nil {
		return fmt.Errorf("failed to ensure schema %s: %w", s.namespace, err)
	}

	for _, kind := range kinds {
		if err := s.syncKind(ctx, l, report, kind); err != nil {
			return err
		}
	}

	if err := s.syncRelationships(ctx, l, report, walkKinds); err != nil {
		return err
	}

	if s.opts.Retired && s.c.Retired != nil {
		rep, err := s.c.Retired.Sync(ctx)
		report.Retired = rep
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Error("Retired host sync failed", zap.Error(err))
			report.addError(fmt.Errorf("retired: %w", err))
		}
	}
	return nil
}

func (s *Service) syncKind(ctx context.Context, l *zap.Logger, report *Report, kind string) error {
	rep, err := s.c.Inventory.SyncKind(ctx, kind)
	if rep != nil {
		report.Kinds = append(report.Kinds, rep)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.Error("Kind sync failed", zap.String("kind", kind), zap.Error(err))
		report.addError(fmt.Errorf("kind %s: %w", kind, err))
	}

	if strings.EqualFold(kind, s.opts.PrimaryKind) {
		table := reconcile.TableName(kind)
		n, countErr := database.CountRows(ctx, s.db, s.namespace, table)
		if countErr != nil || n == 0 {
			return fmt.Errorf("%w: %s", ErrPrimaryKindEmpty, table)
		}
	}

	if s.c.Enrichment == nil || err != nil || rep == nil || rep.Fetched == 0 {
		return nil
	}
	for _, job := range enrichment.JobsFor(s.opts.Jobs, kind) {
		jobRep, jobErr := s.c.Enrichment.Run(ctx, job)
		if jobRep != nil {
			report.Enrichment = append(report.Enrichment, jobRep)
		}
		if jobErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Error("Enrichment failed", zap.String("job", job.Name), zap.Error(jobErr))
			report.addError(fmt.Errorf("enrichment %s: %w", job.Name, jobErr))
		}
	}
	return nil
}

func (s *Service) syncRelationships(ctx context.Context, l *zap.Logger, report *Report, walkKinds []string) error {
	if len(walkKinds) == 0 {
		return nil
	}
	if err := s.c.Extractor.EnsureTable(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.Error("Relationship table unavailable", zap.Error(err))
		report.addError(fmt.Errorf("relationships: %w", err))
		return nil
	}

	cache := relationships.NewKindCache(s.c.Kinds, l)
	for _, kind := range walkKinds {
		ids, err := s.c.Inventory.FetchIDs(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Error("Node listing incomplete", zap.String("kind", kind), zap.Int("fetched", len(ids)), zap.Error(err))
			report.addError(fmt.Errorf("relationships %s: %w", kind, err))
		}
		if len(ids) == 0 {
			continue
		}

		l.Info("Walking relationships", zap.String("kind", kind), zap.Int("nodes", len(ids)))
		stats, err := s.c.Walker.Run(ctx, ids, cache)
		report.Relationships[kind] = stats
		if err != nil {
			return err
		}
	}
	l.Info("Kind cache size", zap.Int("kinds", cache.Len()))

	n, err := database.CountRows(ctx, s.db, s.namespace, relationships.Table)
	if err != nil {
		l.Warn("Could not count edges", zap.Error(err))
		return nil
	}
	report.Edges = n
	return nil
}

// complete logs, archives and records the metrics of a finished run.
func (s *Service) complete(ctx context.Context, l *zap.Logger, report *Report) {
	fields := []zap.Field{
		zap.String("status", report.Status),
		zap.Float64("duration_seconds", report.DurationSeconds),
		zap.Int64("edges", report.Edges),
		zap.Int("errors", len(report.Errors)),
	}
	for _, k := range report.Kinds {
		fields = append(fields, zap.Int("fetched_"+reconcile.TableName(k.Kind), k.Fetched))
	}
	if report.Status == StatusSucceeded {
		l.Info("Sync run finished", fields...)
	} else {
		l.Error("Sync run failed", append(fields, zap.Strings("error_list", report.Errors))...)
	}

	metrics.ObserveRun(report.Status, time.Duration(report.DurationSeconds*float64(time.Second)))

	if s.c.Archive == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := s.c.Archive.Save(actx, report); err != nil {
		l.Error("Failed to archive run report", zap.Error(err))
	}
}

// KindsOf splits a comma separated kind list, dropping blanks and duplicates.
func KindsOf(list string) []string {
	var kinds []string
	for _, k := range strings.Split(list, ",") {
		k = strings.TrimSpace(k)
		if k != "" && !slices.Contains(kinds, k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
