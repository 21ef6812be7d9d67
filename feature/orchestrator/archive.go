package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"discovery-sync/core/storage"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const reportPrefix = "reports/"

// ReportObject returns the object name of the archived report of runID.
func ReportObject(runID string) string {
	return reportPrefix + runID + ".json"
}

// Archive stores run reports in the object store.
type Archive struct {
	client    storage.Client
	bucket    string
	region    string
	retention int
	logger    *zap.Logger
}

// NewArchive creates an Archive. retention is the number of reports kept; zero keeps all.
func NewArchive(client storage.Client, bucket, region string, retention int, logger *zap.Logger) *Archive {
	return &Archive{
		client:    client,
		bucket:    bucket,
		region:    region,
		retention: retention,
		logger:    logger,
	}
}

// Save uploads report and prunes reports beyond the retention.
func (a *Archive) Save(ctx context.Context, report *Report) error {
	if err := storage.EnsureBucket(ctx, a.client, a.bucket, a.region); err != nil {
		return err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	object := ReportObject(report.RunID)
	_, err = a.client.PutObject(ctx, a.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload report %s: %w", object, err)
	}
	a.logger.Info("Run report archived", zap.String("bucket", a.bucket), zap.String("object", object))

	if err := a.prune(ctx); err != nil {
		a.logger.Warn("Report pruning failed", zap.Error(err))
	}
	return nil
}

// Load downloads the archived report of runID.
func (a *Archive) Load(ctx context.Context, runID string) (*Report, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, ReportObject(runID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	var report Report
	if err := json.NewDecoder(obj).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", runID, err)
	}
	return &report, nil
}

// prune removes the oldest reports beyond the retention.
func (a *Archive) prune(ctx context.Context) error {
	if a.retention <= 0 {
		return nil
	}

	objects, err := storage.List(ctx, a.client, a.bucket, reportPrefix, ".json")
	if err != nil {
		return err
	}
	if len(objects) <= a.retention {
		return nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	stale := objects[a.retention:]

	failed := storage.Remove(ctx, a.client, a.bucket, stale)
	for _, rmErr := range failed {
		a.logger.Warn("Failed to remove report", zap.String("object", rmErr.ObjectName), zap.Error(rmErr.Err))
	}
	a.logger.Info("Old reports pruned", zap.Int("removed", len(stale)-len(failed)))
	return nil
}
