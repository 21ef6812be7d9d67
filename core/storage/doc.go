// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client so sync run reports can be archived to AWS S3 or a
// self-hosted MinIO instance. The Client interface keeps the provider swappable and
// is mocked in core/storage/mocks for unit tests.
//
// # Operations
//
//   - BucketExists / MakeBucket: used by EnsureBucket before the first upload.
//   - PutObject: writes a report as JSON.
//   - GetObject: reads an archived report back.
//   - ListObjects / RemoveObjects: enforce report retention through List and Remove.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
