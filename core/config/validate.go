package config

import (
	"errors"
	"fmt"

	"discovery-sync/core/database"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the settings a sync run cannot work without.
func (c *Config) Validate() error {
	var errs []error

	if c.Discovery.BaseURL == "" {
		errs = append(errs, errors.New("discovery.base_url is required"))
	}
	if c.Discovery.Concurrency <= 0 {
		errs = append(errs, errors.New("discovery.concurrency must be positive"))
	}
	switch c.Database.Driver {
	case database.DriverPostgres, database.DriverMySQL, database.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if len(c.Sync.Kinds) == 0 {
		errs = append(errs, errors.New("sync.kinds must not be empty"))
	}
	if c.Sync.BatchSize <= 0 || c.Sync.RelationshipBatchSize <= 0 || c.Sync.RetiredBatchSize <= 0 {
		errs = append(errs, errors.New("sync batch sizes must be positive"))
	}
	if c.Sync.RelationshipChunkSize <= 0 {
		errs = append(errs, errors.New("sync.relationship_chunk_size must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
