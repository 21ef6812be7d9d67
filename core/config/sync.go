package config

import "time"

// SyncConfig holds the tunables of a sync run.
type SyncConfig struct {
	// Kinds are mirrored in order, one table per kind.
	Kinds []string `mapstructure:"kinds" default:"Host,VirtualMachine,SoftwareInstance"`
	// PrimaryKind must yield at least one row or the run aborts.
	PrimaryKind string `mapstructure:"primary_kind" default:"Host"`
	// RelationshipKinds are the kinds whose entities are walked for edges. Empty means Kinds.
	RelationshipKinds []string `mapstructure:"relationship_kinds" default:""`
	// FocusFacets are the graph views requested per entity.
	FocusFacets []string `mapstructure:"focus_facets" default:"software-connected,software,infrastructure"`
	// AllowedTargetKinds filters edges by the kind of their target node.
	AllowedTargetKinds []string `mapstructure:"allowed_target_kinds" default:"SoftwareInstance,CandidateSoftwareInstance,DiskDrive,FileSystem,VirtualMachine"`
	// RelationshipChunkSize is the number of entities walked concurrently.
	RelationshipChunkSize int `mapstructure:"relationship_chunk_size" default:"10"`
	// BatchSize is the row count per multi-row upsert.
	BatchSize int `mapstructure:"batch_size" default:"500"`
	// RelationshipBatchSize is the edge buffer size flushed per entity walk.
	RelationshipBatchSize int `mapstructure:"relationship_batch_size" default:"100"`
	// RetiredBatchSize is the row count per retired host upsert.
	RetiredBatchSize int `mapstructure:"retired_batch_size" default:"100"`
	// MaxRetries bounds write conflict retries per batch.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// RetryDelay is the base delay of the write retry backoff.
	RetryDelay time.Duration `mapstructure:"retry_delay" default:"5s"`
	// Enrichment enables the search-query enrichment jobs.
	Enrichment bool `mapstructure:"enrichment" default:"true"`
	// RetiredHosts enables the retired host mirror.
	RetiredHosts bool `mapstructure:"retired_hosts" default:"true"`
	// Interval schedules runs from the start command. Zero disables scheduling.
	Interval time.Duration `mapstructure:"interval" default:"0s"`
	// Projections override the attribute projection per kind.
	Projections map[string][]string `mapstructure:"projections"`
}

// WalkKinds returns the kinds whose relationships are extracted.
func (c SyncConfig) WalkKinds() []string {
	if len(c.RelationshipKinds) > 0 {
		return c.RelationshipKinds
	}
	return c.Kinds
}
