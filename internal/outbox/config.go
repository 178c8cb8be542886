package outbox

import "time"

const (
	defaultBatchSize          = 50
	defaultDispatchTimeout    = 5 * time.Second
	defaultPublishMaxAttempts = 3
	defaultPublishBackoff     = 200 * time.Millisecond
	defaultMaxRecordAttempts  = 10
)

// ProcessorConfig controls drain batching, per-record timeouts and retry.
type ProcessorConfig struct {
	// BatchSize is the max number of records fetched per drain.
	BatchSize int
	// DispatchTimeout bounds a single sink call so a stalled dependency
	// cannot block a drain indefinitely.
	DispatchTimeout time.Duration
	// PublishMaxAttempts is the max in-drain publish attempts for one record.
	PublishMaxAttempts int
	// PublishBackoff is the base backoff between in-drain publish retries.
	PublishBackoff time.Duration
	// MaxRecordAttempts is the total dispatch attempts across drains before
	// a record is dead-lettered.
	MaxRecordAttempts int
}

// DefaultProcessorConfig returns the baseline processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		BatchSize:          defaultBatchSize,
		DispatchTimeout:    defaultDispatchTimeout,
		PublishMaxAttempts: defaultPublishMaxAttempts,
		PublishBackoff:     defaultPublishBackoff,
		MaxRecordAttempts:  defaultMaxRecordAttempts,
	}
}

func (cfg *ProcessorConfig) normalize() {
	defaults := DefaultProcessorConfig()

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}

	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = defaults.DispatchTimeout
	}

	if cfg.PublishMaxAttempts <= 0 {
		cfg.PublishMaxAttempts = defaults.PublishMaxAttempts
	}

	if cfg.PublishBackoff <= 0 {
		cfg.PublishBackoff = defaults.PublishBackoff
	}

	if cfg.MaxRecordAttempts <= 0 {
		cfg.MaxRecordAttempts = defaults.MaxRecordAttempts
	}
}
