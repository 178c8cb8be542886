package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/backoff"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Category names one event-processing lane with its own external sink.
type Category string

const (
	CategoryCatalog    Category = "catalog"
	CategoryStorage    Category = "storage"
	CategoryEmail      Category = "email"
	CategoryStatistics Category = "statistics"
)

// Categories returns every processor category.
func Categories() []Category {
	return []Category{CategoryCatalog, CategoryStorage, CategoryEmail, CategoryStatistics}
}

// IsValid reports whether the category is known.
func (category Category) IsValid() bool {
	switch category {
	case CategoryCatalog, CategoryStorage, CategoryEmail, CategoryStatistics:
		return true
	default:
		return false
	}
}

// Sink dispatches one domain event to an external system. Implementations
// translate the event body into the system's wire shape and map its failures
// into the service error taxonomy.
type Sink interface {
	Dispatch(ctx context.Context, event *domain.Event) error
}

// DrainResult captures one drain cycle outcome.
type DrainResult struct {
	Fetched    int `json:"fetched"`
	Dispatched int `json:"dispatched"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Processor drains the outbox for one category: it fetches the category's
// own unprocessed records, dispatches the ones whose kind the category
// reacts to, and marks successes processed. A failing record is left
// unprocessed for the next drain and never aborts the batch. Records of
// other categories are never listed, so marking processed here cannot
// consume an event another category still has to deliver.
type Processor struct {
	category Category
	kinds    map[domain.EventKind]bool
	store    Store
	sink     Sink
	logger   log.Logger
	tracer   trace.Tracer
	cfg      ProcessorConfig
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets a structured logger for the processor.
func WithLogger(logger log.Logger) ProcessorOption {
	return func(processor *Processor) {
		if logger != nil {
			processor.logger = logger
		}
	}
}

// WithTracer sets the tracer used for drain spans.
func WithTracer(tracer trace.Tracer) ProcessorOption {
	return func(processor *Processor) {
		if tracer != nil {
			processor.tracer = tracer
		}
	}
}

// WithConfig overrides the default processor configuration.
func WithConfig(cfg ProcessorConfig) ProcessorOption {
	return func(processor *Processor) {
		processor.cfg = cfg
	}
}

// NewProcessor creates a processor for one category. The kinds slice is the
// subset of event variants the category reacts to; records of any other kind
// are skipped, not failed.
func NewProcessor(
	category Category,
	kinds []domain.EventKind,
	store Store,
	sink Sink,
	opts ...ProcessorOption,
) (*Processor, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrCategoryUnknown, category)
	}

	if store == nil {
		return nil, ErrStoreRequired
	}

	if sink == nil {
		return nil, ErrSinkRequired
	}

	kindSet := make(map[domain.EventKind]bool, len(kinds))
	for _, kind := range kinds {
		kindSet[kind] = true
	}

	processor := &Processor{
		category: category,
		kinds:    kindSet,
		store:    store,
		sink:     sink,
		logger:   log.NewNop(),
		tracer:   noop.NewTracerProvider().Tracer("outbox.noop"),
		cfg:      DefaultProcessorConfig(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(processor)
		}
	}

	processor.cfg.normalize()

	return processor, nil
}

// Category returns the processor's category.
func (processor *Processor) Category() Category {
	return processor.category
}

// Drain runs one drain cycle. Per-record failures are logged and counted but
// never surfaced to the caller as an error; the records stay unprocessed and
// are retried on the next drain.
func (processor *Processor) Drain(ctx context.Context) DrainResult {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := processor.tracer.Start(ctx, "outbox.drain",
		trace.WithAttributes(attribute.String("outbox.category", string(processor.category))),
	)
	defer span.End()

	var result DrainResult

	records, err := processor.store.ListUnprocessed(ctx, processor.category, processor.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		processor.logger.Log(ctx, log.LevelError, "failed to list unprocessed outbox records",
			log.String("category", string(processor.category)), log.Err(err))

		return result
	}

	result.Fetched = len(records)

	for _, record := range records {
		if ctx.Err() != nil {
			break
		}

		if record == nil {
			continue
		}

		if !processor.kinds[record.Kind] {
			result.Skipped++

			continue
		}

		if err := processor.dispatchWithRetry(ctx, record); err != nil {
			processor.handleDispatchError(ctx, record, err)

			result.Failed++

			continue
		}

		result.Dispatched++

		applied, err := processor.store.MarkProcessed(ctx, record.ID, time.Now().UTC())
		if err != nil {
			// Dispatched but not marked: the record will be delivered again
			// on the next drain. Sinks must tolerate duplicates.
			processor.logger.Log(ctx, log.LevelError, "dispatched outbox record but failed to mark processed",
				log.String("record_id", record.ID.String()), log.Err(err))

			continue
		}

		if !applied {
			processor.logger.Log(ctx, log.LevelDebug, "outbox record already marked processed by a concurrent drain",
				log.String("record_id", record.ID.String()))
		}
	}

	span.SetAttributes(
		attribute.Int("outbox.drain.fetched", result.Fetched),
		attribute.Int("outbox.drain.dispatched", result.Dispatched),
		attribute.Int("outbox.drain.skipped", result.Skipped),
		attribute.Int("outbox.drain.failed", result.Failed),
	)

	return result
}

func (processor *Processor) dispatchWithRetry(ctx context.Context, record *Record) error {
	var lastErr error

	for attempt := 0; attempt < processor.cfg.PublishMaxAttempts; attempt++ {
		err := processor.dispatchOnce(ctx, record)
		if err == nil {
			return nil
		}

		lastErr = fmt.Errorf("dispatch attempt %d/%d failed: %w", attempt+1, processor.cfg.PublishMaxAttempts, err)

		if attempt == processor.cfg.PublishMaxAttempts-1 {
			break
		}

		delay := backoff.ExponentialWithJitter(processor.cfg.PublishBackoff, attempt)
		if waitErr := backoff.SleepWithContext(ctx, delay); waitErr != nil {
			return fmt.Errorf("dispatch retry wait interrupted: %w", waitErr)
		}
	}

	return lastErr
}

func (processor *Processor) dispatchOnce(ctx context.Context, record *Record) error {
	dispatchCtx, cancel := context.WithTimeout(ctx, processor.cfg.DispatchTimeout)
	defer cancel()

	return processor.sink.Dispatch(dispatchCtx, record.Event())
}

func (processor *Processor) handleDispatchError(ctx context.Context, record *Record, dispatchErr error) {
	processor.logger.Log(ctx, log.LevelWarn, "outbox dispatch failed, record left unprocessed",
		log.String("category", string(processor.category)),
		log.String("record_id", record.ID.String()),
		log.String("kind", string(record.Kind)),
		log.Err(dispatchErr))

	if err := processor.store.MarkFailed(ctx, record.ID, dispatchErr.Error(), processor.cfg.MaxRecordAttempts); err != nil {
		processor.logger.Log(ctx, log.LevelError, "failed to record outbox dispatch failure",
			log.String("record_id", record.ID.String()), log.Err(err))
	}
}
