package outbox

import "errors"

var (
	ErrEventRequired     = errors.New("outbox event is required")
	ErrEventIDRequired   = errors.New("outbox event id is required")
	ErrEventKindUnknown  = errors.New("outbox event kind is not part of the closed variant set")
	ErrPayloadRequired   = errors.New("outbox event payload is required")
	ErrPayloadTooLarge   = errors.New("outbox event payload exceeds maximum allowed size")
	ErrPayloadNotJSON    = errors.New("outbox event payload must be valid JSON")
	ErrStoreRequired     = errors.New("outbox store is required")
	ErrSinkRequired      = errors.New("event sink is required")
	ErrProcessorRequired = errors.New("processor is required")
	ErrCategoryUnknown   = errors.New("unknown processor category")
)
