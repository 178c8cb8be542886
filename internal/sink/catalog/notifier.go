// Package catalog notifies host cataloguing systems about entity changes.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
)

const defaultRequestTimeout = 5 * time.Second

// notification is the wire shape posted to the catalog gateway. The gateway
// fans it out to the owning host system.
type notification struct {
	EventID   string          `json:"eventId"`
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

// Notifier posts entity-change notifications to the catalog gateway.
type Notifier struct {
	httpClient *http.Client
	baseURL    string
	logger     log.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(notifier *Notifier) {
		if httpClient != nil {
			notifier.httpClient = httpClient
		}
	}
}

// WithLogger sets a structured logger for the notifier.
func WithLogger(logger log.Logger) Option {
	return func(notifier *Notifier) {
		if logger != nil {
			notifier.logger = logger
		}
	}
}

// NewNotifier builds a catalog notifier for the given gateway base URL.
func NewNotifier(baseURL string, opts ...Option) (*Notifier, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid catalog gateway base url: %w", err)
	}

	notifier := &Notifier{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    baseURL,
		logger:     log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(notifier)
		}
	}

	return notifier, nil
}

// Dispatch posts the event to the catalog gateway. Any transport or non-2xx
// outcome is an unable-to-notify failure, left for the next drain to retry.
func (notifier *Notifier) Dispatch(ctx context.Context, event *domain.Event) error {
	body, err := json.Marshal(notification{
		EventID:   event.ID.String(),
		Kind:      string(event.Kind),
		Timestamp: event.Timestamp,
		Body:      event.Payload,
	})
	if err != nil {
		return fmt.Errorf("%w: encode catalog notification: %s", domain.ErrServer, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, notifier.baseURL+"/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build catalog request: %s", domain.ErrServer, err)
	}

	request.Header.Set("Content-Type", "application/json")

	response, err := notifier.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: catalog gateway call failed: %s", domain.ErrUnableToNotify, err)
	}

	defer response.Body.Close()

	io.Copy(io.Discard, response.Body) //nolint:errcheck

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("%w: catalog gateway returned status %d", domain.ErrUnableToNotify, response.StatusCode)
	}

	notifier.logger.Log(ctx, log.LevelDebug, "catalog notified",
		log.String("event_id", event.ID.String()),
		log.String("kind", string(event.Kind)),
	)

	return nil
}
