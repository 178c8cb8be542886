// Package storagesys adapts domain events into the physical storage system's
// HTTP wire calls.
package storagesys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
	"github.com/sony/gobreaker"
)

const (
	// ErrorCodeDuplicate is the storage system's error code for an entity it
	// already knows. Receiving it on a create is a benign idempotent outcome
	// under at-least-once delivery, not a failure.
	ErrorCodeDuplicate = 409

	defaultRequestTimeout = 5 * time.Second
	maxErrorBodyBytes     = 64 << 10
)

// errorResponse is the storage system's rejection body.
type errorResponse struct {
	ErrorCode int    `json:"errorCode"`
	ErrorText string `json:"errorText"`
}

// Client calls the physical storage system over HTTP. Every call goes
// through a circuit breaker so a dead storage system fails fast instead of
// tying up drain cycles.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// WithAPIKey sets the storage system API key sent on every request.
func WithAPIKey(apiKey string) Option {
	return func(client *Client) {
		client.apiKey = apiKey
	}
}

// WithLogger sets a structured logger for the client.
func WithLogger(logger log.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// NewClient builds a storage-system client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid storage system base url: %w", err)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    baseURL,
		logger:     log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	client.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "storage-system",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A rejection with code+text means the storage system answered; only
		// transport-level failures should trip the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}

			_, isRejection := domain.AsStorageSystemError(err)

			return isRejection
		},
	})

	return client, nil
}

// Dispatch translates one domain event into the matching storage-system call.
func (client *Client) Dispatch(ctx context.Context, event *domain.Event) error {
	switch event.Kind {
	case domain.EventItemCreated:
		return client.dispatchItem(ctx, event, http.MethodPost, "/products")
	case domain.EventItemUpdated:
		return client.dispatchItem(ctx, event, http.MethodPut, "/products")
	case domain.EventOrderCreated:
		return client.dispatchOrder(ctx, event, http.MethodPost, "/orders")
	case domain.EventOrderUpdated:
		return client.dispatchOrder(ctx, event, http.MethodPut, "/orders")
	case domain.EventOrderDeleted:
		return client.dispatchOrderDeletion(ctx, event)
	default:
		return fmt.Errorf("%w: storage system has no call for %q", domain.ErrServer, string(event.Kind))
	}
}

func (client *Client) dispatchItem(ctx context.Context, event *domain.Event, method, path string) error {
	item, err := event.ItemPayload()
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrServer, err)
	}

	return client.call(ctx, method, path, item)
}

func (client *Client) dispatchOrder(ctx context.Context, event *domain.Event, method, path string) error {
	order, err := event.OrderPayload()
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrServer, err)
	}

	return client.call(ctx, method, path, order)
}

func (client *Client) dispatchOrderDeletion(ctx context.Context, event *domain.Event) error {
	ref, err := event.OrderRefPayload()
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrServer, err)
	}

	path := fmt.Sprintf("/orders/%s/%s", url.PathEscape(string(ref.HostSystem)), url.PathEscape(ref.HostOrderID))

	return client.call(ctx, http.MethodDelete, path, nil)
}

func (client *Client) call(ctx context.Context, method, path string, payload any) error {
	var body io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: encode storage system payload: %s", domain.ErrServer, err)
		}

		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build storage system request: %s", domain.ErrServer, err)
	}

	request.Header.Set("Content-Type", "application/json")

	if client.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+client.apiKey)
	}

	_, err = client.breaker.Execute(func() (any, error) {
		return nil, client.do(ctx, request)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: storage system circuit open: %s", domain.ErrUnableToNotify, err)
	}

	return err
}

func (client *Client) do(ctx context.Context, request *http.Request) error {
	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: storage system call failed: %s", domain.ErrUnableToNotify, err)
	}

	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		io.Copy(io.Discard, response.Body) //nolint:errcheck

		return nil
	}

	rejection, err := decodeErrorResponse(response.Body)
	if err != nil {
		return fmt.Errorf("%w: storage system returned status %d with unreadable body: %s",
			domain.ErrUnableToNotify, response.StatusCode, err)
	}

	if rejection.ErrorCode == ErrorCodeDuplicate {
		client.logger.Log(ctx, log.LevelDebug, "storage system reported duplicate, treating as success",
			log.String("error_text", rejection.ErrorText))

		return nil
	}

	return domain.NewStorageSystemError(rejection.ErrorCode, rejection.ErrorText)
}

func decodeErrorResponse(body io.Reader) (*errorResponse, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil {
		return nil, err
	}

	var rejection errorResponse
	if err := json.Unmarshal(raw, &rejection); err != nil {
		return nil, fmt.Errorf("decode error response: %w", err)
	}

	return &rejection, nil
}
