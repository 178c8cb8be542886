//go:build unit

package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestErrorMapsTaxonomyToStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", domain.NewValidationError("bad input"), 400, "VALIDATION"},
		{"not found", domain.NewNotFoundError("no such order"), 404, "NOT_FOUND"},
		{"illegal state", domain.NewIllegalStateError("order deleted"), 409, "ILLEGAL_STATE"},
		{"repository", domain.ErrRepository, 500, "SERVER"},
		{"server", domain.ErrServer, 500, "SERVER"},
		{"unclassified", io.ErrUnexpectedEOF, 500, "SERVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := fiber.New()
			app.Get("/boom", func(c *fiber.Ctx) error {
				return Error(c, tt.err)
			})

			response, err := app.Test(httptest.NewRequest("GET", "/boom", nil), -1)
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, response.StatusCode)

			body, err := io.ReadAll(response.Body)
			require.NoError(t, err)

			var envelope ErrorResponse
			require.NoError(t, json.Unmarshal(body, &envelope))
			require.Equal(t, tt.wantCode, envelope.Code)
		})
	}
}

func TestErrorHidesInternalDetail(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return Error(c, domain.ErrRepository)
	})

	response, err := app.Test(httptest.NewRequest("GET", "/boom", nil), -1)
	require.NoError(t, err)

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.NotContains(t, string(body), "repository unavailable", "driver detail stays out of responses")
}
