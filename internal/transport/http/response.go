// Package http exposes the service over REST with fiber.
package http

import (
	"errors"
	"net/http"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the envelope for every rejection.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK sends an HTTP 200 OK response with a custom body.
func OK(c *fiber.Ctx, body any) error {
	return c.Status(http.StatusOK).JSON(body)
}

// Created sends an HTTP 201 Created response with a custom body.
func Created(c *fiber.Ctx, body any) error {
	return c.Status(http.StatusCreated).JSON(body)
}

// NoContent sends an HTTP 204 No Content response.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(http.StatusNoContent)
}

// Error maps a domain taxonomy error onto a status code and envelope.
// Anything unclassified is a server error, with the detail kept out of the
// response body.
func Error(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrIllegalState):
		return respondError(c, http.StatusConflict, "ILLEGAL_STATE", err.Error())
	case errors.Is(err, domain.ErrRepository):
		return respondError(c, http.StatusInternalServerError, "SERVER", "storage temporarily unavailable")
	default:
		return respondError(c, http.StatusInternalServerError, "SERVER", "unexpected server error")
	}
}

func respondError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{Code: code, Message: message})
}
