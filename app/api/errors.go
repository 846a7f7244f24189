package api

import (
	"errors"
	"fmt"
	"time"

	"docfill/types"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	if apiError, ok := err.(Error); ok {
		return c.Status(apiError.Code).JSON(apiError)
	}
	if valError, ok := err.(ValidationError); ok {
		return c.Status(valError.Status).JSON(valError)
	}

	apiError := fromDomain(err)
	curTime := time.Now()
	fmt.Printf("%s Request failed with code %d and message: %s\n", &curTime, apiError.Code, apiError.Message)
	return c.Status(apiError.Code).JSON(apiError)
}

// fromDomain maps typed engine failures onto HTTP codes. Parse and
// extraction failures are the upload's fault (422), model failures are
// transient (503, safe to retry the same turn), not-found is 404.
func fromDomain(err error) Error {
	var parseErr *types.ParseError
	var renderErr *types.RenderError
	switch {
	case errors.Is(err, types.ErrDocumentNotFound), errors.Is(err, types.ErrSessionNotFound):
		return NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrNoPlaceholders):
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &parseErr), errors.As(err, &renderErr):
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, types.ErrModelTimeout), errors.Is(err, types.ErrModelUnavailable):
		return NewError(fiber.StatusServiceUnavailable, err.Error())
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return NewError(fiberErr.Code, fiberErr.Message)
	}
	return NewError(fiber.StatusInternalServerError, err.Error())
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}
