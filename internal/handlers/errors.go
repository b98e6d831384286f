package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/hillmyna/internal/audio"
	"github.com/codebuildervaibhav/hillmyna/internal/auth"
	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/queue"
	"github.com/codebuildervaibhav/hillmyna/internal/storage"
	"github.com/codebuildervaibhav/hillmyna/internal/words"
)

// apiError writes the JSON error body used by every endpoint.
func apiError(c *fiber.Ctx, status int, message, code string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// fromError maps a service error onto an HTTP status and error code.
func fromError(c *fiber.Ctx, err error) error {
	var (
		apiErr *azure.APIError
		opErr  *azure.OperationError
	)

	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return apiError(c, fiber.StatusNotFound, err.Error(), "ERR_USER_NOT_FOUND")
	case errors.Is(err, storage.ErrUserExists):
		return apiError(c, fiber.StatusConflict, err.Error(), "ERR_USER_EXISTS")
	case errors.Is(err, storage.ErrSampleNotFound):
		return apiError(c, fiber.StatusNotFound, err.Error(), "ERR_SAMPLE_NOT_FOUND")
	case errors.Is(err, auth.ErrInvalidUsername):
		return apiError(c, fiber.StatusBadRequest, err.Error(), "ERR_INVALID_USERNAME")
	case errors.Is(err, auth.ErrAudioFormat), errors.Is(err, audio.ErrNotWAV):
		return apiError(c, fiber.StatusBadRequest, err.Error(), "ERR_INVALID_AUDIO")
	case errors.Is(err, auth.ErrAudioTooLong):
		return apiError(c, fiber.StatusBadRequest, err.Error(), "ERR_AUDIO_TOO_LONG")
	case errors.Is(err, words.ErrSampleSize), errors.Is(err, words.ErrTooMany):
		return apiError(c, fiber.StatusBadRequest, err.Error(), "ERR_INVALID_COUNT")
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrStopped):
		return apiError(c, fiber.StatusServiceUnavailable, err.Error(), "ERR_QUEUE_FULL")
	case errors.As(err, &apiErr):
		return apiError(c, fiber.StatusBadGateway, err.Error(), "ERR_AZURE")
	case errors.As(err, &opErr):
		return apiError(c, fiber.StatusBadGateway, err.Error(), "ERR_AZURE_OPERATION")
	case errors.Is(err, context.DeadlineExceeded):
		return apiError(c, fiber.StatusGatewayTimeout, err.Error(), "ERR_TIMEOUT")
	default:
		return apiError(c, fiber.StatusInternalServerError, err.Error(), "ERR_INTERNAL")
	}
}
