package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/verifactu/internal/application/dto"
	"github.com/jhoicas/verifactu/internal/domain"
)

// errorStatus traduce los errores de dominio a estado HTTP y código.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrInvalidRecord, fiber.StatusBadRequest, "INVALID_RECORD"},
	{domain.ErrMixedRecord, fiber.StatusBadRequest, "INVALID_RECORD"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrNotHead, fiber.StatusConflict, "NOT_HEAD"},
	{domain.ErrRollbackDepth, fiber.StatusConflict, "ROLLBACK_DEPTH"},
	{domain.ErrNoRollbackHistory, fiber.StatusConflict, "NO_ROLLBACK_HISTORY"},
	{domain.ErrNotResendable, fiber.StatusConflict, "NOT_RESENDABLE"},
	{domain.ErrAlreadyPosted, fiber.StatusConflict, "ALREADY_POSTED"},
	{domain.ErrAlreadyCommitted, fiber.StatusConflict, "ALREADY_COMMITTED"},
	{domain.ErrLedgerInconsistent, fiber.StatusServiceUnavailable, "LEDGER_INCONSISTENT"},
	{domain.ErrShuttingDown, fiber.StatusServiceUnavailable, "SHUTTING_DOWN"},
	{domain.ErrUnavailable, fiber.StatusServiceUnavailable, "UNAVAILABLE"},
}

func respondError(c *fiber.Ctx, err error) error {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return c.Status(e.status).JSON(dto.ErrorResponse{Code: e.code, Message: err.Error()})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
