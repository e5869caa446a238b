package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/verifactu/internal/application/dto"
	"github.com/jhoicas/verifactu/internal/application/records"
)

// RecordHandler entrada de registros de alta y anulación y consulta de eventos.
type RecordHandler struct {
	uc *records.UseCase
}

// NewRecordHandler construye el handler.
func NewRecordHandler(uc *records.UseCase) *RecordHandler {
	return &RecordHandler{uc: uc}
}

// SubmitIssuance encola un registro de alta.
// POST /api/sellers/:nif/invoices
func (h *RecordHandler) SubmitIssuance(c *fiber.Ctx) error {
	var in dto.IssuanceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.SubmitIssuance(c.Context(), c.Params("nif"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}

// SubmitCancellation encola un registro de anulación.
// POST /api/sellers/:nif/cancellations
func (h *RecordHandler) SubmitCancellation(c *fiber.Ctx) error {
	var in dto.CancellationRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.SubmitCancellation(c.Context(), c.Params("nif"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}

// ListEvents histórico de eventos del vendedor.
// GET /api/sellers/:nif/events?limit=&offset=
func (h *RecordHandler) ListEvents(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	out, err := h.uc.ListEvents(c.Context(), c.Params("nif"), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// GetEvent estado de un evento.
// GET /api/events/:id
func (h *RecordHandler) GetEvent(c *fiber.Ctx) error {
	out, err := h.uc.GetEvent(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !canSee(c, out.SellerID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "evento no encontrado"})
	}
	return c.JSON(out)
}

// Resend reenvía un evento rechazado o fallido.
// POST /api/events/:id/resend
func (h *RecordHandler) Resend(c *fiber.Ctx) error {
	id := c.Params("id")
	current, err := h.uc.GetEvent(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !canSee(c, current.SellerID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "evento no encontrado"})
	}
	out, err := h.uc.Resend(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}
