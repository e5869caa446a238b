package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/verifactu/internal/application/records"
	"github.com/jhoicas/verifactu/pkg/jwt"
)

// ChainHandler consulta y administración de la cadena de un vendedor.
type ChainHandler struct {
	uc *records.UseCase
}

// NewChainHandler construye el handler.
func NewChainHandler(uc *records.UseCase) *ChainHandler {
	return &ChainHandler{uc: uc}
}

// Head último eslabón.
// GET /api/sellers/:nif/chain
func (h *ChainHandler) Head(c *fiber.Ctx) error {
	out, err := h.uc.ChainHead(c.Params("nif"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Verify recalcula la cadena en disco.
// GET /api/sellers/:nif/chain/verify
func (h *ChainHandler) Verify(c *fiber.Ctx) error {
	out, err := h.uc.Verify(c.Params("nif"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Rollback deshace el último eslabón.
// DELETE /api/sellers/:nif/chain/head?huella=
func (h *ChainHandler) Rollback(c *fiber.Ctx) error {
	out, err := h.uc.RollbackHead(c.Context(), c.Params("nif"), c.Query("huella"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Reload recarga la cadena desde disco tras un fallo de escritura.
// POST /api/sellers/:nif/chain/reload
func (h *ChainHandler) Reload(c *fiber.Ctx) error {
	out, err := h.uc.ReloadChain(c.Params("nif"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Report PDF del archivo mensual.
// GET /api/sellers/:nif/ledger/:period/report
func (h *ChainHandler) Report(c *fiber.Ctx) error {
	doc, err := h.uc.LedgerReport(c.Context(), c.Params("nif"), c.Params("period"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="cadena-`+c.Params("nif")+"-"+c.Params("period")+`.pdf"`)
	return c.Send(doc)
}

// canSee el administrador ve todo; un emisor, solo lo suyo.
func canSee(c *fiber.Ctx, seller string) bool {
	return GetRole(c) == jwt.RoleAdmin || GetSellerNIF(c) == seller
}
