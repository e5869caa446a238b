package http

import "github.com/gofiber/fiber/v2"

// faultChecker es el contrato mínimo que necesita el middleware para consultar la cadena.
// Lo implementa *records.UseCase.
type faultChecker interface {
	LedgerFault(seller string) error
}

// RequireLedgerHealthy corta las altas y anulaciones de un vendedor cuya cadena quedó
// inconsistente tras un fallo de escritura. Debe usarse en rutas con :nif.
//
// Comportamiento:
//   - 503 Service Unavailable → la cadena espera una recarga desde disco.
//   - 400 Bad Request → el NIF de la ruta no es válido.
func RequireLedgerHealthy(checker faultChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := checker.LedgerFault(c.Params("nif")); err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}

