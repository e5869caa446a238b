package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/verifactu/internal/application/records"
	"github.com/jhoicas/verifactu/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	RecordsUC *records.UseCase
	JWTSecret string
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret), RequireRole(jwt.RoleAdmin, jwt.RoleEmisor))

	recordHandler := NewRecordHandler(deps.RecordsUC)
	chainHandler := NewChainHandler(deps.RecordsUC)

	// Registros y cadena por vendedor
	sellers := api.Group("/sellers/:nif", RequireSellerAccess())
	sellers.Post("/invoices", RequireLedgerHealthy(deps.RecordsUC), recordHandler.SubmitIssuance)
	sellers.Post("/cancellations", RequireLedgerHealthy(deps.RecordsUC), recordHandler.SubmitCancellation)
	sellers.Get("/events", recordHandler.ListEvents)
	sellers.Get("/chain", chainHandler.Head)
	sellers.Get("/ledger/:period/report", chainHandler.Report)

	// Administración de la cadena (solo admin)
	sellers.Get("/chain/verify", RequireRole(jwt.RoleAdmin), chainHandler.Verify)
	sellers.Delete("/chain/head", RequireRole(jwt.RoleAdmin), chainHandler.Rollback)
	sellers.Post("/chain/reload", RequireRole(jwt.RoleAdmin), chainHandler.Reload)

	// Eventos
	events := api.Group("/events")
	events.Get("/:id", recordHandler.GetEvent)
	events.Post("/:id/resend", recordHandler.Resend)
}
