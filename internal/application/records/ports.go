// Package records caso de uso de los registros de facturación: alta y anulación,
// reenvío, consulta de estado, cabeza de la cadena, deshacer e informes.
package records

import (
	"context"
	"time"

	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/repository"
)

// ReportData datos del informe mensual de la cadena de un vendedor.
type ReportData struct {
	SellerID    string
	Period      string // YYYYMM
	Entries     []entity.ChainEntry
	ChainOK     bool
	Breaks      []string
	GeneratedAt time.Time
}

// ReportGenerator puerto de salida para el PDF del informe.
type ReportGenerator interface {
	GenerateLedgerPDF(ctx context.Context, data ReportData) ([]byte, error)
}

// TxRunner ejecuta fn en una transacción con el repositorio de eventos atado a ella.
type TxRunner interface {
	Run(ctx context.Context, fn func(events repository.EventRepository) error) error
}
