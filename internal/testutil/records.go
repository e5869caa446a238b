package testutil

import (
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/verifactu/internal/domain/entity"
)

// SellerNIF NIF de pruebas de la AEAT.
const SellerNIF = "89890001K"

var madrid = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(err)
	}
	return loc
}()

// Madrid zona horaria de los tests.
func Madrid() *time.Location {
	return madrid
}

// Alta registro de alta F1 válido sin encadenar.
func Alta(seller, series string) *entity.Record {
	return entity.NewIssuanceRecord(
		entity.InvoiceID{IssuerNIF: seller, SeriesNumber: series, IssueDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		entity.Issuance{
			IssuerName:  "Empresa Pruebas SL",
			InvoiceType: "F1",
			Description: "Venta",
			Recipients:  []entity.Party{{Name: "Cliente SA", NIF: "B12345674"}},
			Breakdown: []entity.TaxLine{{
				Tax:           "01",
				RegimeKey:     "01",
				Qualification: "S1",
				Rate:          decimal.NewFromInt(21),
				Base:          decimal.RequireFromString("100.00"),
				Quota:         decimal.RequireFromString("21.00"),
			}},
			TaxTotal:   decimal.RequireFromString("21.00"),
			GrandTotal: decimal.RequireFromString("121.00"),
		},
	)
}

// Anulacion registro de anulación sin encadenar.
func Anulacion(seller, series string) *entity.Record {
	return entity.NewCancellationRecord(
		entity.InvoiceID{IssuerNIF: seller, SeriesNumber: series, IssueDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		entity.Cancellation{IssuerName: "Empresa Pruebas SL"},
	)
}
