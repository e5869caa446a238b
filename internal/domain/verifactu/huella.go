package verifactu

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
)

// HashInput construye el texto canónico sobre el que se calcula la huella del registro.
// El registro debe tener asignados Link y Timestamp.
//
// Alta:
//
//	IDEmisorFactura=..&NumSerieFactura=..&FechaExpedicionFactura=dd-mm-aaaa&TipoFactura=..
//	&CuotaTotal=..&ImporteTotal=..&Huella=<anterior>&FechaHoraHusoGenRegistro=..
//
// Anulación:
//
//	IDEmisorFacturaAnulada=..&NumSerieFacturaAnulada=..&FechaExpedicionFacturaAnulada=..
//	&Huella=<anterior>&FechaHoraHusoGenRegistro=..
func HashInput(r *entity.Record) (string, error) {
	if err := CheckVariant(r); err != nil {
		return "", err
	}
	prev := ""
	if !r.Link.First {
		prev = strings.TrimSpace(r.Link.PrevHuella)
	}
	date := r.ID.IssueDate.Format(entity.IssueDateLayout)

	var parts []string
	switch r.Kind {
	case entity.RecordKindAlta:
		parts = []string{
			field("IDEmisorFactura", r.ID.IssuerNIF),
			field("NumSerieFactura", r.ID.SeriesNumber),
			field("FechaExpedicionFactura", date),
			field("TipoFactura", r.Alta.InvoiceType),
			field("CuotaTotal", amount(r.Alta.TaxTotal)),
			field("ImporteTotal", amount(r.Alta.GrandTotal)),
			field("Huella", prev),
			field("FechaHoraHusoGenRegistro", r.Timestamp),
		}
	case entity.RecordKindAnulacion:
		parts = []string{
			field("IDEmisorFacturaAnulada", r.ID.IssuerNIF),
			field("NumSerieFacturaAnulada", r.ID.SeriesNumber),
			field("FechaExpedicionFacturaAnulada", date),
			field("Huella", prev),
			field("FechaHoraHusoGenRegistro", r.Timestamp),
		}
	}
	return strings.Join(parts, "&"), nil
}

// CheckVariant comprueba que el tipo del registro y su contenido coinciden.
func CheckVariant(r *entity.Record) error {
	if r == nil {
		return fmt.Errorf("%w: registro nulo", domain.ErrInvalidRecord)
	}
	switch r.Kind {
	case entity.RecordKindAlta:
		if r.Alta == nil || r.Anulacion != nil {
			return fmt.Errorf("%w: alta %s", domain.ErrMixedRecord, r.ID.SeriesNumber)
		}
	case entity.RecordKindAnulacion:
		if r.Anulacion == nil || r.Alta != nil {
			return fmt.Errorf("%w: anulación %s", domain.ErrMixedRecord, r.ID.SeriesNumber)
		}
	default:
		return fmt.Errorf("%w: tipo %q desconocido", domain.ErrInvalidRecord, r.Kind)
	}
	return nil
}

// PrevHuellaOf extrae la huella anterior de un texto canónico ya calculado.
func PrevHuellaOf(hashInput string) string {
	for _, p := range strings.Split(hashInput, "&") {
		if v, ok := strings.CutPrefix(p, "Huella="); ok {
			return v
		}
	}
	return ""
}

func field(name, value string) string {
	return name + "=" + strings.TrimSpace(value)
}

// amount formato de importes en la huella: punto decimal, 2 decimales (ej: 121.00).
func amount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
