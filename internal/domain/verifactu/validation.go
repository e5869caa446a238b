package verifactu

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/pkg/verifactu"
)

// Longitudes máximas del diseño de registro.
const (
	maxSeriesLen      = 60
	maxNameLen        = 120
	maxDescriptionLen = 500
)

// tolerancia admitida entre CuotaTotal declarada y la suma del desglose.
var quotaTolerance = decimal.NewFromInt(10)

// RecordValidator aplica las reglas de negocio a un registro antes de encolarlo.
type RecordValidator struct{}

// NewRecordValidator crea el validador.
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{}
}

// Validate devuelve nil o todos los errores encontrados unidos con errors.Join.
func (v *RecordValidator) Validate(r *entity.Record) error {
	if err := CheckVariant(r); err != nil {
		return err
	}
	var errs []error

	if err := verifactu.ValidateNIF(r.ID.IssuerNIF); err != nil {
		errs = append(errs, fmt.Errorf("emisor: %w", err))
	}
	series := strings.TrimSpace(r.ID.SeriesNumber)
	switch {
	case series == "":
		errs = append(errs, errors.New("NumSerieFactura es obligatorio"))
	case utf8.RuneCountInString(series) > maxSeriesLen:
		errs = append(errs, fmt.Errorf("NumSerieFactura supera %d caracteres", maxSeriesLen))
	}
	if r.ID.IssueDate.IsZero() {
		errs = append(errs, errors.New("FechaExpedicionFactura es obligatoria"))
	}
	if name := strings.TrimSpace(r.IssuerName()); name == "" || utf8.RuneCountInString(name) > maxNameLen {
		errs = append(errs, fmt.Errorf("NombreRazonEmisor obligatorio y de hasta %d caracteres", maxNameLen))
	}

	if r.Kind == entity.RecordKindAlta {
		errs = append(errs, validateIssuance(r.Alta)...)
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{domain.ErrInvalidRecord}, errs...)...)
	}
	return nil
}

func validateIssuance(a *entity.Issuance) []error {
	var errs []error
	if !verifactu.ValidInvoiceTypes[a.InvoiceType] {
		errs = append(errs, fmt.Errorf("TipoFactura %q no válido", a.InvoiceType))
	}
	if d := strings.TrimSpace(a.Description); d == "" || utf8.RuneCountInString(d) > maxDescriptionLen {
		errs = append(errs, fmt.Errorf("DescripcionOperacion obligatoria y de hasta %d caracteres", maxDescriptionLen))
	}

	// F2 y R5 (simplificadas) no identifican destinatario; el resto sí.
	simplified := a.InvoiceType == verifactu.InvoiceTypeF2 || a.InvoiceType == verifactu.InvoiceTypeR5
	if simplified && len(a.Recipients) > 0 {
		errs = append(errs, fmt.Errorf("la factura %s no admite destinatarios", a.InvoiceType))
	}
	if !simplified && len(a.Recipients) == 0 {
		errs = append(errs, fmt.Errorf("la factura %s exige al menos un destinatario", a.InvoiceType))
	}
	for i, p := range a.Recipients {
		switch {
		case p.NIF != "":
			if err := verifactu.ValidateNIF(p.NIF); err != nil {
				errs = append(errs, fmt.Errorf("destinatario %d: %w", i+1, err))
			}
		case p.ForeignID == "" || p.Country == "" || p.IDType == "":
			errs = append(errs, fmt.Errorf("destinatario %d: sin NIF exige país, tipo y número de identificación", i+1))
		}
	}

	if len(a.Breakdown) == 0 {
		errs = append(errs, errors.New("el desglose debe tener al menos una línea"))
	}
	sumQuota := decimal.Zero
	sumTotal := decimal.Zero
	for i, l := range a.Breakdown {
		tax := l.Tax
		if tax == "" {
			tax = verifactu.TaxIVA
		}
		if !verifactu.ValidTaxes[tax] {
			errs = append(errs, fmt.Errorf("desglose %d: impuesto %q no válido", i+1, l.Tax))
		}
		switch {
		case l.Qualification != "" && l.Exemption != "":
			errs = append(errs, fmt.Errorf("desglose %d: CalificacionOperacion y OperacionExenta son excluyentes", i+1))
		case l.Qualification != "":
			if !verifactu.ValidQualifications[l.Qualification] {
				errs = append(errs, fmt.Errorf("desglose %d: CalificacionOperacion %q no válida", i+1, l.Qualification))
			}
		case l.Exemption != "":
			if !verifactu.ValidExemptions[l.Exemption] {
				errs = append(errs, fmt.Errorf("desglose %d: OperacionExenta %q no válida", i+1, l.Exemption))
			}
		default:
			errs = append(errs, fmt.Errorf("desglose %d: falta CalificacionOperacion u OperacionExenta", i+1))
		}
		sumQuota = sumQuota.Add(l.Quota).Add(l.Surcharge)
		sumTotal = sumTotal.Add(l.Base).Add(l.Quota).Add(l.Surcharge)
	}
	if len(a.Breakdown) > 0 {
		if a.TaxTotal.Sub(sumQuota).Abs().GreaterThan(quotaTolerance) {
			errs = append(errs, fmt.Errorf("CuotaTotal (%s) no coincide con la suma del desglose (%s)", a.TaxTotal.StringFixed(2), sumQuota.StringFixed(2)))
		}
		if a.GrandTotal.Sub(sumTotal).Abs().GreaterThan(quotaTolerance) {
			errs = append(errs, fmt.Errorf("ImporteTotal (%s) no coincide con base + cuotas (%s)", a.GrandTotal.StringFixed(2), sumTotal.StringFixed(2)))
		}
	}
	return errs
}
