package aeat

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/pkg/verifactu"
)

// XMLCodec construye la petición RegFactuSistemaFacturacion dentro del sobre SOAP
// y lee la respuesta. Implementa dispatch.Serializer.
type XMLCodec struct {
	system SystemInfo
}

// NewXMLCodec crea el codificador con los datos del sistema informático.
func NewXMLCodec(system SystemInfo) *XMLCodec {
	return &XMLCodec{system: system}
}

var _ dispatch.Serializer = (*XMLCodec)(nil)

// Marshal genera el sobre SOAP con un RegistroFactura por registro, en el mismo orden.
// Todos los registros deben estar encadenados.
func (c *XMLCodec) Marshal(header dispatch.Header, records []*entity.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("aeat: remisión sin registros")
	}
	if len(records) > verifactu.MaxBatchSize {
		return nil, fmt.Errorf("aeat: %d registros superan el máximo de %d por remisión", len(records), verifactu.MaxBatchSize)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", NsSoap)
	env.CreateAttr("xmlns:sum", NsSum)
	env.CreateAttr("xmlns:sum1", NsSum1)
	env.CreateElement("soapenv:Header")
	body := env.CreateElement("soapenv:Body")

	reg := body.CreateElement("sum:RegFactuSistemaFacturacion")
	cab := reg.CreateElement("sum:Cabecera")
	obligado := cab.CreateElement("sum1:ObligadoEmision")
	text(obligado, "sum1:NombreRazon", header.SellerName)
	text(obligado, "sum1:NIF", header.SellerID)

	for _, r := range records {
		if r == nil || !r.Chained() {
			return nil, errors.New("aeat: registro sin encadenar en la remisión")
		}
		wrapper := reg.CreateElement("sum:RegistroFactura")
		switch r.Kind {
		case entity.RecordKindAlta:
			if r.Alta == nil {
				return nil, fmt.Errorf("aeat: alta %s sin contenido", r.ID.SeriesNumber)
			}
			c.writeAlta(wrapper, r, header.Resend)
		case entity.RecordKindAnulacion:
			if r.Anulacion == nil {
				return nil, fmt.Errorf("aeat: anulación %s sin contenido", r.ID.SeriesNumber)
			}
			c.writeAnulacion(wrapper, r, header.Resend)
		default:
			return nil, fmt.Errorf("aeat: tipo de registro desconocido %q", r.Kind)
		}
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func (c *XMLCodec) writeAlta(parent *etree.Element, r *entity.Record, resend bool) {
	a := r.Alta
	el := parent.CreateElement("sum1:RegistroAlta")
	text(el, "sum1:IDVersion", IDVersion)
	id := el.CreateElement("sum1:IDFactura")
	text(id, "sum1:IDEmisorFactura", r.ID.IssuerNIF)
	text(id, "sum1:NumSerieFactura", r.ID.SeriesNumber)
	text(id, "sum1:FechaExpedicionFactura", r.ID.IssueDate.Format(entity.IssueDateLayout))
	text(el, "sum1:RefExterna", r.ExternalKey)
	text(el, "sum1:NombreRazonEmisor", a.IssuerName)
	// Un reenvío tras rechazo es una subsanación de un registro que la AEAT no tiene.
	if a.Correction || resend {
		text(el, "sum1:Subsanacion", "S")
	}
	if a.PriorRejected || resend {
		text(el, "sum1:RechazoPrevio", "X")
	}
	text(el, "sum1:TipoFactura", a.InvoiceType)
	text(el, "sum1:DescripcionOperacion", a.Description)

	if len(a.Recipients) > 0 {
		dest := el.CreateElement("sum1:Destinatarios")
		for _, p := range a.Recipients {
			writeParty(dest.CreateElement("sum1:IDDestinatario"), p)
		}
	}

	desglose := el.CreateElement("sum1:Desglose")
	for _, line := range a.Breakdown {
		writeTaxLine(desglose.CreateElement("sum1:DetalleDesglose"), line)
	}
	text(el, "sum1:CuotaTotal", money(a.TaxTotal))
	text(el, "sum1:ImporteTotal", money(a.GrandTotal))

	writeChaining(el, r)
	c.writeSystem(el)
	text(el, "sum1:FechaHoraHusoGenRegistro", r.Timestamp)
	text(el, "sum1:TipoHuella", verifactu.HashTypeSHA256)
	text(el, "sum1:Huella", r.Huella)
}

func (c *XMLCodec) writeAnulacion(parent *etree.Element, r *entity.Record, resend bool) {
	a := r.Anulacion
	el := parent.CreateElement("sum1:RegistroAnulacion")
	text(el, "sum1:IDVersion", IDVersion)
	id := el.CreateElement("sum1:IDFactura")
	text(id, "sum1:IDEmisorFacturaAnulada", r.ID.IssuerNIF)
	text(id, "sum1:NumSerieFacturaAnulada", r.ID.SeriesNumber)
	text(id, "sum1:FechaExpedicionFacturaAnulada", r.ID.IssueDate.Format(entity.IssueDateLayout))
	text(el, "sum1:RefExterna", r.ExternalKey)
	if a.NoPriorRecord {
		text(el, "sum1:SinRegistroPrevio", "S")
	}
	if a.PriorRejected || resend {
		text(el, "sum1:RechazoPrevio", "S")
	}
	if a.GeneratedByThird {
		text(el, "sum1:GeneradoPor", "T")
	}
	writeChaining(el, r)
	c.writeSystem(el)
	text(el, "sum1:FechaHoraHusoGenRegistro", r.Timestamp)
	text(el, "sum1:TipoHuella", verifactu.HashTypeSHA256)
	text(el, "sum1:Huella", r.Huella)
}

func (c *XMLCodec) writeSystem(parent *etree.Element) {
	s := parent.CreateElement("sum1:SistemaInformatico")
	text(s, "sum1:NombreRazon", c.system.Name)
	text(s, "sum1:NIF", c.system.NIF)
	text(s, "sum1:NombreSistemaInformatico", c.system.SystemName)
	text(s, "sum1:IdSistemaInformatico", c.system.SystemID)
	text(s, "sum1:Version", c.system.Version)
	text(s, "sum1:NumeroInstalacion", c.system.InstallationNumber)
	text(s, "sum1:TipoUsoPosibleSoloVerifactu", "S")
	text(s, "sum1:TipoUsoPosibleMultiOT", "N")
	text(s, "sum1:IndicadorMultiplesOT", "N")
}

func writeChaining(parent *etree.Element, r *entity.Record) {
	enc := parent.CreateElement("sum1:Encadenamiento")
	if r.Link.First {
		text(enc, "sum1:PrimerRegistro", "S")
		return
	}
	prev := enc.CreateElement("sum1:RegistroAnterior")
	text(prev, "sum1:IDEmisorFactura", r.Link.PrevIssuer)
	text(prev, "sum1:NumSerieFactura", r.Link.PrevSeries)
	text(prev, "sum1:FechaExpedicionFactura", r.Link.PrevDate.Format(entity.IssueDateLayout))
	text(prev, "sum1:Huella", r.Link.PrevHuella)
}

func writeParty(el *etree.Element, p entity.Party) {
	text(el, "sum1:NombreRazon", p.Name)
	if p.NIF != "" {
		text(el, "sum1:NIF", p.NIF)
		return
	}
	otro := el.CreateElement("sum1:IDOtro")
	text(otro, "sum1:CodigoPais", p.Country)
	text(otro, "sum1:IDType", p.IDType)
	text(otro, "sum1:ID", p.ForeignID)
}

func writeTaxLine(el *etree.Element, t entity.TaxLine) {
	text(el, "sum1:Impuesto", t.Tax)
	if t.RegimeKey != "" {
		text(el, "sum1:ClaveRegimen", t.RegimeKey)
	}
	if t.Exemption != "" {
		text(el, "sum1:OperacionExenta", t.Exemption)
	} else {
		text(el, "sum1:CalificacionOperacion", t.Qualification)
	}
	subject := t.Qualification == verifactu.QualificationS1 || t.Qualification == verifactu.QualificationS2
	if subject {
		text(el, "sum1:TipoImpositivo", money(t.Rate))
	}
	text(el, "sum1:BaseImponibleOimporteNoSujeto", money(t.Base))
	if subject {
		text(el, "sum1:CuotaRepercutida", money(t.Quota))
	}
	if !t.Surcharge.IsZero() {
		text(el, "sum1:TipoRecargoEquivalencia", money(t.SurchargeRate))
		text(el, "sum1:CuotaRecargoEquivalencia", money(t.Surcharge))
	}
}

func text(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}

func money(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
