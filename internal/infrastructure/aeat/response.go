package aeat

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/pkg/verifactu"
)

// ── Estructuras de respuesta SOAP ─────────────────────────────────────────────
// Solo nombres locales: encoding/xml ignora el namespace si la etiqueta no lo indica.

type respEnvelope struct {
	Body respBody `xml:"Body"`
}

type respBody struct {
	Fault     *soapFault `xml:"Fault"`
	Respuesta *respuesta `xml:"RespuestaRegFactuSistemaFacturacion"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type respuesta struct {
	CSV               string           `xml:"CSV"`
	TiempoEsperaEnvio string           `xml:"TiempoEsperaEnvio"`
	EstadoEnvio       string           `xml:"EstadoEnvio"`
	Lineas            []respuestaLinea `xml:"RespuestaLinea"`
}

type respuestaLinea struct {
	IDFactura struct {
		IDEmisorFactura        string `xml:"IDEmisorFactura"`
		NumSerieFactura        string `xml:"NumSerieFactura"`
		FechaExpedicionFactura string `xml:"FechaExpedicionFactura"`
		IDEmisorFacturaAnulada string `xml:"IDEmisorFacturaAnulada"`
		NumSerieFacturaAnulada string `xml:"NumSerieFacturaAnulada"`
	} `xml:"IDFactura"`
	TipoOperacion            string `xml:"Operacion>TipoOperacion"`
	RefExterna               string `xml:"RefExterna"`
	EstadoRegistro           string `xml:"EstadoRegistro"`
	CodigoErrorRegistro      string `xml:"CodigoErrorRegistro"`
	DescripcionErrorRegistro string `xml:"DescripcionErrorRegistro"`
}

// Unmarshal lee la respuesta del servicio. Un SOAP Fault o un cuerpo
// irreconocible se devuelven como error: la remisión no tuvo respuesta válida.
func (c *XMLCodec) Unmarshal(raw []byte) (*dispatch.Response, error) {
	if len(raw) == 0 {
		return nil, errors.New("aeat: respuesta vacía")
	}
	var env respEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("aeat: parsear respuesta: %w", err)
	}
	if f := env.Body.Fault; f != nil {
		return nil, fmt.Errorf("aeat: SOAP Fault [%s]: %s", strings.TrimSpace(f.FaultCode), strings.TrimSpace(f.FaultString))
	}
	r := env.Body.Respuesta
	if r == nil {
		return nil, errors.New("aeat: respuesta SOAP sin RespuestaRegFactuSistemaFacturacion")
	}

	out := &dispatch.Response{
		CSV:    strings.TrimSpace(r.CSV),
		Status: strings.TrimSpace(r.EstadoEnvio),
		Lines:  make([]dispatch.ResponseLine, 0, len(r.Lineas)),
	}
	if w := strings.TrimSpace(r.TiempoEsperaEnvio); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil {
			return nil, fmt.Errorf("aeat: TiempoEsperaEnvio %q no numérico", w)
		}
		out.WaitSeconds = n
		out.WaitReported = true
	}
	for _, l := range r.Lineas {
		out.Lines = append(out.Lines, dispatch.ResponseLine{
			ExternalKey:  strings.TrimSpace(l.RefExterna),
			IssuerNIF:    firstOf(l.IDFactura.IDEmisorFactura, l.IDFactura.IDEmisorFacturaAnulada),
			SeriesNumber: firstOf(l.IDFactura.NumSerieFactura, l.IDFactura.NumSerieFacturaAnulada),
			Kind:         kindOf(l.TipoOperacion),
			Outcome:      strings.TrimSpace(l.EstadoRegistro),
			ErrorCode:    strings.TrimSpace(l.CodigoErrorRegistro),
			ErrorText:    strings.TrimSpace(l.DescripcionErrorRegistro),
		})
	}
	return out, nil
}

func kindOf(op string) entity.RecordKind {
	switch strings.TrimSpace(op) {
	case verifactu.OperationAlta:
		return entity.RecordKindAlta
	case verifactu.OperationAnulacion:
		return entity.RecordKindAnulacion
	default:
		return ""
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
