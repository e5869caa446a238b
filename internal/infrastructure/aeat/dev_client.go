package aeat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/pkg/verifactu"
)

// DevClient simula el servicio sin red: acepta cada registro de la petición y
// responde con el tiempo de espera configurado. Implementa dispatch.Transport.
type DevClient struct {
	// WaitSeconds TiempoEsperaEnvio devuelto en cada respuesta.
	WaitSeconds int
	// RejectPrefix series que empiezan por este prefijo se responden Incorrecto.
	RejectPrefix string
}

var _ dispatch.Transport = (*DevClient)(nil)

// NewDevClient crea el simulador con la espera por defecto de la AEAT.
func NewDevClient() *DevClient {
	return &DevClient{WaitSeconds: verifactu.DefaultWaitSeconds}
}

// Send construye una respuesta coherente con la petición.
func (c *DevClient) Send(ctx context.Context, seller string, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := etree.NewDocument()
	if err := req.ReadFromBytes(payload); err != nil {
		return nil, fmt.Errorf("dev: petición no es XML: %w", err)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("env:Envelope")
	env.CreateAttr("xmlns:env", NsSoap)
	body := env.CreateElement("env:Body")
	resp := body.CreateElement("tikR:RespuestaRegFactuSistemaFacturacion")
	resp.CreateAttr("xmlns:tikR", NsResp)
	resp.CreateAttr("xmlns:tik", NsSum1)
	text(resp, "tikR:CSV", "A-"+strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:14]))
	text(resp, "tikR:TiempoEsperaEnvio", strconv.Itoa(c.WaitSeconds))
	estado := resp.CreateElement("tikR:EstadoEnvio")

	var correct, incorrect int
	for _, el := range req.FindElements("//*") {
		var op, issuerTag, seriesTag, dateTag string
		switch el.Tag {
		case "RegistroAlta":
			op, issuerTag, seriesTag, dateTag = verifactu.OperationAlta, "IDEmisorFactura", "NumSerieFactura", "FechaExpedicionFactura"
		case "RegistroAnulacion":
			op, issuerTag, seriesTag, dateTag = verifactu.OperationAnulacion, "IDEmisorFacturaAnulada", "NumSerieFacturaAnulada", "FechaExpedicionFacturaAnulada"
		default:
			continue
		}
		id := child(el, "IDFactura")
		series := childText(id, seriesTag)

		line := resp.CreateElement("tikR:RespuestaLinea")
		idf := line.CreateElement("tikR:IDFactura")
		text(idf, "tik:IDEmisorFactura", childText(id, issuerTag))
		text(idf, "tik:NumSerieFactura", series)
		text(idf, "tik:FechaExpedicionFactura", childText(id, dateTag))
		text(line.CreateElement("tikR:Operacion"), "tik:TipoOperacion", op)
		if ref := childText(el, "RefExterna"); ref != "" {
			text(line, "tikR:RefExterna", ref)
		}
		if c.RejectPrefix != "" && strings.HasPrefix(series, c.RejectPrefix) {
			incorrect++
			text(line, "tikR:EstadoRegistro", "Incorrecto")
			text(line, "tikR:CodigoErrorRegistro", "1100")
			text(line, "tikR:DescripcionErrorRegistro", "Valor o tipo incorrecto del campo: NumSerieFactura")
			continue
		}
		correct++
		text(line, "tikR:EstadoRegistro", "Correcto")
	}

	switch {
	case incorrect == 0:
		estado.SetText(verifactu.SubmissionCorrect)
	case correct == 0:
		estado.SetText(verifactu.SubmissionIncorrect)
	default:
		estado.SetText(verifactu.SubmissionPartiallyCorrect)
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

func child(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func childText(el *etree.Element, tag string) string {
	if c := child(el, tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}
