// Package dispatch agrupa los eventos pendientes de cada vendedor, respeta el tiempo de
// espera que comunica la AEAT entre remisiones y concilia la respuesta línea a línea.
package dispatch

import (
	"context"

	"github.com/jhoicas/verifactu/internal/domain/entity"
)

// Chain lo que la cola necesita de la cadena del vendedor.
type Chain interface {
	InsertBatch(records []*entity.Record) ([]entity.ChainEntry, error)
	Write() error
	Fault() error // fallo de escritura pendiente de recarga, o nil
}

// Transport envía una remisión ya serializada y devuelve la respuesta en bruto.
type Transport interface {
	Send(ctx context.Context, seller string, payload []byte) ([]byte, error)
}

// Header contexto de cabecera de una remisión; lo aporta el primer evento.
type Header struct {
	SellerID   string
	SellerName string
	Resend     bool // remisión de registros rechazados previamente
}

// Serializer convierte registros en la petición y la respuesta en líneas.
type Serializer interface {
	Marshal(header Header, records []*entity.Record) ([]byte, error)
	Unmarshal(raw []byte) (*Response, error)
}

// Validator reglas de negocio previas a encolar.
type Validator interface {
	Validate(record *entity.Record) error
}

// AuditSink guarda copia de la petición y la respuesta de cada remisión.
type AuditSink interface {
	Save(seller, batchID string, request, response []byte) error
}

// Response respuesta deserializada de una remisión.
type Response struct {
	CSV          string
	Status       string // Correcto, ParcialmenteCorrecto, Incorrecto
	WaitSeconds  int
	WaitReported bool
	Lines        []ResponseLine
}

// ResponseLine resultado de un registro dentro de la respuesta.
type ResponseLine struct {
	ExternalKey  string
	IssuerNIF    string
	SeriesNumber string
	Kind         entity.RecordKind
	Outcome      string
	ErrorCode    string
	ErrorText    string
}

// Hooks notificación asíncrona del resultado de cada remisión.
// Se invocan desde la goroutine del Dispatcher.
type Hooks struct {
	OnBatchSent   func(events []*entity.PendingEvent, resp *Response)
	OnBatchFailed func(events []*entity.PendingEvent, err error)
}
