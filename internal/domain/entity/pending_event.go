package entity

import (
	"time"

	"github.com/google/uuid"
)

// Resultado de cada línea devuelta por la AEAT (EstadoRegistro).
const (
	OutcomeNone               = ""
	OutcomeCorrect            = "Correcto"
	OutcomeAcceptedWithErrors = "AceptadoConErrores"
	OutcomeIncorrect          = "Incorrecto"
	OutcomeTransportError     = "ErrorEnvio" // fallo de red o de disco: sin respuesta de la AEAT
)

// PendingEvent evento de envío pendiente: un registro más los metadatos de remisión.
type PendingEvent struct {
	ID         string
	SellerID   string
	Record     *Record
	Resend     bool // reenvío tras un rechazo previo (cabecera distinta)
	Committed  bool // el registro ya forma parte de la cadena
	Posted     bool // la remisión llegó a la AEAT y hubo respuesta
	EnqueuedAt time.Time

	Outcome   string
	ErrorCode string
	ErrorText string
	CSV       string // Código Seguro de Verificación del envío
	UpdatedAt time.Time
}

// NewPendingEvent crea un evento nuevo (no reenvío) para el vendedor.
func NewPendingEvent(sellerID string, record *Record) *PendingEvent {
	return &PendingEvent{
		ID:       uuid.New().String(),
		SellerID: sellerID,
		Record:   record,
	}
}

// ResendCopy crea un evento de reenvío a partir de uno rechazado o fallido.
// Comparte el registro. Solo hereda Committed: una huella en memoria que no llegó
// a disco no cuenta como encadenada.
func (e *PendingEvent) ResendCopy() *PendingEvent {
	return &PendingEvent{
		ID:        uuid.New().String(),
		SellerID:  e.SellerID,
		Record:    e.Record,
		Resend:    true,
		Committed: e.Committed,
	}
}

// Rejected indica que la AEAT rechazó la línea o que el envío falló.
func (e *PendingEvent) Rejected() bool {
	return e.Outcome == OutcomeIncorrect || e.Outcome == OutcomeTransportError
}
