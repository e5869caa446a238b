package entity

import (
	"strconv"
	"time"
)

// Formatos de fecha usados en los archivos de la cadena y en la huella.
const (
	IssueDateLayout    = "02-01-2006"                // FechaExpedicionFactura
	TimestampLayout    = "2006-01-02T15:04:05-07:00" // FechaHoraHusoGenRegistro
	SnapshotTimeLayout = "02/01/2006 15:04:05"       // archivo de estado actual
	PeriodLayout       = "200601"                    // archivo mensual YYYYMM
)

// ChainHead estado de un eslabón de la cadena (actual o anterior).
// Tras un reinicio Record es nil: solo se recupera lo que guarda el archivo de estado.
type ChainHead struct {
	LinkID      uint64
	GeneratedAt time.Time
	Huella      string
	ID          InvoiceID
	Record      *Record
}

// Empty indica cadena vacía.
func (h ChainHead) Empty() bool {
	return h.LinkID == 0
}

// Fields devuelve la línea del archivo de estado:
// linkId;timestamp;digest;issueDate;issuer;seriesNumber
func (h ChainHead) Fields() []string {
	return []string{
		strconv.FormatUint(h.LinkID, 10),
		h.GeneratedAt.Format(SnapshotTimeLayout),
		h.Huella,
		h.ID.IssueDate.Format(IssueDateLayout),
		h.ID.IssuerNIF,
		h.ID.SeriesNumber,
	}
}

// ChainEntry línea de control de un eslabón. Es lo que se añade al archivo mensual.
type ChainEntry struct {
	LinkID       uint64
	Timestamp    string
	Huella       string
	Kind         RecordKind
	IssuerNIF    string
	SeriesNumber string
	IssueDate    string
	HashInput    string
}

// Period devuelve el periodo YYYYMM del eslabón a partir de su marca de tiempo.
func (e ChainEntry) Period() string {
	t, err := time.Parse(TimestampLayout, e.Timestamp)
	if err != nil {
		return ""
	}
	return t.Format(PeriodLayout)
}

// Fields devuelve la línea del archivo mensual:
// linkId;generationTimestamp;digest;kind;issuer;seriesNumber;issueDate;hashInput
func (e ChainEntry) Fields() []string {
	return []string{
		strconv.FormatUint(e.LinkID, 10),
		e.Timestamp,
		e.Huella,
		string(e.Kind),
		e.IssuerNIF,
		e.SeriesNumber,
		e.IssueDate,
		e.HashInput,
	}
}

// String línea de control legible para diagnóstico.
func (e ChainEntry) String() string {
	return strconv.FormatUint(e.LinkID, 10) + " " + e.Timestamp + " " + e.Huella + " " +
		e.IssuerNIF + " " + e.SeriesNumber + " " + e.IssueDate + " " + e.HashInput
}
