package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind distingue los dos tipos de registro de facturación VERI*FACTU.
type RecordKind string

const (
	RecordKindAlta      RecordKind = "alta"      // Registro de alta (expedición de factura)
	RecordKindAnulacion RecordKind = "anulacion" // Registro de anulación
)

// InvoiceID identifica la factura: NIF del emisor, serie+número y fecha de expedición.
type InvoiceID struct {
	IssuerNIF    string
	SeriesNumber string
	IssueDate    time.Time
}

// Party destinatario de la factura (NIF nacional o identificación extranjera).
type Party struct {
	Name      string
	NIF       string
	Country   string // Código ISO 3166-1 alfa-2 si no tiene NIF español
	IDType    string // 02..07 según L7
	ForeignID string
}

// TaxLine línea del desglose (DetalleDesglose).
type TaxLine struct {
	Tax           string // 01 = IVA, 02 = IPSI, 03 = IGIC, 05 = Otros
	RegimeKey     string // ClaveRegimen (L8A/L8B)
	Qualification string // CalificacionOperacion: S1, S2, N1, N2
	Exemption     string // OperacionExenta: E1..E8
	Rate          decimal.Decimal
	Base          decimal.Decimal
	Quota         decimal.Decimal
	SurchargeRate decimal.Decimal
	Surcharge     decimal.Decimal
}

// Issuance contenido propio de un registro de alta.
type Issuance struct {
	IssuerName    string
	InvoiceType   string // F1, F2, F3, R1..R5
	Description   string
	Recipients    []Party
	Breakdown     []TaxLine
	TaxTotal      decimal.Decimal // CuotaTotal
	GrandTotal    decimal.Decimal // ImporteTotal
	Correction    bool            // Subsanacion
	PriorRejected bool            // RechazoPrevio
}

// Cancellation contenido propio de un registro de anulación.
type Cancellation struct {
	IssuerName       string
	NoPriorRecord    bool // SinRegistroPrevio
	PriorRejected    bool // RechazoPrevio
	GeneratedByThird bool // GeneradoPor distinto del emisor
}

// ChainLink bloque de encadenamiento con el registro anterior.
type ChainLink struct {
	First      bool // PrimerRegistro = S
	PrevIssuer string
	PrevSeries string
	PrevDate   time.Time
	PrevHuella string
}

// Record registro de facturación. Variante etiquetada: Kind indica cuál de
// Alta o Anulacion está informado; el otro debe ser nil.
//
// Los campos de cadena (LinkID, GeneratedAt, Huella, Link, ExternalKey, HashInput)
// solo los asigna el Ledger al encadenar; desde ese momento el registro es inmutable.
type Record struct {
	Kind      RecordKind
	ID        InvoiceID
	Alta      *Issuance
	Anulacion *Cancellation

	LinkID      uint64
	GeneratedAt time.Time
	Timestamp   string // FechaHoraHusoGenRegistro tal cual entra en la huella
	Huella      string
	Link        ChainLink
	ExternalKey string // RefExterna
	HashInput   string
}

// NewIssuanceRecord construye un registro de alta sin encadenar.
func NewIssuanceRecord(id InvoiceID, alta Issuance) *Record {
	return &Record{Kind: RecordKindAlta, ID: id, Alta: &alta}
}

// NewCancellationRecord construye un registro de anulación sin encadenar.
func NewCancellationRecord(id InvoiceID, anulacion Cancellation) *Record {
	return &Record{Kind: RecordKindAnulacion, ID: id, Anulacion: &anulacion}
}

// Chained indica si el registro ya tiene huella asignada.
func (r *Record) Chained() bool {
	return r.Huella != ""
}

// ResetChain borra los campos de cadena: el registro vuelve a poder encadenarse.
// Solo tras deshacer el eslabón o tras un fallo de escritura.
func (r *Record) ResetChain() {
	r.LinkID = 0
	r.GeneratedAt = time.Time{}
	r.Timestamp = ""
	r.Huella = ""
	r.Link = ChainLink{}
	r.ExternalKey = ""
	r.HashInput = ""
}

// IssuerName devuelve el nombre o razón social del obligado según la variante.
func (r *Record) IssuerName() string {
	switch r.Kind {
	case RecordKindAlta:
		if r.Alta != nil {
			return r.Alta.IssuerName
		}
	case RecordKindAnulacion:
		if r.Anulacion != nil {
			return r.Anulacion.IssuerName
		}
	}
	return ""
}
