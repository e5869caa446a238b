package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssuanceRequest body para POST /api/sellers/:nif/invoices (registro de alta).
// IssueDate admite dd-mm-aaaa o aaaa-mm-dd.
type IssuanceRequest struct {
	SeriesNumber  string           `json:"series_number"`
	IssueDate     string           `json:"issue_date"`
	IssuerName    string           `json:"issuer_name"`
	InvoiceType   string           `json:"invoice_type"`
	Description   string           `json:"description"`
	Recipients    []PartyRequest   `json:"recipients,omitempty"`
	Breakdown     []TaxLineRequest `json:"breakdown"`
	TaxTotal      decimal.Decimal  `json:"tax_total"`
	GrandTotal    decimal.Decimal  `json:"grand_total"`
	Correction    bool             `json:"correction,omitempty"`
	PriorRejected bool             `json:"prior_rejected,omitempty"`
}

// PartyRequest destinatario: NIF español o identificación extranjera.
type PartyRequest struct {
	Name      string `json:"name"`
	NIF       string `json:"nif,omitempty"`
	Country   string `json:"country,omitempty"`
	IDType    string `json:"id_type,omitempty"`
	ForeignID string `json:"foreign_id,omitempty"`
}

// TaxLineRequest línea del desglose.
type TaxLineRequest struct {
	Tax           string          `json:"tax"`
	RegimeKey     string          `json:"regime_key,omitempty"`
	Qualification string          `json:"qualification,omitempty"`
	Exemption     string          `json:"exemption,omitempty"`
	Rate          decimal.Decimal `json:"rate"`
	Base          decimal.Decimal `json:"base"`
	Quota         decimal.Decimal `json:"quota"`
	SurchargeRate decimal.Decimal `json:"surcharge_rate"`
	Surcharge     decimal.Decimal `json:"surcharge"`
}

// CancellationRequest body para POST /api/sellers/:nif/cancellations.
type CancellationRequest struct {
	SeriesNumber     string `json:"series_number"`
	IssueDate        string `json:"issue_date"`
	IssuerName       string `json:"issuer_name"`
	NoPriorRecord    bool   `json:"no_prior_record,omitempty"`
	PriorRejected    bool   `json:"prior_rejected,omitempty"`
	GeneratedByThird bool   `json:"generated_by_third,omitempty"`
}

// EventResponse estado de un evento de envío.
type EventResponse struct {
	ID           string    `json:"id"`
	SellerID     string    `json:"seller_id"`
	Kind         string    `json:"kind"`
	SeriesNumber string    `json:"series_number"`
	State        string    `json:"state"`
	Resend       bool      `json:"resend"`
	LinkID       uint64    `json:"link_id,omitempty"`
	Huella       string    `json:"huella,omitempty"`
	ExternalKey  string    `json:"external_key,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorText    string    `json:"error_text,omitempty"`
	CSV          string    `json:"csv,omitempty"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// ChainHeadResponse último eslabón de la cadena de un vendedor.
type ChainHeadResponse struct {
	SellerID      string    `json:"seller_id"`
	LinkID        uint64    `json:"link_id"`
	Huella        string    `json:"huella,omitempty"`
	GeneratedAt   time.Time `json:"generated_at,omitempty"`
	SeriesNumber  string    `json:"series_number,omitempty"`
	IssueDate     string    `json:"issue_date,omitempty"`
	PendingWrites int       `json:"pending_writes"`
	QueuedEvents  int       `json:"queued_events"`
	Fault         string    `json:"fault,omitempty"`
}

// RollbackResponse resultado de deshacer el último eslabón.
type RollbackResponse struct {
	RemovedLinkID uint64            `json:"removed_link_id"`
	RemovedHuella string            `json:"removed_huella"`
	Head          ChainHeadResponse `json:"head"`
}

// VerifyResponse resultado de recalcular la cadena completa.
type VerifyResponse struct {
	SellerID   string   `json:"seller_id"`
	OK         bool     `json:"ok"`
	Periods    []string `json:"periods"`
	Links      int      `json:"links"`
	LastLinkID uint64   `json:"last_link_id"`
	LastHuella string   `json:"last_huella,omitempty"`
	Breaks     []string `json:"breaks,omitempty"`
}
