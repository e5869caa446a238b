package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/repository"
)

var _ repository.EventRepository = (*EventRepo)(nil)

// EventRepo implementación de EventRepository (usable con pool o tx).
type EventRepo struct {
	q Querier
}

// NewEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEventRepository(q Querier) *EventRepo {
	return &EventRepo{q: q}
}

const eventColumns = `id, seller_id, kind, issuer_nif, issuer_name, series_number, issue_date,
	tax_total, grand_total, link_id, huella, external_key, resend, committed, posted,
	outcome, error_code, error_text, csv, enqueued_at, updated_at`

// Save inserta o actualiza el evento por ID. Una versión más antigua que la guardada
// no la sobrescribe: el alta en cola y el resultado del envío pueden llegar desordenados.
func (r *EventRepo) Save(ctx context.Context, ev *entity.PendingEvent) error {
	if ev == nil || ev.Record == nil {
		return errors.New("evento sin registro")
	}
	row := toRow(ev)
	query := `
		INSERT INTO verifactu_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE
		SET link_id      = EXCLUDED.link_id,
		    huella       = EXCLUDED.huella,
		    external_key = EXCLUDED.external_key,
		    committed    = EXCLUDED.committed,
		    posted       = EXCLUDED.posted,
		    outcome      = EXCLUDED.outcome,
		    error_code   = EXCLUDED.error_code,
		    error_text   = EXCLUDED.error_text,
		    csv          = EXCLUDED.csv,
		    updated_at   = EXCLUDED.updated_at
		WHERE verifactu_events.updated_at <= EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		row.ID, row.SellerID, row.Kind, row.IssuerNIF, row.IssuerName, row.SeriesNumber, row.IssueDate,
		row.TaxTotal, row.GrandTotal, row.LinkID, row.Huella, row.ExternalKey, row.Resend, row.Committed, row.Posted,
		row.Outcome, row.ErrorCode, row.ErrorText, row.CSV, row.EnqueuedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("guardar evento %s: %w", ev.ID, err)
	}
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*entity.PendingEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM verifactu_events WHERE id = $1`
	row, err := scanEvent(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consultar evento %s: %w", id, err)
	}
	return row.toEntity(), nil
}

// ListBySeller eventos del vendedor, los más recientes primero.
func (r *EventRepo) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*entity.PendingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + eventColumns + ` FROM verifactu_events
		WHERE seller_id = $1 ORDER BY enqueued_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listar eventos: %w", err)
	}
	defer rows.Close()

	var out []*entity.PendingEvent
	for rows.Next() {
		row, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("leer evento: %w", err)
		}
		out = append(out, row.toEntity())
	}
	return out, rows.Err()
}

// eventRow fila de verifactu_events. Del registro solo se guarda el resumen.
type eventRow struct {
	ID           string
	SellerID     string
	Kind         string
	IssuerNIF    string
	IssuerName   string
	SeriesNumber string
	IssueDate    time.Time
	TaxTotal     decimal.NullDecimal
	GrandTotal   decimal.NullDecimal
	LinkID       int64
	Huella       *string
	ExternalKey  *string
	Resend       bool
	Committed    bool
	Posted       bool
	Outcome      string
	ErrorCode    *string
	ErrorText    *string
	CSV          *string
	EnqueuedAt   time.Time
	UpdatedAt    time.Time
}

func scanEvent(s pgx.Row) (eventRow, error) {
	var r eventRow
	err := s.Scan(&r.ID, &r.SellerID, &r.Kind, &r.IssuerNIF, &r.IssuerName, &r.SeriesNumber, &r.IssueDate,
		&r.TaxTotal, &r.GrandTotal, &r.LinkID, &r.Huella, &r.ExternalKey, &r.Resend, &r.Committed, &r.Posted,
		&r.Outcome, &r.ErrorCode, &r.ErrorText, &r.CSV, &r.EnqueuedAt, &r.UpdatedAt)
	return r, err
}

func toRow(ev *entity.PendingEvent) eventRow {
	rec := ev.Record
	row := eventRow{
		ID:           ev.ID,
		SellerID:     ev.SellerID,
		Kind:         string(rec.Kind),
		IssuerNIF:    rec.ID.IssuerNIF,
		IssuerName:   rec.IssuerName(),
		SeriesNumber: rec.ID.SeriesNumber,
		IssueDate:    rec.ID.IssueDate,
		LinkID:       int64(rec.LinkID),
		Huella:       nullIfEmpty(rec.Huella),
		ExternalKey:  nullIfEmpty(rec.ExternalKey),
		Resend:       ev.Resend,
		Committed:    ev.Committed,
		Posted:       ev.Posted,
		Outcome:      ev.Outcome,
		ErrorCode:    nullIfEmpty(ev.ErrorCode),
		ErrorText:    nullIfEmpty(ev.ErrorText),
		CSV:          nullIfEmpty(ev.CSV),
		EnqueuedAt:   ev.EnqueuedAt,
		UpdatedAt:    ev.UpdatedAt,
	}
	if rec.Kind == entity.RecordKindAlta && rec.Alta != nil {
		row.TaxTotal = decimal.NewNullDecimal(rec.Alta.TaxTotal)
		row.GrandTotal = decimal.NewNullDecimal(rec.Alta.GrandTotal)
	}
	if row.EnqueuedAt.IsZero() {
		row.EnqueuedAt = time.Now()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.EnqueuedAt
	}
	return row
}

func (r eventRow) toEntity() *entity.PendingEvent {
	id := entity.InvoiceID{IssuerNIF: r.IssuerNIF, SeriesNumber: r.SeriesNumber, IssueDate: r.IssueDate}
	var rec *entity.Record
	if entity.RecordKind(r.Kind) == entity.RecordKindAnulacion {
		rec = entity.NewCancellationRecord(id, entity.Cancellation{IssuerName: r.IssuerName})
	} else {
		rec = entity.NewIssuanceRecord(id, entity.Issuance{
			IssuerName: r.IssuerName,
			TaxTotal:   r.TaxTotal.Decimal,
			GrandTotal: r.GrandTotal.Decimal,
		})
	}
	rec.LinkID = uint64(r.LinkID)
	rec.Huella = emptyIfNull(r.Huella)
	rec.ExternalKey = emptyIfNull(r.ExternalKey)

	return &entity.PendingEvent{
		ID:         r.ID,
		SellerID:   r.SellerID,
		Record:     rec,
		Resend:     r.Resend,
		Committed:  r.Committed,
		Posted:     r.Posted,
		EnqueuedAt: r.EnqueuedAt,
		Outcome:    r.Outcome,
		ErrorCode:  emptyIfNull(r.ErrorCode),
		ErrorText:  emptyIfNull(r.ErrorText),
		CSV:        emptyIfNull(r.CSV),
		UpdatedAt:  r.UpdatedAt,
	}
}
