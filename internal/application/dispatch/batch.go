package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/pkg/logger"
)

// Sender serializa, envía y audita remisiones. No guarda estado entre llamadas.
type Sender struct {
	serializer Serializer
	transport  Transport
	audit      AuditSink
	log        *logger.Logger
}

// NewSender construye el emisor. audit puede ser nil.
func NewSender(serializer Serializer, transport Transport, audit AuditSink, log *logger.Logger) *Sender {
	if log == nil {
		log = logger.Nop()
	}
	return &Sender{serializer: serializer, transport: transport, audit: audit, log: log.Component("batch")}
}

// Send remite los eventos en una sola petición. El primer evento aporta la cabecera;
// todos deben ser del mismo vendedor y del mismo tipo (envío o reenvío).
func (s *Sender) Send(ctx context.Context, events []*entity.PendingEvent) (*Response, error) {
	if len(events) == 0 {
		return nil, errors.New("batch: remisión vacía")
	}
	first := events[0]
	header := Header{SellerID: first.SellerID, SellerName: first.Record.IssuerName(), Resend: first.Resend}
	records := make([]*entity.Record, 0, len(events))
	for _, ev := range events {
		if ev.SellerID != header.SellerID || ev.Resend != header.Resend {
			return nil, fmt.Errorf("batch: evento %s incompatible con la cabecera de la remisión", ev.ID)
		}
		records = append(records, ev.Record)
	}

	payload, err := s.serializer.Marshal(header, records)
	if err != nil {
		return nil, fmt.Errorf("batch: serializar: %w", err)
	}
	batchID := uuid.New().String()
	raw, sendErr := s.transport.Send(ctx, header.SellerID, payload)
	if s.audit != nil {
		if err := s.audit.Save(header.SellerID, batchID, payload, raw); err != nil {
			s.log.Warn().Err(err).Str("batch_id", batchID).Msg("no se pudo guardar la copia de auditoría")
		}
	}
	if sendErr != nil {
		return nil, fmt.Errorf("batch: enviar: %w", sendErr)
	}
	resp, err := s.serializer.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("batch: deserializar respuesta: %w", err)
	}
	s.log.Info().
		Str("seller", header.SellerID).
		Str("batch_id", batchID).
		Int("registros", len(records)).
		Bool("reenvio", header.Resend).
		Str("estado", resp.Status).
		Int("espera_s", resp.WaitSeconds).
		Msg("remisión enviada")
	return resp, nil
}

// Summary recuento de la conciliación.
type Summary struct {
	Correct            int
	AcceptedWithErrors int
	Incorrect          int
	Unmatched          int
}

// Reconcile asigna cada línea de la respuesta a su evento por RefExterna (o por
// emisor + serie + tipo si la línea no la trae), marca los eventos como remitidos y
// llama a onEvent por cada uno. Un evento sin línea queda Incorrecto.
func Reconcile(resp *Response, events []*entity.PendingEvent, now time.Time, onEvent func(*entity.PendingEvent)) Summary {
	byKey := make(map[string]*entity.PendingEvent, len(events))
	byID := make(map[string]*entity.PendingEvent, len(events))
	for _, ev := range events {
		byKey[ev.Record.ExternalKey] = ev
		byID[identityKey(ev.Record.ID.IssuerNIF, ev.Record.ID.SeriesNumber, ev.Record.Kind)] = ev
	}

	var sum Summary
	seen := make(map[*entity.PendingEvent]bool, len(events))
	for _, line := range resp.Lines {
		ev, ok := byKey[line.ExternalKey]
		if !ok || line.ExternalKey == "" {
			ev, ok = byID[identityKey(line.IssuerNIF, line.SeriesNumber, line.Kind)]
		}
		if !ok || seen[ev] {
			continue
		}
		seen[ev] = true
		ev.Outcome = line.Outcome
		ev.ErrorCode = line.ErrorCode
		ev.ErrorText = line.ErrorText
		switch line.Outcome {
		case entity.OutcomeCorrect:
			sum.Correct++
		case entity.OutcomeAcceptedWithErrors:
			sum.AcceptedWithErrors++
		default:
			ev.Outcome = entity.OutcomeIncorrect
			sum.Incorrect++
		}
	}
	for _, ev := range events {
		if !seen[ev] {
			ev.Outcome = entity.OutcomeIncorrect
			ev.ErrorCode = ""
			ev.ErrorText = "la respuesta no incluye el registro"
			sum.Unmatched++
		}
		ev.Posted = true
		ev.CSV = resp.CSV
		ev.UpdatedAt = now
		if onEvent != nil {
			onEvent(ev)
		}
	}
	return sum
}

func identityKey(issuer, series string, kind entity.RecordKind) string {
	if kind == "" {
		kind = entity.RecordKindAlta
	}
	return strings.TrimSpace(issuer) + "|" + strings.TrimSpace(series) + "|" + string(kind)
}
