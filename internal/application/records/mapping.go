package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/application/dto"
	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
)

var issueDateLayouts = []string{entity.IssueDateLayout, "2006-01-02"}

func parseIssueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range issueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: fecha de expedición %q (dd-mm-aaaa o aaaa-mm-dd)", domain.ErrInvalidInput, s)
}

func issuanceFromDTO(seller string, req dto.IssuanceRequest) (*entity.Record, error) {
	date, err := parseIssueDate(req.IssueDate)
	if err != nil {
		return nil, err
	}
	alta := entity.Issuance{
		IssuerName:    req.IssuerName,
		InvoiceType:   strings.ToUpper(strings.TrimSpace(req.InvoiceType)),
		Description:   req.Description,
		TaxTotal:      req.TaxTotal,
		GrandTotal:    req.GrandTotal,
		Correction:    req.Correction,
		PriorRejected: req.PriorRejected,
	}
	for _, p := range req.Recipients {
		alta.Recipients = append(alta.Recipients, entity.Party{
			Name:      p.Name,
			NIF:       p.NIF,
			Country:   p.Country,
			IDType:    p.IDType,
			ForeignID: p.ForeignID,
		})
	}
	for _, l := range req.Breakdown {
		alta.Breakdown = append(alta.Breakdown, entity.TaxLine{
			Tax:           l.Tax,
			RegimeKey:     l.RegimeKey,
			Qualification: l.Qualification,
			Exemption:     l.Exemption,
			Rate:          l.Rate,
			Base:          l.Base,
			Quota:         l.Quota,
			SurchargeRate: l.SurchargeRate,
			Surcharge:     l.Surcharge,
		})
	}
	id := entity.InvoiceID{IssuerNIF: seller, SeriesNumber: req.SeriesNumber, IssueDate: date}
	return entity.NewIssuanceRecord(id, alta), nil
}

func cancellationFromDTO(seller string, req dto.CancellationRequest) (*entity.Record, error) {
	date, err := parseIssueDate(req.IssueDate)
	if err != nil {
		return nil, err
	}
	id := entity.InvoiceID{IssuerNIF: seller, SeriesNumber: req.SeriesNumber, IssueDate: date}
	return entity.NewCancellationRecord(id, entity.Cancellation{
		IssuerName:       req.IssuerName,
		NoPriorRecord:    req.NoPriorRecord,
		PriorRejected:    req.PriorRejected,
		GeneratedByThird: req.GeneratedByThird,
	}), nil
}

func eventResponse(st dispatch.Status) *dto.EventResponse {
	return &dto.EventResponse{
		ID:           st.ID,
		SellerID:     st.SellerID,
		Kind:         string(st.Kind),
		SeriesNumber: st.Series,
		State:        st.State,
		Resend:       st.Resend,
		LinkID:       st.LinkID,
		Huella:       st.Huella,
		ExternalKey:  st.ExternalKey,
		Outcome:      st.Outcome,
		ErrorCode:    st.ErrorCode,
		ErrorText:    st.ErrorText,
		CSV:          st.CSV,
		EnqueuedAt:   st.EnqueuedAt,
		UpdatedAt:    st.UpdatedAt,
	}
}

func headResponse(seller string, head entity.ChainHead) dto.ChainHeadResponse {
	out := dto.ChainHeadResponse{SellerID: seller, LinkID: head.LinkID, Huella: head.Huella}
	if !head.Empty() {
		out.GeneratedAt = head.GeneratedAt
		out.SeriesNumber = head.ID.SeriesNumber
		out.IssueDate = head.ID.IssueDate.Format(entity.IssueDateLayout)
	}
	return out
}

// snapshot copia del evento y su registro antes de compartirlo con la cola.
func snapshot(ev *entity.PendingEvent) *entity.PendingEvent {
	cp := *ev
	rec := *ev.Record
	cp.Record = &rec
	return &cp
}
