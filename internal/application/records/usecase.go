package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/application/dto"
	"github.com/jhoicas/verifactu/internal/application/ledger"
	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/repository"
	"github.com/jhoicas/verifactu/pkg/logger"
	"github.com/jhoicas/verifactu/pkg/verifactu"
)

// Options dependencias del caso de uso. Events y Reports son opcionales.
type Options struct {
	Book       *ledger.Book
	Dispatcher *dispatch.Dispatcher
	Events     repository.EventRepository
	Reports    ReportGenerator
	Clock      func() time.Time
	Logger     *logger.Logger
}

// UseCase orquesta la entrada de registros y las operaciones de administración de la cadena.
type UseCase struct {
	book       *ledger.Book
	dispatcher *dispatch.Dispatcher
	events     repository.EventRepository
	reports    ReportGenerator
	clock      func() time.Time
	log        *logger.Logger
}

// NewUseCase construye el caso de uso.
func NewUseCase(opts Options) *UseCase {
	uc := &UseCase{
		book:       opts.Book,
		dispatcher: opts.Dispatcher,
		events:     opts.Events,
		reports:    opts.Reports,
		clock:      opts.Clock,
		log:        opts.Logger,
	}
	if uc.clock == nil {
		uc.clock = time.Now
	}
	if uc.log == nil {
		uc.log = logger.Nop()
	}
	uc.log = uc.log.Component("records")
	return uc
}

// SubmitIssuance encola un registro de alta para el vendedor.
func (uc *UseCase) SubmitIssuance(ctx context.Context, seller string, req dto.IssuanceRequest) (*dto.EventResponse, error) {
	seller, err := sellerID(seller)
	if err != nil {
		return nil, err
	}
	rec, err := issuanceFromDTO(seller, req)
	if err != nil {
		return nil, err
	}
	return uc.submit(ctx, seller, rec)
}

// SubmitCancellation encola un registro de anulación para el vendedor.
func (uc *UseCase) SubmitCancellation(ctx context.Context, seller string, req dto.CancellationRequest) (*dto.EventResponse, error) {
	seller, err := sellerID(seller)
	if err != nil {
		return nil, err
	}
	rec, err := cancellationFromDTO(seller, req)
	if err != nil {
		return nil, err
	}
	return uc.submit(ctx, seller, rec)
}

func (uc *UseCase) submit(ctx context.Context, seller string, rec *entity.Record) (*dto.EventResponse, error) {
	ev := entity.NewPendingEvent(seller, rec)
	snap := snapshot(ev)
	if err := uc.dispatcher.Enqueue(seller, ev); err != nil {
		return nil, err
	}
	st, _ := uc.dispatcher.Status(ev.ID)
	if uc.events != nil {
		snap.EnqueuedAt = st.EnqueuedAt
		snap.UpdatedAt = st.EnqueuedAt
		if err := uc.events.Save(ctx, snap); err != nil {
			uc.log.Warn().Err(err).Str("event_id", ev.ID).Msg("no se pudo guardar el evento encolado")
		}
	}
	uc.log.Debug().Str("seller", seller).Str("event_id", ev.ID).Str("kind", string(rec.Kind)).Msg("registro encolado")
	return eventResponse(st), nil
}

// Resend vuelve a encolar un evento rechazado o fallido como reenvío.
func (uc *UseCase) Resend(_ context.Context, eventID string) (*dto.EventResponse, error) {
	cp, err := uc.dispatcher.Resend(eventID)
	if err != nil {
		return nil, err
	}
	st, _ := uc.dispatcher.Status(cp.ID)
	return eventResponse(st), nil
}

// GetEvent estado del evento: primero en memoria, después en la base de datos.
func (uc *UseCase) GetEvent(ctx context.Context, eventID string) (*dto.EventResponse, error) {
	if st, ok := uc.dispatcher.Status(eventID); ok {
		return eventResponse(st), nil
	}
	if uc.events == nil {
		return nil, domain.ErrNotFound
	}
	ev, err := uc.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, domain.ErrNotFound
	}
	return eventResponse(dispatch.StatusOf(ev)), nil
}

// ListEvents histórico persistido de eventos del vendedor.
func (uc *UseCase) ListEvents(ctx context.Context, seller string, page dto.PageRequest) ([]dto.EventResponse, error) {
	if uc.events == nil {
		return nil, fmt.Errorf("%w: persistencia de eventos deshabilitada", domain.ErrUnavailable)
	}
	seller, err := sellerID(seller)
	if err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, err := uc.events.ListBySeller(ctx, seller, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EventResponse, 0, len(list))
	for _, ev := range list {
		out = append(out, *eventResponse(dispatch.StatusOf(ev)))
	}
	return out, nil
}

// ChainHead cabeza de la cadena del vendedor.
func (uc *UseCase) ChainHead(seller string) (*dto.ChainHeadResponse, error) {
	seller, err := sellerID(seller)
	if err != nil {
		return nil, err
	}
	l, ok := uc.book.Existing(seller)
	if !ok {
		return nil, fmt.Errorf("%w: cadena del vendedor %s", domain.ErrNotFound, seller)
	}
	out := headResponse(seller, l.Head())
	out.PendingWrites = l.Pending()
	out.QueuedEvents = uc.dispatcher.Queued(seller)
	if err := l.Fault(); err != nil {
		out.Fault = err.Error()
	}
	return &out, nil
}

// LedgerFault error de escritura pendiente en la cadena del vendedor, o nil.
// Un vendedor sin cadena todavía no tiene fallo.
func (uc *UseCase) LedgerFault(seller string) error {
	seller, err := sellerID(seller)
	if err != nil {
		return err
	}
	l, ok := uc.book.Existing(seller)
	if !ok {
		return nil
	}
	return l.Fault()
}

// ReloadChain vuelve a leer la cadena del vendedor desde disco y limpia el fallo.
func (uc *UseCase) ReloadChain(seller string) (*dto.ChainHeadResponse, error) {
	id, err := sellerID(seller)
	if err != nil {
		return nil, err
	}
	if err := uc.book.Reload(id); err != nil {
		return nil, err
	}
	return uc.ChainHead(id)
}

// RollbackHead deshace el último eslabón si su huella coincide con la indicada.
// Solo un paso: tras deshacer, hace falta un alta nueva para poder volver a hacerlo.
func (uc *UseCase) RollbackHead(_ context.Context, seller, huella string) (*dto.RollbackResponse, error) {
	seller, err := sellerID(seller)
	if err != nil {
		return nil, err
	}
	if huella == "" {
		return nil, fmt.Errorf("%w: la huella del último eslabón es obligatoria", domain.ErrInvalidInput)
	}
	l, ok := uc.book.Existing(seller)
	if !ok {
		return nil, fmt.Errorf("%w: cadena del vendedor %s", domain.ErrNotFound, seller)
	}
	head := l.Head()
	rec := head.Record
	if rec == nil {
		// Cabeza hidratada desde disco: basta la huella para identificarla.
		rec = &entity.Record{Huella: head.Huella, LinkID: head.LinkID, ID: head.ID}
	}
	if rec.Huella != huella {
		return nil, fmt.Errorf("%w: la huella no corresponde al eslabón %d", domain.ErrNotHead, head.LinkID)
	}
	if err := l.Delete(rec); err != nil {
		return nil, err
	}
	uc.log.Warn().Str("seller", seller).Uint64("link_id", head.LinkID).Str("huella", huella).Msg("último eslabón deshecho por administración")
	return &dto.RollbackResponse{
		RemovedLinkID: head.LinkID,
		RemovedHuella: head.Huella,
		Head:          headResponse(seller, l.Head()),
	}, nil
}

// Verify recalcula todas las huellas del vendedor.
func (uc *UseCase) Verify(seller string) (*dto.VerifyResponse, error) {
	seller, err := sellerID(seller)
	if err != nil {
		return nil, err
	}
	if _, ok := uc.book.Existing(seller); !ok {
		return nil, fmt.Errorf("%w: cadena del vendedor %s", domain.ErrNotFound, seller)
	}
	rep, err := uc.book.Verify(seller)
	if err != nil {
		return nil, err
	}
	out := &dto.VerifyResponse{
		SellerID:   seller,
		OK:         rep.OK(),
		Periods:    rep.Periods,
		Links:      rep.Links,
		LastLinkID: rep.LastLinkID,
		LastHuella: rep.LastHuella,
	}
	for _, b := range rep.Breaks {
		out.Breaks = append(out.Breaks, b.Error())
	}
	return out, nil
}

// LedgerReport PDF del archivo mensual del vendedor.
func (uc *UseCase) LedgerReport(ctx context.Context, seller, period string) ([]byte, error) {
	if uc.reports == nil {
		return nil, fmt.Errorf("%w: generador de informes no configurado", domain.ErrUnavailable)
	}
	seller, err := sellerID(seller)
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse(entity.PeriodLayout, period); err != nil {
		return nil, fmt.Errorf("%w: periodo %q (AAAAMM)", domain.ErrInvalidInput, period)
	}
	entries, err := uc.book.Entries(seller, period)
	if err != nil {
		return nil, err
	}
	rep, err := uc.book.Verify(seller)
	if err != nil {
		return nil, err
	}
	data := ReportData{
		SellerID:    seller,
		Period:      period,
		Entries:     entries,
		ChainOK:     rep.OK(),
		GeneratedAt: uc.clock(),
	}
	for _, b := range rep.Breaks {
		data.Breaks = append(data.Breaks, b.Error())
	}
	return uc.reports.GenerateLedgerPDF(ctx, data)
}

func sellerID(raw string) (string, error) {
	nif := verifactu.NormalizeNIF(raw)
	if err := verifactu.ValidateNIF(nif); err != nil {
		return "", errors.Join(domain.ErrInvalidInput, err)
	}
	return nif, nil
}
