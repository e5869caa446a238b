package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/verifactu"
	"github.com/jhoicas/verifactu/pkg/logger"
	pkgverifactu "github.com/jhoicas/verifactu/pkg/verifactu"
)

// QueueOptions configuración común a las colas de todos los vendedores.
type QueueOptions struct {
	Chain       func(seller string) (Chain, error)
	Sender      *Sender
	Validator   Validator // nil = sin validación de negocio
	DefaultWait time.Duration
	MaxBatch    int
	Clock       func() time.Time
	OnEvent     func(*entity.PendingEvent) // postproceso por evento tras conciliar
	Logger      *logger.Logger
}

// Queue cola FIFO de eventos pendientes de un vendedor y su estado de espera.
// El cerrojo protege la cola y el estado de espera; el envío se hace sin él.
type Queue struct {
	mu         sync.Mutex
	seller     string
	items      []*entity.PendingEvent
	lastSendAt time.Time
	wait       time.Duration

	// Serializa CommitAndSend del vendedor sin bloquear Enqueue.
	sendMu sync.Mutex

	maxBatch  int
	clock     func() time.Time
	chain     Chain
	sender    *Sender
	validator Validator
	onEvent   func(*entity.PendingEvent)
	log       *logger.Logger
}

// NewQueue crea la cola del vendedor.
func NewQueue(seller string, opts QueueOptions) (*Queue, error) {
	if seller == "" {
		return nil, domain.ErrEmptyKey
	}
	if opts.Chain == nil || opts.Sender == nil {
		return nil, errors.New("dispatch: Chain y Sender son obligatorios")
	}
	chain, err := opts.Chain(seller)
	if err != nil {
		return nil, err
	}
	q := &Queue{
		seller:    seller,
		wait:      opts.DefaultWait,
		maxBatch:  opts.MaxBatch,
		clock:     opts.Clock,
		chain:     chain,
		sender:    opts.Sender,
		validator: opts.Validator,
		onEvent:   opts.OnEvent,
		log:       opts.Logger,
	}
	if q.wait <= 0 {
		q.wait = pkgverifactu.DefaultWaitSeconds * time.Second
	}
	if q.maxBatch <= 0 || q.maxBatch > pkgverifactu.MaxBatchSize {
		q.maxBatch = pkgverifactu.MaxBatchSize
	}
	if q.clock == nil {
		q.clock = time.Now
	}
	if q.log == nil {
		q.log = logger.Nop()
	}
	q.log = q.log.Component("queue").Seller(seller)
	return q, nil
}

// Seller identificador del vendedor.
func (q *Queue) Seller() string { return q.seller }

// Enqueue valida el evento y lo añade al final de la cola.
func (q *Queue) Enqueue(ev *entity.PendingEvent) error {
	return q.enqueue(ev, nil)
}

// enqueue ejecuta added con el cerrojo tomado: nadie puede extraer el evento antes.
func (q *Queue) enqueue(ev *entity.PendingEvent, added func(*entity.PendingEvent)) error {
	if ev == nil || ev.Record == nil {
		return fmt.Errorf("%w: evento sin registro", domain.ErrInvalidInput)
	}
	if ev.SellerID != q.seller {
		return fmt.Errorf("%w: evento del vendedor %q en la cola de %q", domain.ErrInvalidInput, ev.SellerID, q.seller)
	}
	if ev.Posted {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyPosted, ev.ID)
	}
	if ev.Committed && !ev.Resend {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyCommitted, ev.ID)
	}
	if err := verifactu.CheckVariant(ev.Record); err != nil {
		return err
	}
	if q.validator != nil {
		if err := q.validator.Validate(ev.Record); err != nil {
			return err
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	ev.EnqueuedAt = q.clock()
	q.items = append(q.items, ev)
	if added != nil {
		added(ev)
	}
	return nil
}

// Len eventos en cola.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Throttle último envío correcto y espera vigente.
func (q *Queue) Throttle() (lastSendAt time.Time, wait time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSendAt, q.wait
}

// EligibleAt momento a partir del cual se puede volver a enviar.
func (q *Queue) EligibleAt() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSendAt.Add(q.wait)
}

// Eligible se puede enviar: ha pasado la espera o la cola llega al máximo por remisión.
func (q *Queue) Eligible() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.clock().Before(q.lastSendAt.Add(q.wait)) || len(q.items) >= q.maxBatch
}

// ExtractBatch saca hasta maxBatch eventos. Envíos y reenvíos no pueden ir en la misma
// remisión: si hay mezcla se envían los ordinarios y los reenvíos vuelven al frente de la
// cola; si solo hay reenvíos, se envían. Un evento ya remitido aquí es un error de lógica:
// se registra y se descarta.
func (q *Queue) ExtractBatch() (toSend, toRequeue []*entity.PendingEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n > q.maxBatch {
		n = q.maxBatch
	}
	taken := q.items[:n]
	rest := q.items[n:]

	var ordinary, retries []*entity.PendingEvent
	for _, ev := range taken {
		switch {
		case ev.Posted:
			q.log.Error().Str("event_id", ev.ID).Msg("evento ya remitido en la cola, se descarta")
		case ev.Resend:
			retries = append(retries, ev)
		default:
			ordinary = append(ordinary, ev)
		}
	}

	if len(ordinary) > 0 {
		toSend, toRequeue = ordinary, retries
	} else {
		toSend = retries
	}
	items := make([]*entity.PendingEvent, 0, len(toRequeue)+len(rest))
	items = append(items, toRequeue...)
	q.items = append(items, rest...)
	return toSend, toRequeue
}

// CommitAndSend encadena los registros aún no comprometidos con una sola llamada a
// InsertBatch, los escribe en disco y envía la remisión. Si el envío va bien actualiza
// la espera con la que comunica la AEAT; si falla la deja como estaba y no deshace la
// cadena: los eventos quedan comprometidos y pendientes de un reenvío explícito.
func (q *Queue) CommitAndSend(ctx context.Context, toSend []*entity.PendingEvent) (*Response, error) {
	if len(toSend) == 0 {
		return nil, nil
	}
	q.sendMu.Lock()
	defer q.sendMu.Unlock()

	if err := q.commit(toSend); err != nil {
		return nil, err
	}

	resp, err := q.sender.Send(ctx, toSend)
	now := q.clock()
	if err != nil {
		q.fail(toSend, entity.OutcomeTransportError, err, now)
		q.log.Error().Err(err).Int("eventos", len(toSend)).Msg("fallo en la remisión, espera sin cambios")
		return nil, err
	}

	q.mu.Lock()
	q.lastSendAt = now
	if resp.WaitReported && resp.WaitSeconds >= 0 {
		q.wait = time.Duration(resp.WaitSeconds) * time.Second
	}
	q.mu.Unlock()

	sum := Reconcile(resp, toSend, now, q.onEvent)
	q.log.Info().
		Int("correctos", sum.Correct).
		Int("aceptados_con_errores", sum.AcceptedWithErrors).
		Int("incorrectos", sum.Incorrect).
		Int("sin_respuesta", sum.Unmatched).
		Msg("remisión conciliada")
	return resp, nil
}

// Fault fallo de escritura pendiente en la cadena del vendedor, o nil.
func (q *Queue) Fault() error {
	return q.chain.Fault()
}

// commit encadena y escribe. Es el punto sin retorno: las huellas quedan fijadas.
// Con la cadena inconsistente no sale ninguna remisión del vendedor.
//
// Un registro con huella y sin Committed, con la cadena sana, se escribió antes de un
// fallo que sobrevivió a la recarga: ya está en disco y no se vuelve a encadenar.
func (q *Queue) commit(events []*entity.PendingEvent) error {
	if err := q.chain.Fault(); err != nil {
		q.fail(events, entity.OutcomeTransportError, err, q.clock())
		return err
	}
	var pending []*entity.PendingEvent
	var records []*entity.Record
	for _, ev := range events {
		switch {
		case ev.Committed:
		case ev.Record.Chained():
			ev.Committed = true
		default:
			pending = append(pending, ev)
			records = append(records, ev.Record)
		}
	}
	if len(records) == 0 {
		return nil
	}
	entries, insertErr := q.chain.InsertBatch(records)
	if err := q.chain.Write(); err != nil {
		q.fail(events, entity.OutcomeTransportError, err, q.clock())
		return err
	}
	for i := range entries {
		pending[i].Committed = true
	}
	if insertErr != nil {
		q.fail(events, entity.OutcomeIncorrect, insertErr, q.clock())
		return insertErr
	}
	q.log.Debug().Int("eslabones", len(entries)).Uint64("hasta", entries[len(entries)-1].LinkID).Msg("registros encadenados")
	return nil
}

func (q *Queue) fail(events []*entity.PendingEvent, outcome string, err error, now time.Time) {
	for _, ev := range events {
		ev.Outcome = outcome
		ev.ErrorCode = ""
		ev.ErrorText = err.Error()
		ev.UpdatedAt = now
		if q.onEvent != nil {
			q.onEvent(ev)
		}
	}
}
