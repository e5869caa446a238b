package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/registry"
	"github.com/jhoicas/verifactu/pkg/logger"
)

// DefaultTick intervalo por defecto entre pasadas del Dispatcher.
const DefaultTick = 5 * time.Second

// Queues una cola viva por vendedor.
type Queues = registry.Keyed[*Queue]

// NewQueues registro de colas con la configuración común.
func NewQueues(opts QueueOptions) *Queues {
	return registry.NewKeyed[*Queue](func(seller string) (*Queue, error) {
		return NewQueue(seller, opts)
	})
}

// Estados visibles de un evento.
const (
	StatePending  = "pendiente"
	StatePosted   = "remitido"
	StateRejected = "rechazado"
	StateFailed   = "fallido"
)

// Status foto del estado de un evento, segura para leer desde otras goroutines.
type Status struct {
	ID          string
	SellerID    string
	State       string
	Kind        entity.RecordKind
	Series      string
	Resend      bool
	Committed   bool
	Posted      bool
	LinkID      uint64
	Huella      string
	ExternalKey string
	Outcome     string
	ErrorCode   string
	ErrorText   string
	CSV         string
	EnqueuedAt  time.Time
	UpdatedAt   time.Time
}

// StatusOf foto del evento. Solo es segura si nadie más lo está modificando.
func StatusOf(ev *entity.PendingEvent) Status {
	st := Status{
		ID:          ev.ID,
		SellerID:    ev.SellerID,
		State:       StatePending,
		Kind:        ev.Record.Kind,
		Series:      ev.Record.ID.SeriesNumber,
		Resend:      ev.Resend,
		Committed:   ev.Committed,
		Posted:      ev.Posted,
		LinkID:      ev.Record.LinkID,
		Huella:      ev.Record.Huella,
		ExternalKey: ev.Record.ExternalKey,
		Outcome:     ev.Outcome,
		ErrorCode:   ev.ErrorCode,
		ErrorText:   ev.ErrorText,
		CSV:         ev.CSV,
		EnqueuedAt:  ev.EnqueuedAt,
		UpdatedAt:   ev.UpdatedAt,
	}
	switch {
	case ev.Outcome == entity.OutcomeTransportError:
		st.State = StateFailed
	case ev.Posted && ev.Rejected():
		st.State = StateRejected
	case ev.Posted:
		st.State = StatePosted
	case ev.Outcome != entity.OutcomeNone:
		st.State = StateRejected
	}
	return st
}

// Dispatcher único trabajador periódico del proceso: recorre las colas de todos los
// vendedores y envía las que son elegibles. Nunca hay dos pasadas a la vez.
type Dispatcher struct {
	queues *Queues
	hooks  Hooks
	tick   time.Duration
	log    *logger.Logger

	running      atomic.Bool
	shuttingDown atomic.Bool
	draining     atomic.Bool

	// Enqueue lo toma en lectura; el apagado, en escritura para cerrar la entrada.
	gate sync.RWMutex

	mu        sync.Mutex
	statuses  map[string]Status
	retryable map[string]*entity.PendingEvent

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewDispatcher crea el Dispatcher. tick <= 0 usa DefaultTick.
func NewDispatcher(queues *Queues, hooks Hooks, tick time.Duration, log *logger.Logger) *Dispatcher {
	if tick <= 0 {
		tick = DefaultTick
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		queues:    queues,
		hooks:     hooks,
		tick:      tick,
		log:       log.Component("dispatcher"),
		statuses:  make(map[string]Status),
		retryable: make(map[string]*entity.PendingEvent),
	}
}

// Enqueue añade el evento a la cola de su vendedor. Durante el apagado se rechaza.
func (d *Dispatcher) Enqueue(sellerID string, ev *entity.PendingEvent) error {
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.shuttingDown.Load() {
		return domain.ErrShuttingDown
	}
	if ev != nil && ev.SellerID == "" {
		ev.SellerID = sellerID
	}
	q, err := d.queues.GetOrCreate(sellerID)
	if err != nil {
		return err
	}
	return q.enqueue(ev, func(ev *entity.PendingEvent) {
		d.mu.Lock()
		d.statuses[ev.ID] = StatusOf(ev)
		d.mu.Unlock()
	})
}

// Resend encola una copia de reenvío de un evento rechazado o fallido.
func (d *Dispatcher) Resend(eventID string) (*entity.PendingEvent, error) {
	d.mu.Lock()
	ev, ok := d.retryable[eventID]
	if ok {
		delete(d.retryable, eventID)
	}
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotResendable, eventID)
	}
	cp := ev.ResendCopy()
	if err := d.enqueueResend(ev.SellerID, cp); err != nil {
		d.mu.Lock()
		d.retryable[eventID] = ev
		d.mu.Unlock()
		return nil, err
	}
	return cp, nil
}

// enqueueResend rechaza el reenvío mientras la cadena del vendedor espera una recarga:
// hasta entonces el registro compartido puede perder su huella.
func (d *Dispatcher) enqueueResend(sellerID string, ev *entity.PendingEvent) error {
	q, err := d.queues.GetOrCreate(sellerID)
	if err != nil {
		return err
	}
	if err := q.Fault(); err != nil {
		return err
	}
	return d.Enqueue(sellerID, ev)
}

// Status estado de un evento conocido por el Dispatcher.
func (d *Dispatcher) Status(eventID string) (Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.statuses[eventID]
	return st, ok
}

// Pending eventos en cola de todos los vendedores.
func (d *Dispatcher) Pending() int {
	n := 0
	d.queues.Each(func(_ string, q *Queue) { n += q.Len() })
	return n
}

// Queued eventos en cola de un vendedor.
func (d *Dispatcher) Queued(seller string) int {
	if q, ok := d.queues.Get(seller); ok {
		return q.Len()
	}
	return 0
}

// Start arranca el temporizador en segundo plano.
func (d *Dispatcher) Start(ctx context.Context) {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	if d.started {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.started = true
	go d.loop(ctx, d.done)
	d.log.Info().Dur("tick", d.tick).Msg("dispatcher iniciado")
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Un envío en curso termina aunque se pida el apagado.
			d.Tick(context.WithoutCancel(ctx))
		}
	}
}

// Tick una pasada sobre todas las colas. Si la anterior sigue en curso no hace nada.
func (d *Dispatcher) Tick(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		d.log.Debug().Msg("pasada anterior en curso, se omite")
		return
	}
	defer d.running.Store(false)

	d.queues.Each(func(seller string, q *Queue) {
		if q.Len() == 0 || !q.Eligible() {
			return
		}
		toSend, toRequeue := q.ExtractBatch()
		if len(toRequeue) > 0 {
			d.log.Debug().Str("seller", seller).Int("reenvios", len(toRequeue)).Msg("reenvíos devueltos a la cola")
		}
		if len(toSend) == 0 {
			return
		}
		d.process(ctx, q, toSend)
	})
}

// process es la frontera de errores: ningún fallo de una remisión detiene al resto.
func (d *Dispatcher) process(ctx context.Context, q *Queue, toSend []*entity.PendingEvent) {
	resp, err := q.CommitAndSend(ctx, toSend)
	d.track(toSend)
	if err != nil {
		d.log.Error().Err(err).Str("seller", q.Seller()).Int("eventos", len(toSend)).Msg("remisión fallida")
		if d.hooks.OnBatchFailed != nil {
			d.hooks.OnBatchFailed(toSend, err)
		}
		return
	}
	if d.hooks.OnBatchSent != nil {
		d.hooks.OnBatchSent(toSend, resp)
	}
}

func (d *Dispatcher) track(events []*entity.PendingEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ev := range events {
		d.statuses[ev.ID] = StatusOf(ev)
		if ev.Rejected() {
			d.retryable[ev.ID] = ev
		}
	}
}

// RequestShutdown deja de aceptar eventos, espera a que todas las colas se vacíen
// y detiene el temporizador. Los envíos en curso terminan. Si ctx vence antes del
// drenaje, el temporizador se detiene igualmente y los eventos quedan en cola.
func (d *Dispatcher) RequestShutdown(ctx context.Context) error {
	d.closeIntake()
	d.draining.Store(true)
	defer d.draining.Store(false)

	d.lifeMu.Lock()
	started := d.started
	d.lifeMu.Unlock()

	poll := d.tick / 5
	if poll <= 0 {
		poll = time.Millisecond
	}
	for d.Pending() > 0 {
		if !started {
			d.Tick(ctx)
		}
		select {
		case <-ctx.Done():
			d.halt()
			return fmt.Errorf("dispatch: drenaje interrumpido con %d eventos pendientes: %w", d.Pending(), ctx.Err())
		case <-time.After(poll):
		}
	}
	d.log.Info().Msg("colas vacías, deteniendo dispatcher")
	d.halt()
	return nil
}

// Stop detiene el temporizador. Falla si quedan eventos y no hay drenaje en curso.
func (d *Dispatcher) Stop() error {
	if n := d.Pending(); n > 0 && !d.draining.Load() {
		return fmt.Errorf("%w: %d", domain.ErrPendingEvents, n)
	}
	d.closeIntake()
	d.halt()
	return nil
}

// closeIntake espera a los Enqueue en curso: al volver, nada más entra en las colas.
func (d *Dispatcher) closeIntake() {
	d.gate.Lock()
	d.shuttingDown.Store(true)
	d.gate.Unlock()
}

func (d *Dispatcher) halt() {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	if !d.started {
		return
	}
	d.cancel()
	<-d.done
	d.started = false
	d.log.Info().Msg("dispatcher detenido")
}
