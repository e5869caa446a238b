package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
)

type hookRecorder struct {
	mu     sync.Mutex
	sent   [][]*entity.PendingEvent
	failed []error
}

func (r *hookRecorder) hooks() dispatch.Hooks {
	return dispatch.Hooks{
		OnBatchSent: func(events []*entity.PendingEvent, resp *dispatch.Response) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.sent = append(r.sent, events)
		},
		OnBatchFailed: func(events []*entity.PendingEvent, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.failed = append(r.failed, err)
		},
	}
}

func (r *hookRecorder) counts() (sent, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent), len(r.failed)
}

func TestDispatcher_TickEnviaColasElegibles(t *testing.T) {
	h := newHarness(t, 60, 0)
	rec := &hookRecorder{}
	d := dispatch.NewDispatcher(h.queues, rec.hooks(), time.Second, nil)

	a := event(seller, "A-1")
	b := event("B12345674", "B-1")
	require.NoError(t, d.Enqueue(seller, a))
	require.NoError(t, d.Enqueue("B12345674", b))

	st, ok := d.Status(a.ID)
	require.True(t, ok)
	assert.Equal(t, dispatch.StatePending, st.State)

	d.Tick(context.Background())
	sent, failed := rec.counts()
	assert.Equal(t, 2, sent, "una remisión por vendedor")
	assert.Zero(t, failed)
	assert.Zero(t, d.Pending())

	st, _ = d.Status(a.ID)
	assert.Equal(t, dispatch.StatePosted, st.State)
	assert.Equal(t, uint64(1), st.LinkID)
	assert.Equal(t, a.Record.Huella, st.Huella)
	assert.Equal(t, entity.OutcomeCorrect, st.Outcome)

	// Dentro de la espera no se envía.
	require.NoError(t, d.Enqueue(seller, event(seller, "A-2")))
	d.Tick(context.Background())
	assert.Equal(t, 1, d.Pending())

	h.clock.Advance(60 * time.Second)
	d.Tick(context.Background())
	assert.Zero(t, d.Pending())
	assert.Equal(t, uint64(2), h.linkID(t, seller))
}

func TestDispatcher_FalloNotificaYPermiteReenvio(t *testing.T) {
	h := newHarness(t, 0, 0)
	rec := &hookRecorder{}
	d := dispatch.NewDispatcher(h.queues, rec.hooks(), time.Second, nil)

	a := event(seller, "A-1")
	require.NoError(t, d.Enqueue(seller, a))
	h.transport.SetFail(errors.New("timeout"))
	d.Tick(context.Background())

	sent, failed := rec.counts()
	assert.Zero(t, sent)
	assert.Equal(t, 1, failed)
	st, _ := d.Status(a.ID)
	assert.Equal(t, dispatch.StateFailed, st.State)
	assert.True(t, st.Committed)

	h.transport.SetFail(nil)
	retry, err := d.Resend(a.ID)
	require.NoError(t, err)
	assert.True(t, retry.Resend)
	assert.Same(t, a.Record, retry.Record)

	_, err = d.Resend(a.ID)
	assert.ErrorIs(t, err, domain.ErrNotResendable, "solo se reenvía una vez")

	d.Tick(context.Background())
	st, ok := d.Status(retry.ID)
	require.True(t, ok)
	assert.Equal(t, dispatch.StatePosted, st.State)
	assert.Equal(t, uint64(1), h.linkID(t, seller), "el reenvío no añade eslabones")
}

func TestDispatcher_RechazoDelServidorVaPorLaRutaDeExito(t *testing.T) {
	h := newHarness(t, 0, 0)
	h.serializer.Reject("A-1", "factura duplicada")
	rec := &hookRecorder{}
	d := dispatch.NewDispatcher(h.queues, rec.hooks(), time.Second, nil)

	a := event(seller, "A-1")
	require.NoError(t, d.Enqueue(seller, a))
	d.Tick(context.Background())

	sent, failed := rec.counts()
	assert.Equal(t, 1, sent)
	assert.Zero(t, failed)
	st, _ := d.Status(a.ID)
	assert.Equal(t, dispatch.StateRejected, st.State)
	assert.Equal(t, "factura duplicada", st.ErrorText)

	_, err := d.Resend("no-existe")
	assert.ErrorIs(t, err, domain.ErrNotResendable)
}

func TestDispatcher_NoSolapaPasadas(t *testing.T) {
	h := newHarness(t, 0, 0)
	h.transport.entered = make(chan struct{})
	h.transport.release = make(chan struct{})
	d := dispatch.NewDispatcher(h.queues, dispatch.Hooks{}, time.Second, nil)
	require.NoError(t, d.Enqueue(seller, event(seller, "A-1")))

	done := make(chan struct{})
	go func() {
		d.Tick(context.Background())
		close(done)
	}()
	<-h.transport.entered

	require.NoError(t, d.Enqueue(seller, event(seller, "A-2")))
	d.Tick(context.Background()) // se omite: la anterior sigue en curso
	assert.Equal(t, 1, h.transport.Calls())
	assert.Equal(t, 1, d.Pending())

	close(h.transport.release)
	<-done
}

func TestDispatcher_ApagadoDrenaYRechazaNuevosEventos(t *testing.T) {
	h := newHarness(t, 0, 2)
	d := dispatch.NewDispatcher(h.queues, dispatch.Hooks{}, 10*time.Millisecond, nil)
	for _, s := range []string{"A-1", "A-2", "A-3", "A-4", "A-5"} {
		require.NoError(t, d.Enqueue(seller, event(seller, s)))
	}

	err := d.Stop()
	assert.ErrorIs(t, err, domain.ErrPendingEvents)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.RequestShutdown(ctx))
	assert.Zero(t, d.Pending())
	assert.Equal(t, uint64(5), h.linkID(t, seller))
	assert.Equal(t, 3, h.transport.Calls(), "lotes de 2, 2 y 1")

	assert.ErrorIs(t, d.Enqueue(seller, event(seller, "A-6")), domain.ErrShuttingDown)
	assert.NoError(t, d.Stop())
}

func TestDispatcher_TemporizadorEnSegundoPlano(t *testing.T) {
	h := newHarness(t, 0, 0)
	rec := &hookRecorder{}
	d := dispatch.NewDispatcher(h.queues, rec.hooks(), 10*time.Millisecond, nil)
	d.Start(context.Background())

	a := event(seller, "A-1")
	require.NoError(t, d.Enqueue(seller, a))
	require.Eventually(t, func() bool {
		st, _ := d.Status(a.ID)
		return st.State == dispatch.StatePosted
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.Enqueue(seller, event(seller, "A-2")))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.RequestShutdown(ctx))
	assert.Zero(t, d.Pending())
	sent, _ := rec.counts()
	assert.Equal(t, 2, sent)
}

func TestDispatcher_DrenajeInterrumpidoPorContexto(t *testing.T) {
	h := newHarness(t, 60, 0)
	d := dispatch.NewDispatcher(h.queues, dispatch.Hooks{}, 10*time.Millisecond, nil)
	require.NoError(t, d.Enqueue(seller, event(seller, "A-1")))
	d.Tick(context.Background())
	require.NoError(t, d.Enqueue(seller, event(seller, "A-2")))

	// La espera de 60 s del reloj manual no vence: el drenaje no termina.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.RequestShutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, d.Pending())
}

func TestDispatcher_CadenaInconsistenteNoRemite(t *testing.T) {
	h := newHarness(t, 0, 0)
	rec := &hookRecorder{}
	d := dispatch.NewDispatcher(h.queues, rec.hooks(), time.Second, nil)
	ctx := context.Background()

	a := event(seller, "A-1")
	require.NoError(t, d.Enqueue(seller, a))
	h.files.FailAfter(0, errors.New("disco lleno"))
	d.Tick(ctx)

	assert.Zero(t, h.transport.Calls())
	st, _ := d.Status(a.ID)
	assert.Equal(t, dispatch.StateFailed, st.State)
	assert.False(t, st.Committed)
	assert.True(t, a.Record.Chained(), "la huella sigue en memoria hasta la recarga")

	_, err := d.Resend(a.ID)
	assert.ErrorIs(t, err, domain.ErrLedgerInconsistent)

	// Un reenvío ya comprometido tampoco sale con la cadena inconsistente.
	stale := resendEvent(seller, "A-0")
	require.NoError(t, d.Enqueue(seller, stale))
	d.Tick(ctx)
	assert.Zero(t, h.transport.Calls())
	st, _ = d.Status(stale.ID)
	assert.Equal(t, dispatch.StateFailed, st.State)
	_, failed := rec.counts()
	assert.Equal(t, 2, failed)

	// Tras recargar, el reenvío vuelve a encadenar y escribe antes de remitir.
	h.files.Heal()
	require.NoError(t, h.book.Reload(seller))
	assert.False(t, a.Record.Chained())

	retry, err := d.Resend(a.ID)
	require.NoError(t, err)
	assert.False(t, retry.Committed)
	d.Tick(ctx)

	st, _ = d.Status(retry.ID)
	assert.Equal(t, dispatch.StatePosted, st.State)
	assert.Equal(t, 1, h.transport.Calls())
	assert.Equal(t, uint64(1), h.linkID(t, seller))
	entries, err := h.book.Entries(seller, "202503")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, retry.Record.Huella, entries[0].Huella)
}

func TestDispatcher_ReenvioTrasEscrituraParcial(t *testing.T) {
	h := newHarness(t, 0, 0)
	d := dispatch.NewDispatcher(h.queues, dispatch.Hooks{}, time.Second, nil)
	ctx := context.Background()

	a := event(seller, "A-1")
	b := event(seller, "A-2")
	require.NoError(t, d.Enqueue(seller, a))
	require.NoError(t, d.Enqueue(seller, b))
	h.files.FailAfter(1, errors.New("disco lleno"))
	d.Tick(ctx)
	assert.Zero(t, h.transport.Calls())

	h.files.Heal()
	require.NoError(t, h.book.Reload(seller))
	assert.True(t, a.Record.Chained(), "A-1 llegó a disco")
	assert.False(t, b.Record.Chained())

	ra, err := d.Resend(a.ID)
	require.NoError(t, err)
	rb, err := d.Resend(b.ID)
	require.NoError(t, err)
	d.Tick(ctx)

	for _, ev := range []*entity.PendingEvent{ra, rb} {
		st, _ := d.Status(ev.ID)
		assert.Equal(t, dispatch.StatePosted, st.State, ev.Record.ID.SeriesNumber)
	}
	assert.Equal(t, uint64(1), a.Record.LinkID)
	assert.Equal(t, uint64(2), b.Record.LinkID)
	rep, err := h.book.Verify(seller)
	require.NoError(t, err)
	assert.True(t, rep.OK(), "%v", rep.Breaks)
	assert.Equal(t, 2, rep.Links)
}

func TestDispatcher_ApagadoSinEventosHuerfanos(t *testing.T) {
	h := newHarness(t, 0, 0)
	d := dispatch.NewDispatcher(h.queues, dispatch.Hooks{}, time.Millisecond, nil)
	d.Start(context.Background())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := d.Enqueue(seller, event(seller, fmt.Sprintf("G%d-%d", i, j))); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}(i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.RequestShutdown(ctx))
	wg.Wait()

	assert.Zero(t, d.Pending(), "todo evento aceptado se remite antes de parar")
	assert.Equal(t, uint64(accepted), h.linkID(t, seller))
}

func TestDispatcher_DrenajeInterrumpidoDetieneTemporizador(t *testing.T) {
	h := newHarness(t, 60, 0)
	d := dispatch.NewDispatcher(h.queues, dispatch.Hooks{}, 5*time.Millisecond, nil)
	require.NoError(t, d.Enqueue(seller, event(seller, "A-1")))
	d.Tick(context.Background())
	require.NoError(t, d.Enqueue(seller, event(seller, "A-2")))
	d.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.RequestShutdown(ctx), context.DeadlineExceeded)

	// Vence la espera: con el temporizador en marcha la cola se enviaría.
	h.clock.Advance(60 * time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, d.Pending())
	assert.Equal(t, 1, h.transport.Calls())
}
