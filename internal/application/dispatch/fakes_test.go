package dispatch_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/application/ledger"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/verifactu"
	"github.com/jhoicas/verifactu/internal/infrastructure/filestore"
	"github.com/jhoicas/verifactu/internal/testutil"
)

// echoSerializer codifica una línea por registro y responde Correcto salvo a las
// series marcadas como rechazadas.
type echoSerializer struct {
	mu      sync.Mutex
	reject  map[string]string
	wait    int
	headers []dispatch.Header
}

func newEchoSerializer(wait int) *echoSerializer {
	return &echoSerializer{reject: map[string]string{}, wait: wait}
}

func (s *echoSerializer) Reject(series, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject[series] = reason
}

func (s *echoSerializer) Accept(series string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reject, series)
}

func (s *echoSerializer) Headers() []dispatch.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dispatch.Header(nil), s.headers...)
}

func (s *echoSerializer) Marshal(h dispatch.Header, records []*entity.Record) ([]byte, error) {
	s.mu.Lock()
	s.headers = append(s.headers, h)
	s.mu.Unlock()
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.ExternalKey + "|" + r.ID.IssuerNIF + "|" + r.ID.SeriesNumber + "|" + string(r.Kind) + "\n")
	}
	return []byte(b.String()), nil
}

func (s *echoSerializer) Unmarshal(raw []byte) (*dispatch.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := &dispatch.Response{CSV: "CSV" + strconv.Itoa(len(raw)), Status: "Correcto", WaitSeconds: s.wait, WaitReported: true}
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		f := strings.Split(line, "|")
		if len(f) != 4 {
			return nil, errors.New("línea inválida")
		}
		l := dispatch.ResponseLine{ExternalKey: f[0], IssuerNIF: f[1], SeriesNumber: f[2], Kind: entity.RecordKind(f[3]), Outcome: entity.OutcomeCorrect}
		if reason, ok := s.reject[f[2]]; ok {
			l.Outcome = entity.OutcomeIncorrect
			l.ErrorCode = "1100"
			l.ErrorText = reason
			resp.Status = "ParcialmenteCorrecto"
		}
		resp.Lines = append(resp.Lines, l)
	}
	return resp, nil
}

// echoTransport devuelve la petición como respuesta. Puede fallar o bloquearse.
type echoTransport struct {
	mu      sync.Mutex
	calls   int
	fail    error
	entered chan struct{}
	release chan struct{}
}

func (t *echoTransport) Send(ctx context.Context, seller string, payload []byte) ([]byte, error) {
	t.mu.Lock()
	t.calls++
	fail := t.fail
	entered, release := t.entered, t.release
	t.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if fail != nil {
		return nil, fail
	}
	return payload, nil
}

func (t *echoTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *echoTransport) SetFail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = err
}

type memAudit struct {
	mu    sync.Mutex
	saved int
}

func (a *memAudit) Save(seller, batchID string, request, response []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved++
	return nil
}

// flakyFiles deja pasar un número de líneas y después falla al añadir al archivo mensual.
type flakyFiles struct {
	*filestore.LedgerFiles
	mu    sync.Mutex
	left  int
	fail  error
	armed bool
}

func (f *flakyFiles) FailAfter(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left, f.fail, f.armed = n, err, true
}

func (f *flakyFiles) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = false
}

func (f *flakyFiles) AppendEntry(seller, period string, entry entity.ChainEntry) error {
	f.mu.Lock()
	if f.armed {
		if f.left == 0 {
			f.mu.Unlock()
			return f.fail
		}
		f.left--
	}
	f.mu.Unlock()
	return f.LedgerFiles.AppendEntry(seller, period, entry)
}

type harness struct {
	clock      *testutil.Clock
	files      *flakyFiles
	book       *ledger.Book
	serializer *echoSerializer
	transport  *echoTransport
	audit      *memAudit
	opts       dispatch.QueueOptions
	queues     *dispatch.Queues
}

func newHarness(t *testing.T, wait int, maxBatch int) *harness {
	t.Helper()
	files, err := filestore.NewLedgerFiles(t.TempDir(), testutil.Madrid())
	require.NoError(t, err)
	h := &harness{
		clock:      testutil.NewClock(time.Date(2025, 3, 10, 9, 0, 0, 0, testutil.Madrid())),
		files:      &flakyFiles{LedgerFiles: files},
		serializer: newEchoSerializer(wait),
		transport:  &echoTransport{},
		audit:      &memAudit{},
	}
	lopts := ledger.Options{Files: h.files, Hasher: verifactu.MustDefaultHasher(), Location: testutil.Madrid(), Clock: h.clock.Now}
	h.book = ledger.NewBook(ledger.NewRegistry(lopts), lopts)
	h.opts = dispatch.QueueOptions{
		Chain: func(seller string) (dispatch.Chain, error) {
			return h.book.Ledger(seller)
		},
		Sender:      dispatch.NewSender(h.serializer, h.transport, h.audit, nil),
		DefaultWait: 60 * time.Second,
		MaxBatch:    maxBatch,
		Clock:       h.clock.Now,
	}
	h.queues = dispatch.NewQueues(h.opts)
	return h
}

func (h *harness) queue(t *testing.T, seller string) *dispatch.Queue {
	t.Helper()
	q, err := h.queues.GetOrCreate(seller)
	require.NoError(t, err)
	return q
}

func (h *harness) linkID(t *testing.T, seller string) uint64 {
	t.Helper()
	l, err := h.book.Ledger(seller)
	require.NoError(t, err)
	return l.CurrentLinkID()
}

func event(seller, series string) *entity.PendingEvent {
	return entity.NewPendingEvent(seller, testutil.Alta(seller, series))
}

func resendEvent(seller, series string) *entity.PendingEvent {
	ev := event(seller, series)
	ev.Resend = true
	ev.Committed = true
	return ev
}
