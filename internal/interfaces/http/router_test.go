package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/application/dto"
	"github.com/jhoicas/verifactu/internal/application/ledger"
	"github.com/jhoicas/verifactu/internal/application/records"
	"github.com/jhoicas/verifactu/internal/domain/verifactu"
	"github.com/jhoicas/verifactu/internal/infrastructure/aeat"
	"github.com/jhoicas/verifactu/internal/infrastructure/filestore"
	"github.com/jhoicas/verifactu/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/verifactu/internal/interfaces/http"
	"github.com/jhoicas/verifactu/internal/testutil"
	pkgjwt "github.com/jhoicas/verifactu/pkg/jwt"
)

const altaBody = `{
	"series_number": "A-1",
	"issue_date": "01-03-2025",
	"issuer_name": "Empresa Pruebas SL",
	"invoice_type": "F1",
	"description": "Venta",
	"recipients": [{"name": "Cliente SA", "nif": "B12345674"}],
	"breakdown": [{"tax": "01", "regime_key": "01", "qualification": "S1", "rate": "21", "base": "100.00", "quota": "21.00"}],
	"tax_total": "21.00",
	"grand_total": "121.00"
}`

type apiFixture struct {
	app        *fiber.App
	dispatcher *dispatch.Dispatcher
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	files, err := filestore.NewLedgerFiles(t.TempDir(), testutil.Madrid())
	require.NoError(t, err)
	clock := testutil.NewClock(time.Date(2025, 3, 10, 9, 0, 0, 0, testutil.Madrid()))
	lopts := ledger.Options{Files: files, Hasher: verifactu.MustDefaultHasher(), Location: testutil.Madrid(), Clock: clock.Now}
	book := ledger.NewBook(ledger.NewRegistry(lopts), lopts)

	dev := aeat.NewDevClient()
	dev.WaitSeconds = 0
	queues := dispatch.NewQueues(dispatch.QueueOptions{
		Chain:  func(seller string) (dispatch.Chain, error) { return book.Ledger(seller) },
		Sender: dispatch.NewSender(aeat.NewXMLCodec(aeat.SystemInfo{NIF: "B12345674", Name: "Software Pruebas SL", SystemName: "verifactu-relay", SystemID: "01", Version: "1.0", InstallationNumber: "1"}), dev, nil, nil),
		Clock:  clock.Now,
	})
	d := dispatch.NewDispatcher(queues, dispatch.Hooks{}, time.Second, nil)
	uc := records.NewUseCase(records.Options{
		Book:       book,
		Dispatcher: d,
		Reports:    pdf.NewMarotoLedgerReport(testutil.Madrid()),
		Clock:      clock.Now,
	})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{RecordsUC: uc, JWTSecret: testJWTSecret})
	return &apiFixture{app: app, dispatcher: d}
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", token)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestRouter_AltaYConsulta(t *testing.T) {
	api := newAPI(t)
	emisor := tokenFor(t, pkgjwt.RoleEmisor, testSellerNIF)

	resp, raw := api.do(t, http.MethodPost, "/api/sellers/89890001K/invoices", emisor, altaBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(raw))
	var ev dto.EventResponse
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, dispatch.StatePending, ev.State)

	api.dispatcher.Tick(context.Background())

	resp, raw = api.do(t, http.MethodGet, "/api/events/"+ev.ID, emisor, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, dispatch.StatePosted, ev.State)
	assert.Equal(t, uint64(1), ev.LinkID)

	resp, raw = api.do(t, http.MethodGet, "/api/sellers/89890001K/chain", emisor, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var head dto.ChainHeadResponse
	require.NoError(t, json.Unmarshal(raw, &head))
	assert.Equal(t, ev.Huella, head.Huella)

	resp, _ = api.do(t, http.MethodGet, "/api/sellers/89890001K/ledger/202503/report", emisor, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	otro := tokenFor(t, pkgjwt.RoleEmisor, "B12345674")
	resp, _ = api.do(t, http.MethodGet, "/api/events/"+ev.ID, otro, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_EmisorNIFAjeno(t *testing.T) {
	api := newAPI(t)
	resp, raw := api.do(t, http.MethodPost, "/api/sellers/B12345674/invoices", tokenFor(t, pkgjwt.RoleEmisor, testSellerNIF), altaBody)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(raw), "FORBIDDEN")
}

func TestRouter_CuerpoYFechaInvalidos(t *testing.T) {
	api := newAPI(t)
	emisor := tokenFor(t, pkgjwt.RoleEmisor, testSellerNIF)

	resp, raw := api.do(t, http.MethodPost, "/api/sellers/89890001K/invoices", emisor, "{no json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "INVALID_BODY")

	body := strings.Replace(altaBody, "01-03-2025", "marzo", 1)
	resp, raw = api.do(t, http.MethodPost, "/api/sellers/89890001K/invoices", emisor, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "VALIDATION")
}

func TestRouter_AdministracionDeLaCadena(t *testing.T) {
	api := newAPI(t)
	emisor := tokenFor(t, pkgjwt.RoleEmisor, testSellerNIF)
	admin := tokenFor(t, pkgjwt.RoleAdmin, "")

	resp, _ := api.do(t, http.MethodPost, "/api/sellers/89890001K/invoices", emisor, altaBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	api.dispatcher.Tick(context.Background())

	resp, _ = api.do(t, http.MethodGet, "/api/sellers/89890001K/chain/verify", emisor, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw := api.do(t, http.MethodGet, "/api/sellers/89890001K/chain/verify", admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep dto.VerifyResponse
	require.NoError(t, json.Unmarshal(raw, &rep))
	assert.True(t, rep.OK)
	assert.Equal(t, 1, rep.Links)

	resp, raw = api.do(t, http.MethodDelete, "/api/sellers/89890001K/chain/head?huella=ABC", admin, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(raw), "NOT_HEAD")

	resp, raw = api.do(t, http.MethodDelete, "/api/sellers/89890001K/chain/head?huella="+rep.LastHuella, admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var out dto.RollbackResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, uint64(1), out.RemovedLinkID)
	assert.Zero(t, out.Head.LinkID)

	resp, _ = api.do(t, http.MethodGet, "/api/sellers/B12345674/chain", admin, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/api/sellers/89890001K/chain/reload", emisor, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw = api.do(t, http.MethodPost, "/api/sellers/89890001K/chain/reload", admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var head dto.ChainHeadResponse
	require.NoError(t, json.Unmarshal(raw, &head))
	assert.Empty(t, head.Fault)
}

func TestRouter_ReenvioNoPermitido(t *testing.T) {
	api := newAPI(t)
	emisor := tokenFor(t, pkgjwt.RoleEmisor, testSellerNIF)

	resp, raw := api.do(t, http.MethodPost, "/api/sellers/89890001K/invoices", emisor, altaBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ev dto.EventResponse
	require.NoError(t, json.Unmarshal(raw, &ev))
	api.dispatcher.Tick(context.Background())

	resp, raw = api.do(t, http.MethodPost, "/api/events/"+ev.ID+"/resend", emisor, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(raw), "NOT_RESENDABLE")

	resp, _ = api.do(t, http.MethodGet, "/api/sellers/89890001K/events", emisor, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
