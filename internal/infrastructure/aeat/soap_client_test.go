package aeat_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/infrastructure/aeat"
)

func TestSOAPClient_Send(t *testing.T) {
	var gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("<ok/>"))
	}))
	defer srv.Close()

	c, err := aeat.NewSOAPClient(srv.URL, nil, time.Second)
	require.NoError(t, err)
	raw, err := c.Send(context.Background(), "89890001K", []byte("<peticion/>"))
	require.NoError(t, err)

	assert.Equal(t, "<ok/>", string(raw))
	assert.Equal(t, "<peticion/>", gotBody)
	assert.Equal(t, "text/xml; charset=utf-8", gotType)
}

func TestSOAPClient_Send_FaultConEstado500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<Fault/>"))
	}))
	defer srv.Close()

	c, err := aeat.NewSOAPClient(srv.URL, nil, time.Second)
	require.NoError(t, err)
	raw, err := c.Send(context.Background(), "89890001K", []byte("<peticion/>"))
	require.NoError(t, err, "el codec interpreta el Fault")
	assert.Equal(t, "<Fault/>", string(raw))
}

func TestSOAPClient_Send_EstadoInesperado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := aeat.NewSOAPClient(srv.URL, nil, time.Second)
	require.NoError(t, err)
	_, err = c.Send(context.Background(), "89890001K", []byte("<peticion/>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNewSOAPClient_SinURL(t *testing.T) {
	_, err := aeat.NewSOAPClient("", nil, 0)
	assert.Error(t, err)
	assert.Empty(t, aeat.URLFor(aeat.EnvDev))
	assert.NotEmpty(t, aeat.URLFor(aeat.EnvProd))
}

func TestLoadCertificate(t *testing.T) {
	cert, err := aeat.LoadCertificate("", "", "")
	require.NoError(t, err)
	assert.Nil(t, cert, "sin ruta no hay mTLS")

	_, err = aeat.LoadCertificate("no-existe.p12", "", "clave")
	assert.Error(t, err)
}
