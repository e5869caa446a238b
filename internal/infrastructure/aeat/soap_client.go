package aeat

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
)

// maxResponseBytes límite de lectura de la respuesta (1000 líneas caben de sobra).
const maxResponseBytes = 8 << 20

// SOAPClient envía la remisión al servicio VERI*FACTU con autenticación mTLS.
// Implementa dispatch.Transport.
type SOAPClient struct {
	httpClient *http.Client
	url        string
}

var _ dispatch.Transport = (*SOAPClient)(nil)

// NewSOAPClient construye el cliente. cert es el certificado de cliente (puede ser nil
// en pruebas contra un servidor local). El WS puede tardar en responder remisiones grandes.
func NewSOAPClient(url string, cert *tls.Certificate, timeout time.Duration) (*SOAPClient, error) {
	if url == "" {
		return nil, errors.New("soap: URL del servicio vacía")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cert != nil {
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		url:        url,
	}, nil
}

// Send publica el sobre SOAP y devuelve el cuerpo de la respuesta.
// Un 500 con cuerpo se devuelve tal cual: suele ser un SOAP Fault que interpreta el codec.
func (c *SOAPClient) Send(ctx context.Context, seller string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soap: timeout o cancelación (vendedor %s): %w", seller, ctx.Err())
		}
		return nil, fmt.Errorf("soap: llamada HTTP fallida (vendedor %s): %w", seller, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("soap: leer respuesta: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return raw, nil
	case resp.StatusCode == http.StatusInternalServerError && len(raw) > 0:
		return raw, nil
	default:
		return nil, fmt.Errorf("soap: estado HTTP %d", resp.StatusCode)
	}
}
