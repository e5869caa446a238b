package pdf_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/application/records"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/infrastructure/pdf"
	"github.com/jhoicas/verifactu/internal/testutil"
)

func TestGenerateLedgerPDF(t *testing.T) {
	g := pdf.NewMarotoLedgerReport(testutil.Madrid())
	data := records.ReportData{
		SellerID: testutil.SellerNIF,
		Period:   "202503",
		Entries: []entity.ChainEntry{
			{LinkID: 1, Timestamp: "2025-03-10T09:00:00+01:00", Huella: "3C464DAF61ACB827C65FDA19F352A4E3BDC2C640E9E9FC4CC058073F38F12F60", Kind: entity.RecordKindAlta, IssuerNIF: testutil.SellerNIF, SeriesNumber: "A-1", IssueDate: "01-03-2025"},
			{LinkID: 2, Timestamp: "2025-03-10T09:01:00+01:00", Huella: "F7B94CFD8924EDFF273501B01EE5153E4CE8F259766F88CF6ACB8935802A2B97", Kind: entity.RecordKindAnulacion, IssuerNIF: testutil.SellerNIF, SeriesNumber: "A-1", IssueDate: "01-03-2025"},
		},
		ChainOK:     true,
		GeneratedAt: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC),
	}

	out, err := g.GenerateLedgerPDF(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateLedgerPDF_CadenaRotaSinEslabones(t *testing.T) {
	g := pdf.NewMarotoLedgerReport(nil)
	out, err := g.GenerateLedgerPDF(context.Background(), records.ReportData{
		SellerID: testutil.SellerNIF,
		Period:   "202502",
		Breaks:   []string{"eslabón 4: la huella no coincide con su entrada canónica"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateLedgerPDF_ContextoCancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pdf.NewMarotoLedgerReport(nil).GenerateLedgerPDF(ctx, records.ReportData{})
	assert.ErrorIs(t, err, context.Canceled)
}
