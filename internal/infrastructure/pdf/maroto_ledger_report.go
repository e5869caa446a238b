// Package pdf genera el informe mensual de la cadena de huellas de un vendedor.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: NIF del vendedor     │  Periodo + fecha del informe │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ESTADO: cadena íntegra / roturas detectadas                 │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Eslabón | Generado | Tipo | Factura | Huella         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: última huella del periodo                           │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/verifactu/internal/application/records"
	"github.com/jhoicas/verifactu/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 170, Green: 30, Blue: 30}
	colorOK      = &props.Color{Red: 20, Green: 120, Blue: 60}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoLedgerReport implementa records.ReportGenerator usando Maroto v2.
type MarotoLedgerReport struct {
	loc *time.Location
}

var _ records.ReportGenerator = (*MarotoLedgerReport)(nil)

// NewMarotoLedgerReport construye el generador. loc nil = UTC.
func NewMarotoLedgerReport(loc *time.Location) *MarotoLedgerReport {
	if loc == nil {
		loc = time.UTC
	}
	return &MarotoLedgerReport{loc: loc}
}

// GenerateLedgerPDF genera el PDF y devuelve sus bytes.
func (g *MarotoLedgerReport) GenerateLedgerPDF(ctx context.Context, data records.ReportData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Registro de eventos VERI*FACTU "+data.Period, true).
		WithAuthor(data.SellerID, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(data, g.loc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(statusRows(data)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(entryRows(data.Entries)...)

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(data.Entries)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(data records.ReportData, loc *time.Location) core.Row {
	generated := "-"
	if !data.GeneratedAt.IsZero() {
		generated = data.GeneratedAt.In(loc).Format(entity.SnapshotTimeLayout)
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New("CADENA DE REGISTROS DE FACTURACIÓN", props.Text{
				Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1,
			}),
			text.New("NIF: "+data.SellerID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("PERIODO", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(periodLabel(data.Period), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Generado: "+generated, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func statusRows(data records.ReportData) []core.Row {
	label, color := "Cadena íntegra: todas las huellas recalculadas coinciden", colorOK
	if !data.ChainOK {
		label, color = fmt.Sprintf("Cadena con %d rotura(s) detectada(s)", len(data.Breaks)), colorAlert
	}
	rows := []core.Row{
		row.New(12).Add(col.New(12).Add(
			text.New("ESTADO DE LA CADENA", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(label, props.Text{Style: fontstyle.Bold, Size: 9, Top: 6, Color: color}),
		)),
	}
	for _, b := range data.Breaks {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New(b, props.Text{Size: 7, Color: colorAlert, Top: 0.5, Left: 2}),
		)))
	}
	return rows
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("N.º", 1, align.Center),
		h("Generado", 3, align.Left),
		h("Tipo", 1, align.Center),
		h("Factura", 3, align.Left),
		h("Huella", 4, align.Left),
	)
}

// entryRows: una fila por eslabón, huella partida en dos líneas.
func entryRows(entries []entity.ChainEntry) []core.Row {
	if len(entries) == 0 {
		return []core.Row{row.New(8).Add(col.New(12).Add(
			text.New("Sin eslabones en el periodo", props.Text{
				Size: 8, Align: align.Center, Color: colorGray, Top: 2,
			}),
		))}
	}
	result := make([]core.Row, 0, len(entries))
	for _, e := range entries {
		huella := col.New(4)
		for i, chunk := range splitEvery(e.Huella, 32) {
			huella.Add(text.New(chunk, props.Text{
				Size: 6.5, Family: fontfamily.Courier, Top: 1 + float64(i)*3, Left: 1, Color: colorGray,
			}))
		}
		result = append(result, row.New(9).Add(
			col.New(1).Add(text.New(
				strconv.FormatUint(e.LinkID, 10),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(3).Add(text.New(
				e.Timestamp,
				props.Text{Size: 7, Top: 1, Left: 1},
			)),
			col.New(1).Add(text.New(
				kindLabel(e.Kind),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(3).Add(
				text.New(nonEmpty(e.SeriesNumber, "-"), props.Text{Size: 8, Top: 1, Left: 1}),
				text.New(e.IssueDate, props.Text{Size: 7, Top: 5, Left: 1, Color: colorGray}),
			),
			huella,
		))
	}
	return result
}

// footerRows: huella del último eslabón del periodo.
func footerRows(entries []entity.ChainEntry) []core.Row {
	if len(entries) == 0 {
		return nil
	}
	last := entries[len(entries)-1]
	return []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("ÚLTIMA HUELLA DEL PERIODO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New(fmt.Sprintf("Eslabón %d · %s", last.LinkID, last.Timestamp), props.Text{
				Size: 8, Color: colorGray, Top: 0.5, Left: 2,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New(last.Huella, props.Text{
				Size: 7, Family: fontfamily.Courier, Top: 0.5, Left: 2,
			}),
		)),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func kindLabel(k entity.RecordKind) string {
	if k == entity.RecordKindAnulacion {
		return "Anul."
	}
	return "Alta"
}

// periodLabel "202503" → "03/2025".
func periodLabel(p string) string {
	t, err := time.Parse(entity.PeriodLayout, p)
	if err != nil {
		return p
	}
	return t.Format("01/2006")
}

// splitEvery divide s en trozos de max n caracteres.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
