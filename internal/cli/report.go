package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/verifactu/internal/application/records"
	"github.com/jhoicas/verifactu/internal/infrastructure/pdf"
)

// NewReportCommand report: PDF del archivo mensual de un vendedor.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var seller, period, out string
	cmd := &cobra.Command{
		Use:           "report",
		Short:         "Genera el informe PDF de un periodo",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			env, err := rootOpts.openLedger()
			if err != nil {
				return err
			}
			if seller == "" || period == "" {
				return NewExitError(ExitCommandError, "--seller y --period son obligatorios")
			}
			if out == "" {
				out = fmt.Sprintf("cadena-%s-%s.pdf", seller, period)
			}
			uc := records.NewUseCase(records.Options{
				Book:    env.book,
				Reports: pdf.NewMarotoLedgerReport(env.loc),
			})
			doc, err := uc.LedgerReport(context.Background(), seller, period)
			if err != nil {
				return WrapExitError(ExitCommandError, "generar informe", err)
			}
			if err := os.WriteFile(out, doc, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "escribir "+out, err)
			}
			data := map[string]any{"file": out, "bytes": len(doc)}
			return f.Result(true, data, func(w io.Writer) {
				fmt.Fprintf(w, "✓ informe escrito en %s (%d bytes)\n", out, len(doc))
			})
		},
	}
	cmd.Flags().StringVar(&seller, "seller", "", "NIF del vendedor")
	cmd.Flags().StringVar(&period, "period", "", "periodo AAAAMM")
	cmd.Flags().StringVarP(&out, "out", "o", "", "archivo de salida")
	return cmd
}
