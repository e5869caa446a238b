// Package cli comandos de operación de la cadena de huellas: verificación, informe,
// emisión de tokens y comprobación de certificados.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/verifactu/internal/application/ledger"
	"github.com/jhoicas/verifactu/internal/domain/verifactu"
	"github.com/jhoicas/verifactu/internal/infrastructure/filestore"
	"github.com/jhoicas/verifactu/pkg/config"
)

// RootOptions flags globales de todos los comandos.
type RootOptions struct {
	Format   string // "json" | "text"
	Root     string
	Timezone string
	Verbose  bool

	cfg *config.Config
}

// ValidFormats formatos de salida admitidos.
var ValidFormats = []string{"text", "json"}

// NewRootCommand comando raíz de la CLI. cfg aporta los valores por defecto de los flags.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	opts := &RootOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "verifactu",
		Short: "Operación de la cadena VERI*FACTU",
		Long:  "Herramientas de operador: verificar la cadena en disco, generar informes, emitir tokens y revisar certificados.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("formato %q no válido: debe ser uno de %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "formato de salida (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", cfg.Verifactu.LedgerRoot, "directorio raíz de la cadena")
	cmd.PersistentFlags().StringVar(&opts.Timezone, "tz", cfg.Verifactu.Timezone, "zona horaria de las marcas de tiempo")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "salida detallada")

	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewCertCheckCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// ledgerEnv archivos y libro de cadenas del directorio raíz, sin cargar nada en memoria.
type ledgerEnv struct {
	files  *filestore.LedgerFiles
	hasher *verifactu.Hasher
	book   *ledger.Book
	loc    *time.Location
}

func (o *RootOptions) openLedger() (*ledgerEnv, error) {
	if o.Root == "" {
		return nil, NewExitError(ExitCommandError, "falta --root (o VERIFACTU_LEDGER_ROOT)")
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "zona horaria", err)
	}
	hasher, err := verifactu.NewHasher(o.cfg.Verifactu.HashAlgorithm, o.cfg.Verifactu.HashEncoding)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "calculador de huella", err)
	}
	files, err := filestore.NewLedgerFiles(o.Root, loc)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "directorio de la cadena", err)
	}
	lopts := ledger.Options{Files: files, Hasher: hasher, Location: loc}
	return &ledgerEnv{
		files:  files,
		hasher: hasher,
		book:   ledger.NewBook(ledger.NewRegistry(lopts), lopts),
		loc:    loc,
	}, nil
}
