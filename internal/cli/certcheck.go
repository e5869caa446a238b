package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/verifactu/internal/infrastructure/aeat"
)

// NewCertCheckCommand cert-check: comprueba que el certificado de la AEAT se puede cargar.
func NewCertCheckCommand(rootOpts *RootOptions) *cobra.Command {
	vf := rootOpts.cfg.Verifactu
	certPath, keyPath, password := vf.CertPath, vf.CertKeyPath, vf.CertPassword
	cmd := &cobra.Command{
		Use:   "cert-check",
		Short: "Diagnóstico del certificado de cliente (.p12 o PEM)",
		Long: `Lee el certificado con la misma lógica que el servicio: PKCS#12 con contraseña
o par certificado/llave PEM. Muestra titular, emisor y validez; falla si ha caducado.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if certPath == "" {
				return NewExitError(ExitCommandError, "falta --cert (o VERIFACTU_CERT_PATH)")
			}
			f.VerboseLog("leyendo %s", certPath)
			cert, err := aeat.LoadCertificate(certPath, keyPath, password)
			if err != nil {
				return WrapExitError(ExitFailure, "certificado o contraseña inválidos", err)
			}
			info, err := aeat.Describe(*cert)
			if err != nil {
				return WrapExitError(ExitFailure, "certificado ilegible", err)
			}
			expired := info.Expired(time.Now())
			if err := f.Result(!expired, info, func(w io.Writer) {
				fmt.Fprintf(w, "titular:  %s\n", info.Subject)
				fmt.Fprintf(w, "emisor:   %s\n", info.Issuer)
				fmt.Fprintf(w, "serie:    %s\n", info.Serial)
				fmt.Fprintf(w, "validez:  %s → %s\n", info.NotBefore.Format(time.DateOnly), info.NotAfter.Format(time.DateOnly))
				if expired {
					fmt.Fprintln(w, "✗ certificado caducado")
				} else {
					fmt.Fprintln(w, "✓ certificado válido")
				}
			}); err != nil {
				return err
			}
			if expired {
				return NewExitError(ExitFailure, "certificado caducado")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&certPath, "cert", certPath, "ruta del .p12 o del certificado PEM")
	cmd.Flags().StringVar(&keyPath, "key", keyPath, "ruta de la llave PEM (si --cert es PEM)")
	cmd.Flags().StringVar(&password, "password", password, "contraseña del .p12")
	return cmd
}
