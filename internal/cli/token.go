package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jhoicas/verifactu/pkg/jwt"
	pkgverifactu "github.com/jhoicas/verifactu/pkg/verifactu"
)

// NewTokenCommand token: emite un JWT para la API.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var role, seller, user string
	var minutes int
	cmd := &cobra.Command{
		Use:           "token",
		Short:         "Emite un token JWT de operador o de emisor",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			switch role {
			case jwt.RoleAdmin:
			case jwt.RoleEmisor:
				seller = pkgverifactu.NormalizeNIF(seller)
				if err := pkgverifactu.ValidateNIF(seller); err != nil {
					return WrapExitError(ExitCommandError, "--seller", err)
				}
			default:
				return NewExitError(ExitCommandError, fmt.Sprintf("rol %q no válido (admin|emisor)", role))
			}
			if user == "" {
				user = uuid.NewString()
			}
			jcfg := rootOpts.cfg.JWT
			if minutes <= 0 {
				minutes = jcfg.Expiration
			}
			tok, err := jwt.Generate(jcfg.Secret, user, seller, role, jcfg.Issuer, minutes)
			if err != nil {
				return WrapExitError(ExitCommandError, "generar token", err)
			}
			data := map[string]any{"token": tok, "role": role, "seller_nif": seller, "user_id": user, "minutes": minutes}
			return f.Result(true, data, func(w io.Writer) { fmt.Fprintln(w, tok) })
		},
	}
	cmd.Flags().StringVar(&role, "role", jwt.RoleEmisor, "rol (admin|emisor)")
	cmd.Flags().StringVar(&seller, "seller", "", "NIF del emisor (obligatorio para emisor)")
	cmd.Flags().StringVar(&user, "user", "", "identificador de usuario (vacío = UUID nuevo)")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "validez en minutos (0 = JWT_EXPIRATION_MINUTES)")
	return cmd
}
