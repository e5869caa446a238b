package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jhoicas/verifactu/internal/domain/verifactu"
	pkgverifactu "github.com/jhoicas/verifactu/pkg/verifactu"
)

// VerifyResult resultado de verificar la cadena de un vendedor.
type VerifyResult struct {
	Seller     string   `json:"seller"`
	Period     string   `json:"period,omitempty"`
	OK         bool     `json:"ok"`
	Links      int      `json:"links"`
	LastLinkID uint64   `json:"last_link_id"`
	LastHuella string   `json:"last_huella,omitempty"`
	Breaks     []string `json:"breaks,omitempty"`
}

// NewVerifyCommand verify: recalcula huellas y enlaces en disco.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var seller, period string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recalcula todas las huellas de la cadena en disco",
		Long: `Recorre los archivos mensuales del vendedor en orden, recalcula cada huella a
partir de su entrada canónica y comprueba el enlace con el eslabón anterior y con el
archivo de estado. Sin --seller verifica todos los vendedores del directorio.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd, seller, period)
		},
	}
	cmd.Flags().StringVar(&seller, "seller", "", "NIF del vendedor (vacío = todos)")
	cmd.Flags().StringVar(&period, "period", "", "solo el periodo AAAAMM (requiere --seller)")
	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command, seller, period string) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	env, err := opts.openLedger()
	if err != nil {
		return err
	}
	seller = pkgverifactu.NormalizeNIF(seller)
	if period != "" && seller == "" {
		return NewExitError(ExitCommandError, "--period requiere --seller")
	}

	sellers := []string{seller}
	if seller == "" {
		if sellers, err = env.files.Sellers(); err != nil {
			return WrapExitError(ExitCommandError, "listar vendedores", err)
		}
	}

	results := make([]VerifyResult, 0, len(sellers))
	allOK := true
	for _, s := range sellers {
		f.VerboseLog("verificando %s", s)
		var res VerifyResult
		if period != "" {
			res, err = verifyPeriod(env, s, period)
		} else {
			res, err = verifySeller(env, s)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "verificar "+s, err)
		}
		allOK = allOK && res.OK
		results = append(results, res)
	}

	if err := f.Result(allOK, results, func(w io.Writer) { printVerify(w, results) }); err != nil {
		return err
	}
	if !allOK {
		return NewExitError(ExitFailure, "cadena con roturas")
	}
	return nil
}

func verifySeller(env *ledgerEnv, seller string) (VerifyResult, error) {
	rep, err := env.book.Verify(seller)
	if err != nil {
		return VerifyResult{}, err
	}
	res := VerifyResult{
		Seller:     seller,
		OK:         rep.OK(),
		Links:      rep.Links,
		LastLinkID: rep.LastLinkID,
		LastHuella: rep.LastHuella,
	}
	for _, b := range rep.Breaks {
		res.Breaks = append(res.Breaks, b.Error())
	}
	return res, nil
}

// verifyPeriod verifica un mes enlazándolo con la última huella del mes anterior.
func verifyPeriod(env *ledgerEnv, seller, period string) (VerifyResult, error) {
	res := VerifyResult{Seller: seller, Period: period}
	periods, err := env.files.Periods(seller)
	if err != nil {
		return res, err
	}
	idx := slices.Index(periods, period)
	if idx < 0 {
		return res, fmt.Errorf("no existe el periodo %s", period)
	}
	prev := ""
	if idx > 0 {
		before, err := env.files.ReadMonth(seller, periods[idx-1])
		if err != nil {
			return res, err
		}
		if len(before) > 0 {
			prev = before[len(before)-1].Huella
		}
	}
	entries, err := env.files.ReadMonth(seller, period)
	if err != nil {
		return res, err
	}
	last, breaks := verifactu.VerifyEntries(env.hasher, prev, entries)
	res.Links = len(entries)
	res.LastHuella = last
	if len(entries) > 0 {
		res.LastLinkID = entries[len(entries)-1].LinkID
	}
	for _, b := range breaks {
		res.Breaks = append(res.Breaks, b.Error())
	}
	res.OK = len(breaks) == 0
	return res, nil
}

func printVerify(w io.Writer, results []VerifyResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "sin vendedores en el directorio")
		return
	}
	for _, r := range results {
		scope := r.Seller
		if r.Period != "" {
			scope += " " + r.Period
		}
		if r.OK {
			fmt.Fprintf(w, "✓ %s: %d eslabones, último %d %s\n", scope, r.Links, r.LastLinkID, r.LastHuella)
			continue
		}
		fmt.Fprintf(w, "✗ %s: %d rotura(s)\n", scope, len(r.Breaks))
		for _, b := range r.Breaks {
			fmt.Fprintf(w, "  - %s\n", b)
		}
	}
}
