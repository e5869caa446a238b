package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/jhoicas/verifactu/internal/cli"
	"github.com/jhoicas/verifactu/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(cli.ExitCommandError)
	}
	if err := cli.NewRootCommand(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
