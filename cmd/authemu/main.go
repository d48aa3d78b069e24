// Command authemu corre el emulador de autenticación y trae un cliente
// para su API de administración.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version lo pisa el build con -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "authemu",
		Short:         "Emulador local de Firebase Auth / Identity Toolkit",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newAdminCmd())
	return root
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
