// Command paymentsd starts the payments HTTP server.
//
// Create requests carrying an Idempotency-Key header are deduplicated: a
// retried request returns the payment created by the first attempt instead of
// creating another one. Run with:
//
//	go run . --store sqlite --port 9000
//
// Settings come from flags, PAYMENTS_* environment variables, an optional YAML
// file (--config) and a .env file in the working directory. PORT and DB_PATH
// are honored as well.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arkantrust/idempotent-payments/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	root := &cobra.Command{
		Use:           "paymentsd",
		Short:         "Payments API with idempotent create",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.String("port", "", "HTTP listen port")
	flags.String("store", "", "storage driver: bolt, sqlite or memory")
	flags.String("db", "", "database file for the bolt and sqlite drivers")
	_ = v.BindPFlag("server.port", flags.Lookup("port"))
	_ = v.BindPFlag("store.driver", flags.Lookup("store"))
	_ = v.BindPFlag("store.path", flags.Lookup("db"))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "warning: .env:", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
