// Command arbiterctl runs overlap detection and resolution offline against a
// YAML fixture of subjects and buckets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	fixturePath string
	configPath  string
	format      string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "arbiterctl",
		Short: "Detect and resolve overlapping segment assignments",
		Long: `arbiterctl loads subjects and buckets from a YAML fixture, finds subjects
eligible for more than one bucket and resolves them with a named strategy.

Nothing is persisted; use the arbiter service for that.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&fixturePath, "fixture", "f", "fixture.yaml", "YAML file with subjects and buckets")
	root.PersistentFlags().StringVar(&configPath, "config", "", "arbiter config file for engine options")
	root.PersistentFlags().StringVarP(&format, "format", "o", formatTable, "output format (table, json)")

	root.AddCommand(detectCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(presentCmd())
	root.AddCommand(strategiesCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
