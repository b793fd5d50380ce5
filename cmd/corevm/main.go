/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// corevm is the CLI entrypoint wiring config, classloader, gc, and gcmon
// together, grounded on _examples/junjiewwang-perf-analysis's cmd/cli/cmd
// package (a github.com/spf13/cobra root command with PersistentPreRunE
// resolving flags into a config value before any subcommand runs). This
// is the "external collaborator" driver named out of scope for VM
// semantics, not a VM-internal component.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"corevm/config"
	"corevm/trace"
)

var (
	cfg *config.Config
	v   = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "corevm",
	Short: "A JVM core: class loading, class-object layout, and a relocating GC",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Resolve(v)
		trace.Enabled = cfg.TraceVerbose
		if cfg.OtelEnabled {
			trace.EnableOtel()
		}
		return nil
	},
}

func init() {
	if err := config.BindFlags(rootCmd.PersistentFlags(), v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	rootCmd.AddCommand(loadCmd, gcSimCmd, gcMonCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
