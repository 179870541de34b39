package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2024-01-02T03:04+0000"
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use:   "gridmix",
	Short: "Gridmix loads the historic GB generation mix into Postgres",
	Long: `Gridmix keeps a Postgres table in sync with the historic GB generation mix
published by the National Energy System Operator (NESO).

Each run fetches a window of half-hourly readings from the NESO CKAN datastore,
validates and reshapes them, and upserts them keyed by UTC timestamp. Re-runs
are safe: late upstream corrections overwrite what was loaded before. As no
state is maintained aside from the data itself, the run action can run as often
as you like.`,
}

func init() {
	// General setup.
	cobra.EnableCommandSorting = false
	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Execute() prints the error.
		os.Exit(1)
	}
}
