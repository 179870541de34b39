package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gridmix/gridmix/actions"
)

var initDbCfg = actions.InitDbConfig{}
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the generation mix target table in Postgres",
	Long: `Create the generation mix target table in Postgres if it does not exist,
with one column per mapped fuel type plus the UTC timestamp primary key.
Safe to run repeatedly.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		initDbCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.InitDb(&initDbCfg)
	},
}

func init() {
	rootCmd.AddCommand(initDbCmd)
	initDbCmd.Flags().SortFlags = false
	switches.addFlag(initDbCmd, &initDbCfg.LogLevel, "log-level", "info", false, "")
}
