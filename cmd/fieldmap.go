package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridmix/gridmix/config"
	"github.com/gridmix/gridmix/logger"
)

var fieldmapLogLevel string
var fieldmapCmd = &cobra.Command{
	Use:   "fieldmap",
	Short: "Show the active upstream field to target column mappings as YAML",
	Long: `Show the active upstream field to target column mappings as YAML.
Save the output to a file, edit it and point GRIDMIX_FIELD_MAP_FILE at it
to customise which upstream fields are loaded and what their target
columns are called.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger("gridmix", fieldmapLogLevel, stackDumpOnPanic)
		fm, err := config.FieldMapForConfig(log, config.Load(log))
		if err != nil {
			return err
		}
		y, err := fm.Yaml()
		if err != nil {
			return err
		}
		fmt.Print(string(y))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fieldmapCmd)
	fieldmapCmd.Flags().SortFlags = false
	switches.addFlag(fieldmapCmd, &fieldmapLogLevel, "log-level", "error", false, "")
}
