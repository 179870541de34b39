package cmd

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/helper"
)

type cliFlag struct {
	name      string // name of flag
	val       string // default value
	shortHand string // single character name for the flag
	desc      string // description of the flag; the long text
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: \"error | warn | info | debug\""},
	"days": cliFlag{name: "days", shortHand: "d",
		desc: "The number of days of history to fetch when the target table is empty\n" +
			"or when incremental resolution is disabled"},
	"start-date": cliFlag{name: "start-date", shortHand: "G",
		desc: "The minimum start date-time in ISO-8601 format (e.g. 2024-01-01T00:00:00)\n" +
			"from which to fetch data, overriding incremental resolution. Use this for\n" +
			"an initial backfill. After that, the max date-time found in the target\n" +
			"table drives each fetch, so the run action can run as often as you like"},
	"end-date": cliFlag{name: "end-date", shortHand: "E",
		desc: "The maximum end date-time (exclusive) in ISO-8601 format up to which to\n" +
			"fetch data. Leave blank to load up to the latest published readings"},
	"no-incremental": cliFlag{name: "no-incremental", shortHand: "n",
		desc: "Ignore the max date-time found in the target table and fetch the last\n" +
			"'days' days instead"},
	"overlap-hours": cliFlag{name: "overlap-hours", shortHand: "o",
		desc: "The number of hours before the newest loaded row to re-fetch on each run,\n" +
			"so late upstream corrections are picked up"},
	"page-size": cliFlag{name: "page-size", shortHand: "p",
		desc: "Number of rows to fetch per upstream datastore request"},
	"batch-size": cliFlag{name: "batch-size", shortHand: "B",
		desc: "Number of rows combined into a single SQL statement and transaction\n" +
			"before it is executed"},
}

// addFlag adds a flag to cobra.Command c, based on the type of targetVar (which must be a pointer).
// The name of the flag is looked up in map, cliFlags.
// The default value comes from the matching environment variable when set, else the supplied
// defaultValue is applied. The flag is marked as required in Cobra based on the value of required.
// Supply a value for desc2 to append to the existing description found in map cliFlags.
func (f *cliFlags) addFlag(c *cobra.Command, targetVar interface{}, name string, defaultValue string, required bool, desc2 string) {
	v := reflect.ValueOf(targetVar)
	if v.Kind() != reflect.Ptr {
		fmt.Println("error adding flag: targetVar must be a pointer")
		os.Exit(1)
	}
	sw := f.getCliFlag(name, defaultValue) // get the cliFlag details, with defaults taken from the environment or the supplied defaultValue
	desc := sw.desc + desc2                // create the full flag description for use below
	// Apply the flag.
	switch p := targetVar.(type) {
	case *string:
		c.Flags().StringVarP(p, sw.name, sw.shortHand, sw.val, desc)
		if sw.val != "" { // if there is a value via the environment or default...
			mustSetFlag(c.Flags(), sw.name, sw.val)
		}
	case *bool:
		defaultBool := strings.ToLower(sw.val) == "true"
		c.Flags().BoolVarP(p, sw.name, sw.shortHand, defaultBool, desc)
		if defaultBool {
			mustSetFlag(c.Flags(), sw.name, "true")
		} else {
			mustSetFlag(c.Flags(), sw.name, "false")
		}
	case *int:
		defaultInt, err := strconv.Atoi(sw.val)
		if err != nil {
			fmt.Printf("the value for flag %q must be an integer: %v\n", sw.name, err)
			os.Exit(1)
		}
		c.Flags().IntVarP(p, sw.name, sw.shortHand, defaultInt, desc)
		if sw.val != "" { // if there is a value via the environment or default...
			mustSetFlag(c.Flags(), sw.name, sw.val)
		}
	default:
		panic("Error: unhandled CLI flag target value type")
	}
	// Optionally mark the flag as mandatory.
	if required { // if the flag is required...
		_ = c.MarkFlagRequired(sw.name)
	}
}

// getCliFlag fetches the value of name from the environment.
// If a value cannot be found then use the supplied defaultValue in its place.
func (f *cliFlags) getCliFlag(name string, defaultValue string) cliFlag {
	s, ok := switches[name]
	if !ok {
		panic(fmt.Sprintf("unregistered CLI flag, %q", name))
	}
	if err := helper.ReadValueFromEnv(flagNameToEnvVar(name), &s.val); err != nil { // if there's no value for the env var read into the switch val...
		// Apply the default.
		s.val = defaultValue
	}
	return s
}

// flagNameToEnvVar will form a sanitised environment variable name using constants.EnvVarPrefix.
func flagNameToEnvVar(name string) string {
	return constants.EnvVarPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func mustSetFlag(f *pflag.FlagSet, name string, val string) {
	if err := f.Set(name, val); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
