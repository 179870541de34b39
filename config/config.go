package config

import (
	"fmt"
	"os"
	"path"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/xo/dburl"

	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/helper"
	"github.com/gridmix/gridmix/logger"
)

// Error denotes missing or invalid required configuration.
// It is fatal at startup, before any network or database activity.
type Error struct {
	Var string
	Msg string
}

func (e Error) Error() string {
	if e.Var != "" {
		return fmt.Sprintf("configuration error: %v (%v)", e.Msg, e.Var)
	}
	return fmt.Sprintf("configuration error: %v", e.Msg)
}

// Config holds the runtime configuration read from the environment.
// A .env file is honoured in development so local runs need no exports.
type Config struct {
	DbDsn          string // Postgres DSN/URL; required by db commands only.
	NesoBaseApi    string
	NesoResourceId string
	FieldMapFile   string // optional field map override path; empty means use the built-in map.
}

// Load reads configuration from the environment with defaults applied.
// Only the upstream identifiers have defaults; the DSN stays optional here
// because commands that never touch the database do not need it.
func Load(log logger.Logger) *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env file")
	}
	cfg := &Config{
		NesoBaseApi:    helper.ReadValueFromEnvWithDefault(c.EnvVarNesoBaseApi, c.DefaultNesoBaseApi),
		NesoResourceId: helper.ReadValueFromEnvWithDefault(c.EnvVarNesoResourceId, c.DefaultNesoResourceId),
	}
	cfg.DbDsn, _ = helper.GetEnvVar(c.EnvVarDbDsn, false) // the DSN is validated by RequireDsn when a command needs it.
	cfg.FieldMapFile = resolveFieldMapFile(log)
	return cfg
}

// RequireDsn validates that a database DSN was configured and that it parses
// as a URL for a Postgres-family driver. Commands that write to the database
// call this before opening a pool so a bad environment fails fast.
func (cfg *Config) RequireDsn() error {
	if cfg.DbDsn == "" {
		return Error{Var: c.EnvVarDbDsn, Msg: "database DSN is not set"}
	}
	u, err := dburl.Parse(cfg.DbDsn)
	if err != nil {
		return Error{Var: c.EnvVarDbDsn, Msg: fmt.Sprintf("unable to parse database DSN: %v", err)}
	}
	if u.Driver != c.ConnectionTypePostgres {
		return Error{Var: c.EnvVarDbDsn, Msg: fmt.Sprintf("unsupported database driver %q - a postgres DSN is required", u.Driver)}
	}
	return nil
}

// resolveFieldMapFile picks the field map override path: an explicit env var
// wins, else ~/.gridmix/fieldmap.yaml is used when it exists.
func resolveFieldMapFile(log logger.Logger) string {
	var p string
	if err := helper.ReadValueFromEnv(c.EnvVarFieldMapFile, &p); err == nil {
		return p
	}
	home, err := homedir.Dir()
	if err != nil {
		log.Debug("unable to resolve home dir for field map lookup: ", err)
		return ""
	}
	p = path.Join(home, c.ConfigHomeDir, c.FieldMapFileName)
	if _, err := os.Stat(p); err != nil { // if there is no override file in the config home...
		return ""
	}
	return p
}
