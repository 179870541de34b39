package actions

import (
	"context"

	"github.com/gridmix/gridmix/config"
	"github.com/gridmix/gridmix/helper"
	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/rdbms"
)

// InitDb creates the target table so a first run has somewhere to load into.
// It is idempotent: an existing table is left alone.
func InitDb(cfg *InitDbConfig) error {
	log := logger.NewLogger("gridmix", cfg.LogLevel, cfg.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	appCfg := config.Load(log)
	if err := appCfg.RequireDsn(); err != nil {
		return err
	}
	fm, err := config.FieldMapForConfig(log, appCfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	db, err := rdbms.NewPgConnection(ctx, log, appCfg.DbDsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return rdbms.EnsureSchema(ctx, log, db, fm)
}
