package rdbms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gridmix/gridmix/config"
	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/logger"
)

// BuildCreateTableSql renders the target table DDL from the field map so the
// schema always matches the configured column set.
func BuildCreateTableSql(fm *config.FieldMap) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("create table if not exists %v (\n", c.TableGenerationMix))
	b.WriteString(fmt.Sprintf("\t%v timestamptz primary key", c.ColumnDatetimeUtc))
	// Measurement columns are numeric; upstream values must keep full precision.
	for _, col := range fm.Columns() {
		b.WriteString(fmt.Sprintf(",\n\t%v numeric", col))
	}
	b.WriteString(fmt.Sprintf(",\n\t%v timestamptz not null default now()", c.ColumnIngestedAt))
	b.WriteString("\n)")
	return b.String()
}

// EnsureSchema creates the target table if it does not exist.
func EnsureSchema(ctx context.Context, log logger.Logger, db Connector, fm *config.FieldMap) error {
	sql := BuildCreateTableSql(fm)
	log.Debug("ensuring schema with SQL: ", sql)
	if _, err := db.Exec(ctx, sql); err != nil {
		return errors.Wrapf(err, "error creating table %v", c.TableGenerationMix)
	}
	log.Info("table ", c.TableGenerationMix, " is ready")
	return nil
}

// Watermark returns the newest datetime already loaded, or ok=false when the
// table is empty.
func Watermark(ctx context.Context, db Connector) (maxDt time.Time, ok bool, err error) {
	var dt *time.Time
	sql := fmt.Sprintf("select max(%v) from %v", c.ColumnDatetimeUtc, c.TableGenerationMix)
	if err = db.QueryRow(ctx, sql).Scan(&dt); err != nil {
		return time.Time{}, false, errors.Wrap(err, "error querying the load watermark")
	}
	if dt == nil { // if the table is empty...
		return time.Time{}, false, nil
	}
	return dt.UTC(), true, nil
}
