package rdbms

import (
	"fmt"
	"strings"

	h "github.com/gridmix/gridmix/helper"

	"github.com/pkg/errors"
)

type DmlGeneratorTxtBatch struct{}

// Postgres-specific implementation of interface SqlStmtTxtBatcher
// is able to generate INSERT .. ON CONFLICT DO UPDATE statements with
// batches of rows supplied.
type SqlUpsertTxtBatch struct {
	SqlStatementGeneratorConfig // mandatory to be populated.
	sqlStmt                     string
	sqlStmtTemplate             string
	sqlValues                   []interface{} // slice to hold data values for all rows in batch
	batchSize                   int
	rowsInBatch                 int
	previousNumRowsInBatch      int
	AllCols                     []string // list of columns extracted from SqlStatementGeneratorConfig.
	KeyCols                     []string
	OtherCols                   []string
}

// NewUpsertGenerator creates a new SqlStmtGenerator that implements interface SqlStmtTxtBatcher.
// Configure defaults in SqlStatementGeneratorConfig.
func (*DmlGeneratorTxtBatch) NewUpsertGenerator(cfg *SqlStatementGeneratorConfig) SqlStmtGenerator {
	FixSqlStatementGeneratorConfig(cfg)
	cfg.Log.Debug("Creating NewUpsertGenerator")
	o := &SqlUpsertTxtBatch{SqlStatementGeneratorConfig: *cfg}
	o.setupSqlStatement()
	return o
}

func (o *SqlUpsertTxtBatch) setupSqlStatement() {
	// Build the lists of column names.
	var idx int
	o.KeyCols = make([]string, o.TargetKeyCols.Len())
	idx = 0
	h.OrderedMapValuesToStringSlice(o.TargetKeyCols, &o.KeyCols, &idx)
	o.OtherCols = make([]string, o.TargetOtherCols.Len())
	idx = 0
	h.OrderedMapValuesToStringSlice(o.TargetOtherCols, &o.OtherCols, &idx)
	o.AllCols = make([]string, o.TargetKeyCols.Len()+o.TargetOtherCols.Len())
	idx = 0
	h.OrderedMapValuesToStringSlice(o.TargetKeyCols, &o.AllCols, &idx)
	h.OrderedMapValuesToStringSlice(o.TargetOtherCols, &o.AllCols, &idx)
	// Build the 'col = excluded.col' assignment list for matched rows.
	setCols := make([]string, 0, len(o.OtherCols)+1)
	for _, col := range o.OtherCols {
		setCols = append(setCols, fmt.Sprintf("%v = excluded.%v", col, col))
	}
	if o.UpdateExtra != "" { // if the caller wants an extra assignment e.g. an audit column...
		setCols = append(setCols, o.UpdateExtra)
	}
	// Populate the SQL template.
	o.sqlStmtTemplate = `insert into <SCHEMA><SEPARATOR><TABLE> (<TGT-COLS>) values <VALUES> on conflict (<KEY-COLS>) do update set <SET-COLS>`
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<SCHEMA>", o.OutputSchema, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<SEPARATOR>", o.SchemaSeparator, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TABLE>", o.OutputTable, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TGT-COLS>", strings.Join(o.AllCols, ","), 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<KEY-COLS>", strings.Join(o.KeyCols, ","), 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<SET-COLS>", strings.Join(setCols, ","), 1)
	o.Log.Debug("setup UPSERT generator with SQL (VALUES pending): ", o.sqlStmtTemplate)
}

func (o *SqlUpsertTxtBatch) InitBatch(batchSize int) {
	o.Log.Debug("initBatch() for UPSERT...")
	o.batchSize = batchSize
	o.rowsInBatch = 0
	// Allocate a new buffer to hold all values (args) to exec.
	o.sqlValues = make([]interface{}, 0, o.batchSize*len(o.AllCols)) // many values per row in a batch.
	o.Log.Debug("rowsInBatch = ", o.rowsInBatch)
	o.Log.Debug("batchSize = ", o.batchSize)
}

func (o *SqlUpsertTxtBatch) AddValuesToBatch(values []interface{}) (batchIsFull bool, err error) {
	o.Log.Debug("SqlUpsertTxtBatch.AddValuesToBatch()...")
	if o.rowsInBatch >= o.batchSize {
		err = errors.New("no more rows allowed in UPSERT batch")
		batchIsFull = true
		return
	}
	if len(values) != len(o.AllCols) {
		err = errors.New("the number of values supplied does not match the number of table columns")
		return
	}
	// Append values to buffer.
	o.sqlValues = append(o.sqlValues, values...)
	o.rowsInBatch++                  // keep track of how close we are to the batch limit.
	if o.rowsInBatch < o.batchSize { // if the batch has room for more values...
		batchIsFull = false // set batch is NOT full
	} else {
		batchIsFull = true // set batch is full - caller should exec SQL.
	}
	return
}

func (o *SqlUpsertTxtBatch) GetValues() []interface{} {
	return o.sqlValues
}

func (o *SqlUpsertTxtBatch) GetStatement() string {
	if o.previousNumRowsInBatch != o.rowsInBatch { // if the row count changed and we need to generate SQL (a partial final batch is smaller than batchSize)...
		allRows := strings.Builder{}
		rowIdx := 1
		valIdx := 1
		for rowIdx <= o.rowsInBatch { // for each row in the batch...
			// Build the current row of bind variables.
			// , $1, $2, $3, etc   <<< trim left comma later.
			row := strings.Builder{}                    // get a new Builder each time.
			for idy := 0; idy < len(o.AllCols); idy++ { // for each field in the current row...
				row.WriteString(fmt.Sprintf(",$%v", valIdx)) // include a bind variable.
				valIdx++
			}
			// Save the row of bind variables: ',( $1, $2, $n )'  <<< ltrim later.
			allRows.WriteString(fmt.Sprintf(",( %v )", strings.TrimLeft(row.String(), ",")))
			rowIdx++
		}
		// Trim the leading comma and save all rows as the <VALUES>.
		o.sqlStmt = strings.Replace(o.sqlStmtTemplate, "<VALUES>", strings.TrimLeft(allRows.String(), ","), 1)
		o.previousNumRowsInBatch = o.rowsInBatch
	} // else we have the same row count and can use cached SQL...
	o.Log.Debug("SQL batch UPSERT generated statement: ", o.sqlStmt)
	return o.sqlStmt
}
