package constants

// Pipeline

const (
	ChanSize                     = 20000
	StatsCaptureFrequencySeconds = 5
	TimeFormatCkan               = "2006-01-02T15:04:05"  // DATETIME values as returned by the CKAN datastore (no zone, implicitly UTC)
	TimeFormatWindow             = "2006-01-02T15:04:05Z" // window bounds embedded in SQL sent to the datastore
	UpstreamDatetimeField        = "DATETIME"             // the natural key field in the upstream dataset
	ColumnDatetimeUtc            = "datetime_utc"
	ColumnIngestedAt             = "ingested_at"
	TableGenerationMix           = "generation_mix"
	ConnectionTypePostgres       = "postgres"
)

// Defaults

const (
	DefaultPageSize        = 5000 // rows per CKAN page (LIMIT)
	DefaultExecBatchSize   = 500  // rows combined into one multi-row upsert statement
	DefaultOverlapHours    = 48   // trailing re-fetch span used to recapture upstream corrections
	DefaultDays            = 3    // window size in days when overlap is disabled
	DefaultEndCushionMins  = 30   // extra minutes past the aligned hour so very recent rows are captured
	BackfillWindowMonths   = 1    // sub-window size for full backfills
	HttpTimeoutSeconds     = 30
	HttpMaxAttempts        = 5 // total attempts per page including the first try
	HttpBackoffInitialMs   = 500
	HttpBackoffMaxSeconds  = 8
	DefaultNesoBaseApi     = "https://api.neso.energy/api/3/action"
	DefaultNesoResourceId  = "f93d1835-75bc-43e5-84ad-12472b180a98" // Historic GB Generation Mix datastore table
	HttpUserAgent          = "gridmix/0.1 (+https://github.com/gridmix/gridmix)"
	FieldMapFileName       = "fieldmap.yaml"
	ConfigHomeDir          = ".gridmix"
)

// Environment variables

const (
	EnvVarPrefix         = "GRIDMIX"
	EnvVarDbDsn          = EnvVarPrefix + "_DB_DSN"
	EnvVarNesoBaseApi    = EnvVarPrefix + "_NESO_BASE_API"
	EnvVarNesoResourceId = EnvVarPrefix + "_NESO_RESOURCE_ID"
	EnvVarFieldMapFile   = EnvVarPrefix + "_FIELD_MAP_FILE"
)
