package actions

// RunConfig carries the CLI switches for the run action.
type RunConfig struct {
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	StackDumpOnPanic bool
	Days             int    `errorTxt:"days to fetch" mandatory:"yes"`
	OverlapHours     int    `errorTxt:"overlap hours" mandatory:"yes"`
	StartDate        string // optional explicit lower bound; overrides incremental resolution.
	EndDate          string // optional explicit upper bound; defaults to now plus a cushion.
	NoIncremental    bool
	PageSize         int `errorTxt:"page size" mandatory:"yes"`
	BatchSize        int `errorTxt:"batch size" mandatory:"yes"`
}

// InitDbConfig carries the CLI switches for the init-db action.
type InitDbConfig struct {
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	StackDumpOnPanic bool
}
