package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	ScoreError      = 4
	TuneError       = 5
	PartialSuccess  = 6
	PersistError    = 7
)
