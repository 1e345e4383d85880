package disbursement

// Default configuration values
const (
	DefaultMaxRetries           = 3
	DefaultRetryBaseHours       = 1
	DefaultScheduleDelayMinutes = 30
	DefaultDueBatchSize         = 100
)
