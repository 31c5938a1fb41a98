package testevents

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusConflict = 409
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	resultEpsilon        = 1e-6
)

// Submission outcomes.
const (
	outcomeSuccess = "success"
	outcomeClosed  = "closed"
	outcomeFailed  = "failed"
)
