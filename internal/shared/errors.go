package shared

import "fmt"

var (
	// Setup errors. These abort a run.
	ErrFileAccess    = fmt.Errorf("cannot access input file")
	ErrEmptyInput    = fmt.Errorf("input file has no data rows")
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrMissingToken  = fmt.Errorf("missing API token")

	// Per-record errors. These are logged and the run continues.
	ErrValidation       = fmt.Errorf("validation failed")
	ErrTransient        = fmt.Errorf("transient failure")
	ErrPermanentFailure = fmt.Errorf("permanent failure")
	ErrRetryExhausted   = fmt.Errorf("retries exhausted")

	// Persistence errors
	ErrRunNotFound = fmt.Errorf("run not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
