package models

import "time"

// FailureKind classifies a failed API attempt.
type FailureKind int

const (
	KindNone FailureKind = iota
	KindTimeout
	KindBadRequest
	KindUnauthorized
	KindServerError
	KindNetworkError
)

func (k FailureKind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindBadRequest:
		return "BadRequest"
	case KindUnauthorized:
		return "Unauthorized"
	case KindServerError:
		return "ServerError"
	case KindNetworkError:
		return "NetworkError"
	default:
		return ""
	}
}

// Transient reports whether an identical request may succeed if sent again.
func (k FailureKind) Transient() bool {
	switch k {
	case KindTimeout, KindServerError, KindNetworkError:
		return true
	default:
		return false
	}
}

// ParseFailureKind is the inverse of [FailureKind.String].
func ParseFailureKind(s string) FailureKind {
	for _, k := range []FailureKind{KindTimeout, KindBadRequest, KindUnauthorized, KindServerError, KindNetworkError} {
		if k.String() == s {
			return k
		}
	}
	return KindNone
}

// Outcome is the terminal state of one record.
type Outcome string

const (
	OutcomeSuccess          Outcome = "Success"
	OutcomePermanentFailure Outcome = "PermanentFailure"
	OutcomeExhausted        Outcome = "Exhausted"
	OutcomeRejected         Outcome = "Rejected"
)

// RecordResult describes what happened to one input row.
type RecordResult struct {
	Row      int           `json:"row"`
	Name     string        `json:"name,omitempty"`
	Email    string        `json:"email,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	Attempts int           `json:"attempts"`
	Kind     FailureKind   `json:"-"`
	Message  string        `json:"message,omitempty"`
	Waited   time.Duration `json:"-"`
}

// KindName is the string form of Kind, empty when the record did not fail on the API.
func (r RecordResult) KindName() string { return r.Kind.String() }

// Run summarizes one import over a file.
type Run struct {
	ID          string
	Sequence    int
	SourcePath  string
	EndpointURL string
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Succeeded   int
	Rejected    int
	Failed      int
	Interrupted bool
	Results     []RecordResult
}

// NewRun starts a run summary for the given source and endpoint.
func NewRun(sourcePath, endpointURL string) *Run {
	return &Run{
		SourcePath:  sourcePath,
		EndpointURL: endpointURL,
		StartedAt:   time.Now(),
	}
}

// Add appends result and updates the counters.
func (r *Run) Add(result RecordResult) {
	r.Results = append(r.Results, result)
	r.Total++
	switch result.Outcome {
	case OutcomeSuccess:
		r.Succeeded++
	case OutcomeRejected:
		r.Rejected++
	default:
		r.Failed++
	}
}

// Finish stamps the end time.
func (r *Run) Finish(interrupted bool) {
	r.FinishedAt = time.Now()
	r.Interrupted = interrupted
}

// Duration is the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
