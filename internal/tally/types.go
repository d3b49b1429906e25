// Package tally defines core types shared across subsystems.
package tally

import "fmt"

// Status represents the persisted result state of a processed URL.
type Status string

// Status values persisted in the outcome store.
const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// FailureKind is a closed enumeration of per-URL fetch failures. It is
// internal diagnostic detail; only the coarse Status reaches the store.
type FailureKind string

// Supported failure kinds.
const (
	FailureTimeout    FailureKind = "timeout"
	FailureConnection FailureKind = "connection_error"
	FailureHTTP       FailureKind = "http_error"
	FailureInvalidURL FailureKind = "invalid_url"
)

// Failure describes why a fetch did not produce a usable body.
type Failure struct {
	Kind FailureKind
	// Code holds the HTTP status code when Kind is FailureHTTP.
	Code int
}

// String renders the failure for logs. Failure is not an error type;
// per-URL failures travel as values, not through error returns.
func (f Failure) String() string {
	if f.Kind == FailureHTTP {
		return fmt.Sprintf("%s (%d)", f.Kind, f.Code)
	}
	return string(f.Kind)
}

// FetchResult is the result of a single fetch attempt. Exactly one of Body
// or Failure is meaningful: Failure == nil means Body holds the page.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Failure    *Failure
}

// Outcome is the record persisted for each processed URL. ScriptCount is
// non-nil exactly when Status is StatusSuccess.
type Outcome struct {
	URL         string `json:"url"`
	ScriptCount *int   `json:"script_count,omitempty"`
	Status      Status `json:"status"`
}

// NewSuccess builds a Success outcome with the given tag count.
func NewSuccess(url string, count int) Outcome {
	c := count
	return Outcome{URL: url, ScriptCount: &c, Status: StatusSuccess}
}

// NewFailed builds a Failed outcome with no count.
func NewFailed(url string) Outcome {
	return Outcome{URL: url, Status: StatusFailed}
}

// Validate enforces the status/count invariant before an outcome is written.
func (o Outcome) Validate() error {
	if o.URL == "" {
		return fmt.Errorf("outcome url is required")
	}
	switch o.Status {
	case StatusSuccess:
		if o.ScriptCount == nil {
			return fmt.Errorf("success outcome for %s has no script count", o.URL)
		}
		if *o.ScriptCount < 0 {
			return fmt.Errorf("success outcome for %s has negative script count", o.URL)
		}
	case StatusFailed:
		if o.ScriptCount != nil {
			return fmt.Errorf("failed outcome for %s carries a script count", o.URL)
		}
	default:
		return fmt.Errorf("unknown outcome status %q", o.Status)
	}
	return nil
}
