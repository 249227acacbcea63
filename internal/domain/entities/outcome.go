package entities

import (
	"fmt"
	"net/http"
)

// OutcomeKind tags how a terminal condition ends the pipeline
type OutcomeKind int

// The two outcome classes. Any terminal condition is exactly one of them.
const (
	// HardFailure is a client-correctable or data-integrity problem
	HardFailure OutcomeKind = iota + 1
	// SoftOutcome is an operationally successful no-op
	SoftOutcome
)

func (k OutcomeKind) String() string {
	switch k {
	case HardFailure:
		return "hard_failure"
	case SoftOutcome:
		return "soft_outcome"
	default:
		return "unknown"
	}
}

// Outcome is an error that terminates the pipeline with a specific result
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Message    string
	Cause      error
}

// Fail creates a hard failure with the default 400 status
func Fail(format string, args ...interface{}) *Outcome {
	return &Outcome{Kind: HardFailure, StatusCode: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// FailWithStatus creates a hard failure carrying a non-default status
func FailWithStatus(status int, format string, args ...interface{}) *Outcome {
	return &Outcome{Kind: HardFailure, StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

// Skip creates a soft outcome (status 200)
func Skip(format string, args ...interface{}) *Outcome {
	return &Outcome{Kind: SoftOutcome, StatusCode: http.StatusOK, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches the underlying error for logging; it never changes the message
func (o *Outcome) Wrap(cause error) *Outcome {
	o.Cause = cause
	return o
}

func (o *Outcome) Error() string {
	return o.Message
}

func (o *Outcome) Unwrap() error {
	return o.Cause
}

// Result converts the outcome into the pipeline result
func (o *Outcome) Result() PipelineResult {
	return PipelineResult{StatusCode: o.StatusCode, Body: o.Message}
}

// ViolationCode names which validation check rejected an input
type ViolationCode string

// Validation failures raised by the URL validator and the archive verifier
const (
	MalformedInput          ViolationCode = "MalformedInput"
	UnsupportedHost         ViolationCode = "UnsupportedHost"
	MalformedPath           ViolationCode = "MalformedPath"
	NoApplicablePermissions ViolationCode = "NoApplicablePermissions"
	ForbiddenPath           ViolationCode = "ForbiddenPath"
	MissingScmSection       ViolationCode = "MissingScmSection"
	WrongScmURL             ViolationCode = "WrongScmUrl"
	WrongScmTag             ViolationCode = "WrongScmTag"
	WrongCoordinates        ViolationCode = "WrongCoordinates"
	MalformedDescriptor     ViolationCode = "MalformedDescriptor"
)

// Violation is a single failed validation check
type Violation struct {
	Code    ViolationCode
	Message string
}

// NewViolation creates a violation with a formatted message
func NewViolation(code ViolationCode, format string, args ...interface{}) *Violation {
	return &Violation{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (v *Violation) Error() string {
	return v.Message
}
