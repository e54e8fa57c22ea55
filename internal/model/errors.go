package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a job failure.
type ErrorKind string

const (
	KindIngest       ErrorKind = "ingest"
	KindValidation   ErrorKind = "validation"
	KindLookup       ErrorKind = "lookup"
	KindWrite        ErrorKind = "write"
	KindExternalCall ErrorKind = "external_call"
	KindConnection   ErrorKind = "connection"
	KindUnknown      ErrorKind = "unknown"
)

// IsFatal reports whether errors of this kind abort the whole job.
func (k ErrorKind) IsFatal() bool {
	return k == KindIngest || k == KindConnection
}

// JobError is a classified failure raised by a job step.
type JobError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *JobError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// NewJobError classifies err under kind. A nil err yields nil.
func NewJobError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &JobError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first JobError in err's chain.
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindUnknown
}
