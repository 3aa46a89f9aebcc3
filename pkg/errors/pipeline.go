package errors

import (
	"errors"
	"fmt"
)

// ErrNoCandidates is returned when a source has nothing left that was not used before.
// It is fatal for a run and never retried.
var ErrNoCandidates = errors.New("no candidates remain")

// NoCandidatesError carries the source that ran dry
type NoCandidatesError struct {
	Source string
	Cause  error
}

func (e *NoCandidatesError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source %s: no candidates remain: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("source %s: no candidates remain", e.Source)
}

func (e *NoCandidatesError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrNoCandidates) match any NoCandidatesError
func (e *NoCandidatesError) Is(target error) bool { return target == ErrNoCandidates }

// AcquisitionError is a failure to materialize a candidate into bytes
type AcquisitionError struct {
	CandidateID string
	Cause       error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.CandidateID, e.Cause)
}

func (e *AcquisitionError) Unwrap() error { return e.Cause }

// TransformError is a failure to normalize an artifact
type TransformError struct {
	CandidateID string
	Cause       error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.CandidateID, e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }

// OversizedError means an artifact is still above the size limit after shrinking
type OversizedError struct {
	CandidateID string
	Size        int64
	Limit       int64
}

func (e *OversizedError) Error() string {
	return fmt.Sprintf("artifact %s is %d bytes, limit is %d", e.CandidateID, e.Size, e.Limit)
}

// As makes an OversizedError match *TransformError, the kind it belongs to
func (e *OversizedError) As(target interface{}) bool {
	te, ok := target.(**TransformError)
	if !ok {
		return false
	}
	*te = &TransformError{CandidateID: e.CandidateID, Cause: e}
	return true
}

// PublishError is a failure of the externally visible step (caption or post)
type PublishError struct {
	CandidateID string
	Stage       string
	Cause       error
}

func (e *PublishError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("publish %s (%s): %v", e.CandidateID, e.Stage, e.Cause)
	}
	return fmt.Sprintf("publish %s: %v", e.CandidateID, e.Cause)
}

func (e *PublishError) Unwrap() error { return e.Cause }

// GiveUpError is terminal: the attempt budget is exhausted
type GiveUpError struct {
	Attempts int
	Last     error
}

func (e *GiveUpError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *GiveUpError) Unwrap() error { return e.Last }

// IsFatal reports errors that end a run immediately without consuming retry budget
func IsFatal(err error) bool {
	return errors.Is(err, ErrNoCandidates)
}

// IsGiveUp reports whether err is (or wraps) a GiveUpError
func IsGiveUp(err error) bool {
	var g *GiveUpError
	return errors.As(err, &g)
}
