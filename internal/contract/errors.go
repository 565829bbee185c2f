package contract

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode classifies a scoring failure.
type ErrorCode string

// Error codes raised while scoring a repository.
const (
	CodeRepositoryNotFoundLocally   ErrorCode = "REPOSITORY_NOT_FOUND_LOCALLY"
	CodeMalformedAuthorRecord       ErrorCode = "MALFORMED_AUTHOR_RECORD"
	CodeSignalCollectionFailure     ErrorCode = "SIGNAL_COLLECTION_FAILURE"
	CodeDivisionByZeroNormalization ErrorCode = "DIVISION_BY_ZERO_NORMALIZATION"
	CodeUnsupportedRepositoryURL    ErrorCode = "UNSUPPORTED_REPOSITORY_URL"
)

// Sentinels for errors.Is. They match any ScoreError with the same code.
var (
	ErrRepositoryNotFoundLocally   = &ScoreError{Code: CodeRepositoryNotFoundLocally}
	ErrMalformedAuthorRecord       = &ScoreError{Code: CodeMalformedAuthorRecord}
	ErrSignalCollectionFailure     = &ScoreError{Code: CodeSignalCollectionFailure}
	ErrDivisionByZeroNormalization = &ScoreError{Code: CodeDivisionByZeroNormalization}
	ErrUnsupportedRepositoryURL    = &ScoreError{Code: CodeUnsupportedRepositoryURL}
)

// ScoreError is a classified scoring failure.
type ScoreError struct {
	Code   ErrorCode
	Repo   string // url, name or local path
	Signal string // signal being collected, if any
	Detail string
	Err    error
}

func (e *ScoreError) Error() string {
	msg := string(e.Code)
	if e.Repo != "" {
		msg += " [" + e.Repo + "]"
	}
	if e.Signal != "" {
		msg += " " + e.Signal
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScoreError) Unwrap() error { return e.Err }

// Is matches another ScoreError by code.
func (e *ScoreError) Is(target error) bool {
	var t *ScoreError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewRepositoryNotFoundLocally reports a missing local checkout.
func NewRepositoryNotFoundLocally(path string) *ScoreError {
	return &ScoreError{Code: CodeRepositoryNotFoundLocally, Repo: path, Detail: "no local git repo found"}
}

// NewMalformedAuthorRecord reports an author line that could not be parsed.
func NewMalformedAuthorRecord(repo, line string, err error) *ScoreError {
	return &ScoreError{Code: CodeMalformedAuthorRecord, Repo: repo, Detail: fmt.Sprintf("%q", line), Err: err}
}

// NewSignalCollectionFailure reports a signal that could not be collected.
func NewSignalCollectionFailure(repo, signal string, err error) *ScoreError {
	return &ScoreError{Code: CodeSignalCollectionFailure, Repo: repo, Signal: signal, Err: err}
}

// NewDivisionByZero reports a normalization with a zero denominator.
func NewDivisionByZero(detail string) *ScoreError {
	return &ScoreError{Code: CodeDivisionByZeroNormalization, Detail: detail}
}

// NewUnsupportedRepositoryURL reports a URL whose host is not a known service.
func NewUnsupportedRepositoryURL(url string) *ScoreError {
	return &ScoreError{Code: CodeUnsupportedRepositoryURL, Repo: url, Detail: "unsupported url"}
}

// CodeOf returns the code of the outermost ScoreError in the chain, or "".
func CodeOf(err error) ErrorCode {
	var se *ScoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryable reports whether scoring the same repository again may succeed.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !errors.Is(err, ErrUnsupportedRepositoryURL) && !IsFatal(err)
}

// IsFatal reports whether the error must abort the whole batch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDivisionByZeroNormalization)
}
