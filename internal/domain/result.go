package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindDeviceNotFound    ErrorKind = "DeviceNotFound"
	KindAcquisitionFailed ErrorKind = "AcquisitionFailed"
	KindNoStreamAvailable ErrorKind = "NoStreamAvailable"
	KindNoAudioTrack      ErrorKind = "NoAudioTrack"
	KindInternalError     ErrorKind = "InternalError"
)

var (
	ErrDeviceNotFound    = errors.New("virtual microphone not found")
	ErrAcquisitionFailed = errors.New("acquisition failed")
	ErrNoStreamAvailable = errors.New("no stream available")
	ErrNoAudioTrack      = errors.New("no audio track")
	ErrInternal          = errors.New("internal error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindDeviceNotFound:
		return ErrDeviceNotFound
	case KindAcquisitionFailed:
		return ErrAcquisitionFailed
	case KindNoStreamAvailable:
		return ErrNoStreamAvailable
	case KindNoAudioTrack:
		return ErrNoAudioTrack
	default:
		return ErrInternal
	}
}

const (
	successPrefix = "success: "
	errorPrefix   = "error: "
)

// Result is the outcome of a microphone routine. A zero Kind means success.
type Result struct {
	Label  string
	Detail string

	Kind    ErrorKind
	Message string
	// Candidates holds the observed audio input labels for DeviceNotFound.
	Candidates []string
}

func Success(label, detail string) Result {
	if detail == "" {
		detail = label
	}
	return Result{Label: label, Detail: detail}
}

func Failure(kind ErrorKind, message string) Result {
	return Result{Kind: kind, Message: message}
}

func (r Result) OK() bool {
	return r.Kind == ""
}

// String renders the result in the "success: ..." / "error: ..." convention.
func (r Result) String() string {
	if r.OK() {
		return successPrefix + r.Detail
	}
	return errorPrefix + r.Message
}

// Err returns nil for a success, otherwise an error matching the kind's
// sentinel under errors.Is.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ResultError{Kind: r.Kind, Message: r.Message}
}

type ResultError struct {
	Kind    ErrorKind
	Message string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ResultError) Unwrap() error {
	return e.Kind.sentinel()
}
