package capability

import (
	"context"
	"errors"
	"fmt"
)

// Code is the closed failure taxonomy for capability operations. Every error
// that crosses a gateway boundary is normalized into one of these.
type Code string

const (
	CodeNotSupported      Code = "not_supported"
	CodeUserCancelled     Code = "user_cancelled"
	CodeNoSpeech          Code = "no_speech"
	CodeAborted           Code = "aborted"
	CodeAlreadyInProgress Code = "already_in_progress"
	CodeAuthMissing       Code = "auth_missing"
	CodeNetworkError      Code = "network_error"
	CodeRemoteError       Code = "remote_error"
	CodeHandleInvalid     Code = "handle_invalid"
)

// Failure is a typed capability error carrying the taxonomy code and a
// human-readable detail suitable for status lines and spoken error replies.
type Failure struct {
	Code      Code
	Detail    string
	Retryable bool
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Detail)
}

// Message returns the user-facing description of the failure.
func (f *Failure) Message() string {
	if f.Detail != "" {
		return f.Detail
	}
	switch f.Code {
	case CodeNotSupported:
		return "this capability is not supported on this device"
	case CodeUserCancelled:
		return "the request was cancelled"
	case CodeNoSpeech:
		return "no speech was detected"
	case CodeAlreadyInProgress:
		return "another request is already in progress"
	case CodeAuthMissing:
		return "API key is missing, please check the configuration"
	case CodeNetworkError:
		return "the network request failed"
	default:
		return string(f.Code)
	}
}

func NewFailure(code Code, detail string) *Failure {
	return &Failure{Code: code, Detail: detail}
}

// AsFailure unwraps err into a *Failure when one is anywhere in the chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Normalize maps an arbitrary provider error into the closed taxonomy.
// Already-typed failures pass through; context cancellation is a user cancel.
func Normalize(err error) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := AsFailure(err); ok {
		return f
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &Failure{Code: CodeUserCancelled, Detail: "the request was cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Code: CodeNetworkError, Detail: "the request timed out"}
	default:
		return &Failure{Code: CodeAborted, Detail: err.Error()}
	}
}
