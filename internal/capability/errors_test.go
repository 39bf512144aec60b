package capability

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestFailureMessagePrefersDetail(t *testing.T) {
	f := NewFailure(CodeRemoteError, "model not found")
	if got := f.Message(); got != "model not found" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestFailureMessageDefaultsPerCode(t *testing.T) {
	cases := map[Code]string{
		CodeAuthMissing:  "API key is missing, please check the configuration",
		CodeNoSpeech:     "no speech was detected",
		CodeNetworkError: "the network request failed",
	}
	for code, want := range cases {
		if got := (&Failure{Code: code}).Message(); got != want {
			t.Errorf("Message(%s) = %q, want %q", code, got, want)
		}
	}
}

func TestAsFailureUnwrapsWrappedErrors(t *testing.T) {
	inner := NewFailure(CodeHandleInvalid, "device handle is stale")
	wrapped := fmt.Errorf("connect: %w", inner)

	f, ok := AsFailure(wrapped)
	if !ok {
		t.Fatal("expected failure in chain")
	}
	if f.Code != CodeHandleInvalid {
		t.Fatalf("expected handle_invalid, got %s", f.Code)
	}

	if _, ok := AsFailure(errors.New("plain")); ok {
		t.Fatal("expected plain error not to unwrap")
	}
}

func TestNormalize(t *testing.T) {
	if Normalize(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	typed := NewFailure(CodeNotSupported, "")
	if got := Normalize(typed); got != typed {
		t.Fatal("expected typed failures to pass through unchanged")
	}

	if got := Normalize(context.Canceled); got.Code != CodeUserCancelled {
		t.Fatalf("expected user_cancelled for context.Canceled, got %s", got.Code)
	}
	if got := Normalize(context.DeadlineExceeded); got.Code != CodeNetworkError {
		t.Fatalf("expected network_error for deadline, got %s", got.Code)
	}

	got := Normalize(errors.New("speaker exploded"))
	if got.Code != CodeAborted {
		t.Fatalf("expected aborted for unknown errors, got %s", got.Code)
	}
	if got.Detail != "speaker exploded" {
		t.Fatalf("expected detail to carry the original message, got %q", got.Detail)
	}
}
