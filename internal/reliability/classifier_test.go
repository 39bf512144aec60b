package reliability

import "testing"

func TestIsRetryableHTTPStatus(t *testing.T) {
	retryable := []int{429, 500, 502, 503, 504}
	for _, code := range retryable {
		if !IsRetryableHTTPStatus(code) {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	final := []int{200, 201, 204, 301, 400, 401, 403, 404, 422, 501}
	for _, code := range final {
		if IsRetryableHTTPStatus(code) {
			t.Errorf("expected %d to be final", code)
		}
	}
}
