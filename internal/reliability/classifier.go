// Package reliability classifies upstream failures. The controller never
// retries automatically; the retryable flag only informs the UI whether a
// manual re-attempt is worthwhile.
package reliability

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
