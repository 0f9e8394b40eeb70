package te

import "fmt"

// ErrorKind classifies a failed TE request. Retry decisions are made on the
// kind, never by sniffing error strings.
type ErrorKind int

const (
	// ErrTransport covers network-level failures: dial, TLS, timeouts.
	ErrTransport ErrorKind = iota
	// ErrDecode covers malformed JSON in an otherwise successful response.
	ErrDecode
	// ErrPermanentHTTP covers non-retryable HTTP statuses (4xx other than 408/429).
	ErrPermanentHTTP
	// ErrRetryExhausted marks a transient failure that outlived its retry budget.
	ErrRetryExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTransport:
		return "transport"
	case ErrDecode:
		return "decode"
	case ErrPermanentHTTP:
		return "permanent_http"
	case ErrRetryExhausted:
		return "retry_exhausted"
	default:
		return "unknown"
	}
}

// APIError is the single error type returned by the TE client.
type APIError struct {
	Kind       ErrorKind
	StatusCode int // set for HTTP-status failures
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("te: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("te: %s: %v", e.Kind, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
