package llm

import "errors"

// Failure taxonomy for model calls. Backends wrap their transport errors
// with one of these sentinels so call sites can decide retry behaviour with
// errors.Is.
var (
	// ErrRateLimited means the service throttled the call; back off and retry.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrInputTooLarge means the prompt or attachment exceeded the model's
	// input budget. Retrying the same request cannot succeed; the caller must
	// shrink the input first.
	ErrInputTooLarge = errors.New("llm: input too large")
	// ErrTransient covers network failures and stalled calls; retryable.
	ErrTransient = errors.New("llm: transient network error")
	// ErrAuth means the credential was rejected. Fatal to the whole run.
	ErrAuth = errors.New("llm: authentication failed")
)

// Kind names the taxonomy bucket of err for logs and run reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInputTooLarge):
		return "input_too_large"
	case errors.Is(err, ErrTransient):
		return "transient_network_error"
	case errors.Is(err, ErrAuth):
		return "auth_error"
	default:
		return "error"
	}
}

// Retryable reports whether err may succeed on a plain retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
