package media

import "errors"

// Error taxonomy for resolving, fetching and normalizing media. The
// worker is the single place that maps these onto retry-vs-terminal
// decisions; everything below either is retryable or marks the episode
// failed, never both.
var (
	// ErrTransient marks failures worth retrying at the job level
	// (network hiccups, timeouts). Wrap with fmt.Errorf("...: %w", ErrTransient).
	ErrTransient = errors.New("transient error")

	// ErrRateLimited means the upstream provider throttled us. Retryable,
	// the job backoff provides the required cool-down.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrNotFound means the reference does not resolve at all.
	ErrNotFound = errors.New("reference not found")

	// ErrContentUnavailable means the item existed but can no longer be
	// fetched (removed, private, region-locked).
	ErrContentUnavailable = errors.New("content unavailable")

	// ErrUnsupported means the reference format is not recognized.
	ErrUnsupported = errors.New("unsupported reference")

	// ErrValidation means the local file failed audio validation.
	ErrValidation = errors.New("audio validation failed")
)

// Retryable reports whether the job running against this error should be
// re-enqueued with backoff rather than terminated.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}

// UserMessage returns a short, sanitized summary safe to store on a
// failed episode. Full diagnostics stay in the operator logs.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The video could not be found."
	case errors.Is(err, ErrContentUnavailable):
		return "The video is no longer available."
	case errors.Is(err, ErrUnsupported):
		return "This link format is not supported."
	case errors.Is(err, ErrValidation):
		return "The file does not contain a valid audio stream."
	case errors.Is(err, ErrRateLimited):
		return "Download failed after repeated attempts (rate limited)."
	default:
		return "Download failed after repeated attempts."
	}
}
