package hlsproxy

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingURL is returned when a relay request carries no url parameter.
	ErrMissingURL = errors.New("missing URL")

	// ErrBindFailed is returned by EnsureStarted when the listener cannot be opened.
	ErrBindFailed = errors.New("hls proxy: bind failed")
)

// UpstreamError is a failed fetch from the origin. StatusCode is zero when no
// response was received.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StatusOf returns the status a relay response should carry for err.
func StatusOf(err error) int {
	if errors.Is(err, ErrMissingURL) {
		return http.StatusBadRequest
	}
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.StatusCode != 0 {
		return ue.StatusCode
	}
	return http.StatusInternalServerError
}
