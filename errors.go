package sigma

import (
	"errors"
	"fmt"
)

var (
	ErrTransientNetwork = errors.New("transient network error")
	ErrParse            = errors.New("could not parse page")
	ErrIncompleteData   = errors.New("incomplete data")
	ErrAuthentication   = errors.New("authentication failed")
	ErrSessionExpired   = errors.New("session expired")
	ErrActionTimeout    = errors.New("action not confirmed before deadline")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrUpdateFailed     = errors.New("update failed")
	ErrUnknownAction    = errors.New("unknown action")
	ErrSecretTooLong    = errors.New("secret too long")
)

// HTTPStatusError is returned for responses that are not worth retrying.
type HTTPStatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}
