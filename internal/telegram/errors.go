package telegram

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthExpired means the platform session is no longer valid. There is
	// no automatic recovery; the operator has to re-authenticate.
	ErrAuthExpired = errors.New("session expired or unauthorized")

	// ErrUnknownUser means the identifier did not resolve to an account.
	ErrUnknownUser = errors.New("user not resolvable")

	// ErrTransient covers network failures, timeouts and upstream 5xx.
	ErrTransient = errors.New("transient upstream failure")
)

// ThrottledError is returned when the platform itself signals throttling.
// RetryAfter is zero when the platform gave no hint.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("platform rate limited, retry after %s", e.RetryAfter)
	}
	return "platform rate limited"
}

// AsThrottled unwraps err into a ThrottledError if it carries one.
func AsThrottled(err error) (*ThrottledError, bool) {
	var te *ThrottledError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
