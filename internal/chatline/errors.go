package chatline

import (
	"errors"
	"fmt"
)

var (
	// ErrExchangeFailure matches any *ExchangeFailure with errors.Is.
	ErrExchangeFailure = errors.New("request failed")

	// ErrUnknownMode is returned for a navigation target that does not exist.
	ErrUnknownMode = errors.New("unknown mode")
)

// ExchangeFailure is returned by an Exchanger when a send fails for any
// reason: transport error, non-success status or malformed body.
type ExchangeFailure struct {
	Reason string
	Err    error
}

func (e *ExchangeFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("request failed: %s", e.Reason)
	}
	return fmt.Sprintf("request failed: %s: %v", e.Reason, e.Err)
}

func (e *ExchangeFailure) Unwrap() error { return e.Err }

func (e *ExchangeFailure) Is(target error) bool { return target == ErrExchangeFailure }

// VoiceChannelFailure reports that starting or maintaining a voice call failed.
type VoiceChannelFailure struct {
	Err error
}

func (e *VoiceChannelFailure) Error() string {
	return fmt.Sprintf("voice channel failure: %v", e.Err)
}

func (e *VoiceChannelFailure) Unwrap() error { return e.Err }
