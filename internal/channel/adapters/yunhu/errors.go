package yunhu

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage indicates a message with no segments was passed to Serialize.
	ErrEmptyMessage = errors.New("cannot serialize empty message")
	// ErrNoReplyTarget indicates the event carries no chat that a reply could go to.
	ErrNoReplyTarget = errors.New("cannot determine reply target for event")
	// ErrUnknownContentType indicates a content discriminator with no registered variant.
	ErrUnknownContentType = errors.New("unknown content type")
)

// UnknownBotError is returned when a webhook arrives for an app ID with no registered bot.
type UnknownBotError struct {
	AppID string
}

func (e *UnknownBotError) Error() string {
	return fmt.Sprintf("yunhu bot not registered: %s", e.AppID)
}

// ParseError reports a payload that could not be decoded into the named variant.
type ParseError struct {
	Variant string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Variant == "" {
		return fmt.Sprintf("yunhu parse: %v", e.Err)
	}
	return fmt.Sprintf("yunhu parse %s: %v", e.Variant, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingResourceDataError is returned by the upload pipeline for a media
// segment that has neither a resource key nor raw bytes.
type MissingResourceDataError struct {
	SegmentType string
}

func (e *MissingResourceDataError) Error() string {
	return fmt.Sprintf("%s segment missing both resource key and raw data", e.SegmentType)
}

// NetworkError wraps a transport failure or a non-2xx response.
type NetworkError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("yunhu http request failed: %v", e.Err)
	}
	return fmt.Sprintf("yunhu http request received unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ActionFailedError is an application-level rejection: a 2xx response whose
// envelope code is not 1 or whose data is missing.
type ActionFailedError struct {
	Code int
	Msg  string
}

func (e *ActionFailedError) Error() string {
	return fmt.Sprintf("yunhu api call failed: %s (code: %d)", e.Msg, e.Code)
}
