package domain

import (
	"errors"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport failure on the feed socket.
// The frame reader never retries; Retriable is a hint for whoever owns reconnection.
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "write")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrConnectionFailed is returned when the feed socket cannot be opened.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrChannelClosed is returned by the frame reader when the downstream queue
	// no longer accepts values. It ends the reader loop.
	ErrChannelClosed = errors.New("downstream channel closed")

	// ErrInvalidSymbol is returned when a watch command is given an empty symbol.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// Decode error classes. Every per-message failure unwraps to one of these.
var (
	ErrInvalidUTF8   = errors.New("frame is not valid utf-8")
	ErrInvalidNumber = errors.New("invalid number")
	ErrInvalidTime   = errors.New("invalid time")
	ErrFieldCount    = errors.New("missing fields")
)

// IsDecodeError reports whether err is a per-message decode failure.
// Decode failures never end a stream; transport and channel errors do.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrInvalidUTF8) ||
		errors.Is(err, ErrInvalidNumber) ||
		errors.Is(err, ErrInvalidTime) ||
		errors.Is(err, ErrFieldCount)
}

// NumberReason classifies why numeric text was rejected.
// Leading zeros are not a reason: the feed sends zero-padded values such as "0.0".
type NumberReason int

const (
	ReasonEmpty NumberReason = iota + 1
	ReasonInvalidDigit
	ReasonOverflow
	ReasonUnderflow
	ReasonEmptyMantissa
	ReasonEmptyExponent
	ReasonInvalidExponent
)

// String returns the human-readable reason
func (r NumberReason) String() string {
	switch r {
	case ReasonEmpty:
		return "empty input"
	case ReasonInvalidDigit:
		return "invalid digit"
	case ReasonOverflow:
		return "numeric overflow"
	case ReasonUnderflow:
		return "numeric underflow"
	case ReasonEmptyMantissa:
		return "empty mantissa"
	case ReasonEmptyExponent:
		return "empty exponent"
	case ReasonInvalidExponent:
		return "malformed exponent"
	default:
		return "unknown"
	}
}

// NumberError is returned when a numeric field cannot be parsed.
type NumberError struct {
	Field  string
	Input  string
	Reason NumberReason
	Pos    int // byte offset of the offending character, -1 if not applicable
}

func (e *NumberError) Error() string {
	msg := "field " + e.Field + ": " + e.Reason.String() + " in " + strconv.Quote(e.Input)
	if e.Pos >= 0 {
		msg += " at " + strconv.Itoa(e.Pos)
	}
	return msg
}

func (e *NumberError) Unwrap() error {
	return ErrInvalidNumber
}

// TimeError is returned when a time field does not match the vendor layout.
type TimeError struct {
	Field string
	Input string
	Err   error
}

func (e *TimeError) Error() string {
	return "field " + e.Field + ": cannot parse time " + strconv.Quote(e.Input) + ": " + e.Err.Error()
}

func (e *TimeError) Unwrap() []error {
	return []error{ErrInvalidTime, e.Err}
}

// FieldCountError is returned when a recognized record is shorter than its layout.
type FieldCountError struct {
	Tag  string
	Want int
	Got  int
}

func (e *FieldCountError) Error() string {
	return "record " + strconv.Quote(e.Tag) + ": want " + strconv.Itoa(e.Want) + " fields, got " + strconv.Itoa(e.Got)
}

func (e *FieldCountError) Unwrap() error {
	return ErrFieldCount
}
