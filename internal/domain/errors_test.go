package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("connect", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "connect: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "connect: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("read", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
		if IsDecodeError(err) {
			t.Error("Network error must not be classified as a decode error")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("dial", baseErr)
		fatal := NewFatalNetworkError("read", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "feed.address", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [feed.address]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

func TestNumberError(t *testing.T) {
	err := &NumberError{Field: "bid", Input: "18x.5", Reason: ReasonInvalidDigit, Pos: 2}

	if !errors.Is(err, ErrInvalidNumber) {
		t.Error("NumberError should unwrap to ErrInvalidNumber")
	}
	if !IsDecodeError(err) {
		t.Error("NumberError should be a decode error")
	}

	expected := `field bid: invalid digit in "18x.5" at 2`
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}

	noPos := &NumberError{Field: "total_volume", Input: "99999999999999999999", Reason: ReasonOverflow, Pos: -1}
	if noPos.Error() != `field total_volume: numeric overflow in "99999999999999999999"` {
		t.Errorf("unexpected message %q", noPos.Error())
	}
}

func TestTimeError(t *testing.T) {
	_, parseErr := time.Parse("15:04:05", "25:00:00")
	err := &TimeError{Field: "last_time", Input: "25:00:00", Err: parseErr}

	if !errors.Is(err, ErrInvalidTime) {
		t.Error("TimeError should unwrap to ErrInvalidTime")
	}
	var pe *time.ParseError
	if !errors.As(err, &pe) {
		t.Error("TimeError should expose the underlying *time.ParseError")
	}
	if !IsDecodeError(err) {
		t.Error("TimeError should be a decode error")
	}
}

func TestFieldCountError(t *testing.T) {
	err := &FieldCountError{Tag: "Q", Want: 17, Got: 3}
	if !errors.Is(err, ErrFieldCount) {
		t.Error("FieldCountError should unwrap to ErrFieldCount")
	}
	if err.Error() != `record "Q": want 17 fields, got 3` {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestNumberReason_String(t *testing.T) {
	tests := []struct {
		reason NumberReason
		want   string
	}{
		{ReasonEmpty, "empty input"},
		{ReasonInvalidDigit, "invalid digit"},
		{ReasonOverflow, "numeric overflow"},
		{ReasonUnderflow, "numeric underflow"},
		{ReasonEmptyMantissa, "empty mantissa"},
		{ReasonEmptyExponent, "empty exponent"},
		{ReasonInvalidExponent, "malformed exponent"},
		{NumberReason(0), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("NumberReason(%d).String() = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestIsDecodeError(t *testing.T) {
	if !IsDecodeError(ErrInvalidUTF8) {
		t.Error("ErrInvalidUTF8 should be a decode error")
	}
	if IsDecodeError(ErrChannelClosed) {
		t.Error("ErrChannelClosed must not be a decode error")
	}
	if IsDecodeError(nil) {
		t.Error("nil must not be a decode error")
	}
}
