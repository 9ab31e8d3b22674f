package iqfeed

import (
	"errors"
	"testing"
	"time"

	"iqfeed_go/internal/domain"
)

func TestParseTradeTime(t *testing.T) {
	// late evening in New York is already the next day in UTC
	now := time.Date(2021, 4, 8, 23, 30, 0, 0, time.FixedZone("EDT", -4*60*60))

	got, err := parseTradeTime("last_time", "16:40:18.814943", now)
	if err != nil {
		t.Fatalf("parseTradeTime failed: %v", err)
	}

	want := time.Date(2021, 4, 9, 16, 40, 18, 814943000, time.UTC).UnixNano()
	if got != want {
		t.Errorf("parseTradeTime = %d (%s), want %d", got, time.Unix(0, got).UTC(), want)
	}
}

func TestParseTradeTime_Errors(t *testing.T) {
	now := time.Now()
	for _, in := range []string{"", "16:40:18", "16:40:18.81", "25:00:00.000000", "16-40-18.814943"} {
		_, err := parseTradeTime("last_time", in, now)
		if !errors.Is(err, domain.ErrInvalidTime) {
			t.Errorf("parseTradeTime(%q) = %v, want ErrInvalidTime", in, err)
		}
	}
}

func TestParseSyncTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		// April: daylight saving, UTC-4
		{"summer", "20210408 14:30:28", time.Date(2021, 4, 8, 18, 30, 28, 0, time.UTC)},
		// January: standard time, UTC-5
		{"winter", "20210115 09:00:00", time.Date(2021, 1, 15, 14, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSyncTime("timestamp", tt.in)
			if err != nil {
				t.Fatalf("parseSyncTime failed: %v", err)
			}
			if got != tt.want.UnixNano() {
				t.Errorf("parseSyncTime(%q) = %s, want %s", tt.in, time.Unix(0, got).UTC(), tt.want)
			}
		})
	}
}

func TestParseSyncTime_Errors(t *testing.T) {
	for _, in := range []string{"", "2021-04-08 14:30:28", "20210408", "20211308 14:30:28"} {
		_, err := parseSyncTime("timestamp", in)
		var te *domain.TimeError
		if !errors.As(err, &te) {
			t.Errorf("parseSyncTime(%q) = %v, want TimeError", in, err)
			continue
		}
		if te.Input != in {
			t.Errorf("TimeError.Input = %q, want %q", te.Input, in)
		}
	}
}

func TestTimeFormatsAreShared(t *testing.T) {
	if loadTimeFormats() != loadTimeFormats() {
		t.Error("time formats should be built once")
	}
	if loadTimeFormats().feed.String() != FeedTimeZone {
		t.Errorf("feed zone = %s, want %s", loadTimeFormats().feed, FeedTimeZone)
	}
}
