package iqfeed

import (
	"sync"
	"time"
	_ "time/tzdata" // feed zone must resolve on hosts without a zoneinfo database

	"iqfeed_go/internal/domain"
)

const (
	// FeedTimeZone is where the vendor's wall-clock timestamps originate (UTC-4/-5 by DST).
	FeedTimeZone = "America/New_York"

	tradeTimeLayout = "15:04:05.000000"
	syncTimeLayout  = "20060102 15:04:05"
)

// timeFormats holds the time parsing descriptors. Built once, read-only after.
type timeFormats struct {
	trade string
	sync  string
	feed  *time.Location
}

var loadTimeFormats = sync.OnceValue(func() *timeFormats {
	loc, err := time.LoadLocation(FeedTimeZone)
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return &timeFormats{
		trade: tradeTimeLayout,
		sync:  syncTimeLayout,
		feed:  loc,
	}
})

// parseTradeTime combines the vendor time-of-day with the UTC date of now.
// Trade records never carry a date.
func parseTradeTime(field, s string, now time.Time) (int64, error) {
	tod, err := time.Parse(loadTimeFormats().trade, s)
	if err != nil {
		return 0, &domain.TimeError{Field: field, Input: s, Err: err}
	}

	now = now.UTC()
	t := time.Date(now.Year(), now.Month(), now.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), tod.Nanosecond(), time.UTC)
	return t.UnixNano(), nil
}

// parseSyncTime reads a dated feed timestamp in the feed zone and returns UTC nanoseconds.
func parseSyncTime(field, s string) (int64, error) {
	f := loadTimeFormats()
	t, err := time.ParseInLocation(f.sync, s, f.feed)
	if err != nil {
		return 0, &domain.TimeError{Field: field, Input: s, Err: err}
	}
	return t.UTC().UnixNano(), nil
}
