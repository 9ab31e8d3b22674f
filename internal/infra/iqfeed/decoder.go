package iqfeed

import (
	"strings"
	"time"
	"unicode/utf8"

	"iqfeed_go/internal/domain"
)

// FieldSeparator splits a record into positional fields.
const FieldSeparator = ","

// Record type tags
const (
	TagTrade     = "Q"
	TagTimestamp = "T"
	TagServer    = "O"
)

// tradeFields is the fixed layout length of a "Q" record
// (tag, 14 values, message contents, trade conditions).
const tradeFields = 17

// Decoder turns one delimiter-free frame into a domain.Message.
// A Decoder holds no per-frame state and is safe for concurrent use.
type Decoder struct {
	// SkipUTF8Check turns off UTF-8 validation for trusted feeds.
	// With it set, a frame holding invalid UTF-8 decodes to unspecified field
	// text instead of failing with domain.ErrInvalidUTF8.
	SkipUTF8Check bool

	// Now dates trade records, which carry only a time of day. Defaults to time.Now.
	Now func() time.Time
}

// NewDecoder creates a Decoder with validation on and the wall clock
func NewDecoder() *Decoder {
	return &Decoder{Now: time.Now}
}

// Decode parses one frame. Unknown type tags yield *domain.None, never an error.
// Parsing stops at the first bad field.
func (d *Decoder) Decode(frame []byte) (domain.Message, error) {
	if !d.SkipUTF8Check && !utf8.Valid(frame) {
		return nil, domain.ErrInvalidUTF8
	}

	text := string(frame)
	fields := strings.Split(text, FieldSeparator)

	switch fields[0] {
	case TagTrade:
		return d.decodeTrade(fields)
	case TagTimestamp:
		return decodeTimestamp(fields)
	case TagServer:
		return decodeServer(text), nil
	default:
		return &domain.None{Tag: fields[0]}, nil
	}
}

func (d *Decoder) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Decoder) decodeTrade(f []string) (domain.Message, error) {
	if len(f) < tradeFields {
		return nil, &domain.FieldCountError{Tag: TagTrade, Want: tradeFields, Got: len(f)}
	}

	var (
		t   = &domain.Trade{Symbol: f[1]}
		err error
	)

	if t.LastPrice, err = parseDecimal("last_price", f[2]); err != nil {
		return nil, err
	}
	if t.LastSize, err = parseInt("last_size", f[3]); err != nil {
		return nil, err
	}
	if t.LastTimeUnixNano, err = parseTradeTime("last_time", f[4], d.now()); err != nil {
		return nil, err
	}
	if t.LastMarketCenter, err = parseInt("last_market_center", f[5]); err != nil {
		return nil, err
	}
	if t.TotalVolume, err = parseInt("total_volume", f[6]); err != nil {
		return nil, err
	}
	if t.Bid, err = optionalDecimal("bid", f[7]); err != nil {
		return nil, err
	}
	if t.BidSize, err = optionalInt("bid_size", f[8]); err != nil {
		return nil, err
	}
	if t.Ask, err = optionalDecimal("ask", f[9]); err != nil {
		return nil, err
	}
	if t.AskSize, err = optionalInt("ask_size", f[10]); err != nil {
		return nil, err
	}
	if t.Open, err = optionalDecimal("open", f[11]); err != nil {
		return nil, err
	}
	if t.High, err = optionalDecimal("high", f[12]); err != nil {
		return nil, err
	}
	if t.Low, err = optionalDecimal("low", f[13]); err != nil {
		return nil, err
	}
	if t.Close, err = optionalDecimal("close", f[14]); err != nil {
		return nil, err
	}

	t.MessageContents = f[15]
	t.LastTradeConditions = f[16]
	return t, nil
}

// T,<yyyymmdd hh:mm:ss>
func decodeTimestamp(f []string) (domain.Message, error) {
	if len(f) < 2 {
		return nil, &domain.FieldCountError{Tag: TagTimestamp, Want: 2, Got: len(f)}
	}
	ns, err := parseSyncTime("timestamp", f[1])
	if err != nil {
		return nil, err
	}
	return &domain.Timestamp{UnixNano: ns}, nil
}

func decodeServer(text string) domain.Message {
	msg := &domain.ServerMessage{}
	if i := strings.Index(text, FieldSeparator); i >= 0 {
		msg.Text = text[i+1:]
	}
	return msg
}
