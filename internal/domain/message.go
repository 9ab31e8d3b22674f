package domain

import "github.com/shopspring/decimal"

// Kind identifies the variant carried by a Message.
type Kind int

const (
	KindNone Kind = iota
	KindTrade
	KindTimestamp
	KindServer
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindTrade:
		return "trade"
	case KindTimestamp:
		return "timestamp"
	case KindServer:
		return "server"
	default:
		return "none"
	}
}

// Message is one decoded feed record.
// The set of implementations is closed: Trade, Timestamp, ServerMessage and None.
// Consumers switch on the concrete type (or on Kind) to handle each variant.
type Message interface {
	Kind() Kind
	isMessage()
}

// Trade is the record decoded from a "Q" update.
// Optional fields are nil when the vendor left the field empty.
type Trade struct {
	Symbol              string           `json:"symbol"`
	LastPrice           decimal.Decimal  `json:"last_price"`
	LastSize            int64            `json:"last_size"`
	LastTimeUnixNano    int64            `json:"last_time"` // UTC nanoseconds since epoch
	LastMarketCenter    int64            `json:"last_market_center"`
	TotalVolume         int64            `json:"total_volume"`
	Bid                 *decimal.Decimal `json:"bid,omitempty"`
	BidSize             *int64           `json:"bid_size,omitempty"`
	Ask                 *decimal.Decimal `json:"ask,omitempty"`
	AskSize             *int64           `json:"ask_size,omitempty"`
	Open                *decimal.Decimal `json:"open,omitempty"`
	High                *decimal.Decimal `json:"high,omitempty"`
	Low                 *decimal.Decimal `json:"low,omitempty"`
	Close               *decimal.Decimal `json:"close,omitempty"`
	MessageContents     string           `json:"message_contents"`
	LastTradeConditions string           `json:"last_trade_conditions"`
}

func (*Trade) Kind() Kind { return KindTrade }
func (*Trade) isMessage() {}

// Timestamp is a feed time-sync record ("T").
type Timestamp struct {
	UnixNano int64 `json:"unix_nano"`
}

func (*Timestamp) Kind() Kind { return KindTimestamp }
func (*Timestamp) isMessage() {}

// ServerMessage is an administrative notice ("O"). Its payload is kept verbatim.
type ServerMessage struct {
	Text string `json:"text"`
}

func (*ServerMessage) Kind() Kind { return KindServer }
func (*ServerMessage) isMessage() {}

// None is returned for every type tag the decoder does not interpret.
type None struct {
	Tag string `json:"tag"`
}

func (*None) Kind() Kind { return KindNone }
func (*None) isMessage() {}

// Result is one decoded frame as handed downstream.
// Exactly one of Message and Err is set; Frame is the raw record it came from.
type Result struct {
	Message Message
	Frame   []byte
	Err     error
}

// Envelope is the JSON shape used when a message leaves the process.
type Envelope struct {
	Type string  `json:"type"`
	Data Message `json:"data"`
}

// NewEnvelope wraps msg with its kind name
func NewEnvelope(msg Message) Envelope {
	return Envelope{Type: msg.Kind().String(), Data: msg}
}
