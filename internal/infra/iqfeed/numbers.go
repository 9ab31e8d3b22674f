package iqfeed

import (
	"errors"
	"strconv"

	"iqfeed_go/internal/domain"

	"github.com/shopspring/decimal"
)

// parseInt parses a strict base-10 integer with an optional sign.
func parseInt(field, s string) (int64, error) {
	if s == "" {
		return 0, numberErr(field, s, domain.ReasonEmpty, -1)
	}

	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	if i == len(s) {
		return 0, numberErr(field, s, domain.ReasonEmpty, -1)
	}
	for ; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, numberErr(field, s, domain.ReasonInvalidDigit, i)
		}
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && s[0] == '-' {
			return 0, numberErr(field, s, domain.ReasonUnderflow, -1)
		}
		return 0, numberErr(field, s, domain.ReasonOverflow, -1)
	}
	return v, nil
}

// maxDecimalOrder bounds the base-10 order of magnitude of a parsed decimal (float64 range).
const maxDecimalOrder = 308

// parseDecimal parses [sign] digits [. digits] [e [sign] digits] into an exact decimal.
// The grammar is checked first so the error can say what is wrong with the text.
func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, numberErr(field, s, domain.ReasonEmpty, -1)
	}

	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}

	mantissa := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		mantissa++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && isDigit(s[i]); i++ {
			mantissa++
		}
	}

	if i < len(s) && s[i] != 'e' && s[i] != 'E' {
		return decimal.Zero, numberErr(field, s, domain.ReasonInvalidDigit, i)
	}
	if mantissa == 0 {
		return decimal.Zero, numberErr(field, s, domain.ReasonEmptyMantissa, -1)
	}

	negExp := false
	if i < len(s) {
		i++ // 'e'
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			negExp = s[i] == '-'
			i++
		}
		if i == len(s) {
			return decimal.Zero, numberErr(field, s, domain.ReasonEmptyExponent, -1)
		}
		for ; i < len(s); i++ {
			if !isDigit(s[i]) {
				return decimal.Zero, numberErr(field, s, domain.ReasonInvalidExponent, i)
			}
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		// grammar is valid, so only the exponent range can fail here
		if negExp {
			return decimal.Zero, numberErr(field, s, domain.ReasonUnderflow, -1)
		}
		return decimal.Zero, numberErr(field, s, domain.ReasonOverflow, -1)
	}

	// Rendering a decimal materializes every digit, so magnitudes far outside
	// any price are rejected here rather than stalling a consumer later.
	switch order := d.NumDigits() + int(d.Exponent()) - 1; {
	case order > maxDecimalOrder:
		return decimal.Zero, numberErr(field, s, domain.ReasonOverflow, -1)
	case order < -maxDecimalOrder:
		return decimal.Zero, numberErr(field, s, domain.ReasonUnderflow, -1)
	}
	return d, nil
}

// optionalInt returns nil for an empty field and never parses it.
func optionalInt(field, s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseInt(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// optionalDecimal returns nil for an empty field and never parses it.
func optionalDecimal(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDecimal(field, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func numberErr(field, s string, reason domain.NumberReason, pos int) error {
	return &domain.NumberError{Field: field, Input: s, Reason: reason, Pos: pos}
}
