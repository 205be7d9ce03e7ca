package value

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// NumericPattern is the grammar a textual form must match to be coerced to a
// number. It is also usable as a POSIX regular expression by SQL stores.
const NumericPattern = `^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]{1,3})?$`

var numericRegexp = regexp.MustCompile(NumericPattern)

// maxExponent bounds the decimal exponent of stored numbers.
const maxExponent = 1000

// ParseNumeric coerces a textual form to an exact decimal. It reports false
// when the text does not match NumericPattern.
func ParseNumeric(text string) (decimal.Decimal, bool) {
	if !numericRegexp.MatchString(text) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// CanonicalNumber renders a number literal the way a PostgreSQL numeric does:
// exponents are expanded and the input scale is kept, so "1.50" stays "1.50",
// "1e3" becomes "1000" and "-0" becomes "0".
func CanonicalNumber(lit string) (string, error) {
	lit = strings.TrimSpace(lit)
	if lit == "" {
		return "", errors.New("empty number literal")
	}
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return "", errors.Wrapf(err, "invalid number literal %q", lit)
	}
	exp := d.Exponent()
	if exp > maxExponent || exp < -maxExponent {
		return "", errors.Errorf("number literal %q out of range", lit)
	}
	scale := int32(0)
	if exp < 0 {
		scale = -exp
	}
	return d.StringFixed(scale), nil
}
