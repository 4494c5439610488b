// Package decimal provides the exact decimal number used for every price and
// quantity crossing the adapter boundary.
package decimal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidNumericLiteral is returned when a string is not a decimal literal.
var ErrInvalidNumericLiteral = errors.New("invalid numeric literal")

var literalRegexp = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)(?:[eE]([+-]?\d+))?$`)

// maxExponent bounds the scientific exponent so a short literal cannot ask
// for a huge expansion.
const maxExponent = 1000

// Decimal is an immutable arbitrary-precision base-10 number.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the decimal 0.
var Zero = Decimal{d: decimal.Zero}

// Parse reads a plain or scientific literal such as "0.10", "-3", "1.51e-6"
// or "2.00600E+003".
func Parse(literal string) (Decimal, error) {
	s := strings.TrimSpace(literal)
	m := literalRegexp.FindStringSubmatch(s)
	if m == nil {
		return Decimal{}, fmt.Errorf("%w: %q", ErrInvalidNumericLiteral, literal)
	}
	if m[2] != "" {
		exp, err := strconv.ParseInt(m[2], 10, 32)
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return Decimal{}, fmt.Errorf("%w: %q: exponent out of range", ErrInvalidNumericLiteral, literal)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("%w: %q: %v", ErrInvalidNumericLiteral, literal, err)
	}
	return Decimal{d: d}, nil
}

// MustParse is Parse for literals known to be valid. It panics otherwise.
func MustParse(literal string) Decimal {
	d, err := Parse(literal)
	if err != nil {
		panic(err)
	}
	return d
}

// Normalize parses literal and returns its canonical string.
func Normalize(literal string) (string, error) {
	d, err := Parse(literal)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// String renders the canonical form: no exponent, no trailing fractional
// zeros, "0" for zero.
func (x Decimal) String() string {
	return x.d.String()
}

// Cmp returns -1, 0 or +1 comparing x with y by value.
func (x Decimal) Cmp(y Decimal) int {
	return x.d.Cmp(y.d)
}

func (x Decimal) Equal(y Decimal) bool {
	return x.d.Equal(y.d)
}

func (x Decimal) LessThan(y Decimal) bool {
	return x.d.LessThan(y.d)
}

func (x Decimal) IsZero() bool {
	return x.d.IsZero()
}

// Sign returns -1, 0 or +1.
func (x Decimal) Sign() int {
	return x.d.Sign()
}

func (x Decimal) Sub(y Decimal) Decimal {
	return Decimal{d: x.d.Sub(y.d)}
}

func (x Decimal) Add(y Decimal) Decimal {
	return Decimal{d: x.d.Add(y.d)}
}

func (x Decimal) Abs() Decimal {
	return Decimal{d: x.d.Abs()}
}

func (x Decimal) Neg() Decimal {
	return Decimal{d: x.d.Neg()}
}

// MarshalText emits the canonical string.
func (x Decimal) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

func (x *Decimal) UnmarshalText(text []byte) error {
	d, err := Parse(string(text))
	if err != nil {
		return err
	}
	*x = d
	return nil
}
