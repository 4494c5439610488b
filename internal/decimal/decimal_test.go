package decimal

import (
	"errors"
	"testing"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.51e-6", "0.00000151"},
		{"1.51E-6", "0.00000151"},
		{"3.14159e+000", "3.14159"},
		{"2.00600e+003", "2006"},
		{"1.00000e-010", "0.0000000001"},
		{"0.10", "0.1"},
		{"007.50", "7.5"},
		{"-0.0", "0"},
		{"+12", "12"},
		{".5", "0.5"},
		{"100", "100"},
		{"0.000000549410817836", "0.000000549410817836"},
		{"123456789012345678901234567890.000000000000000000001", "123456789012345678901234567890.000000000000000000001"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if got.String() != tt.want {
			t.Errorf("Parse(%q).String() = %q, want %q", tt.in, got.String(), tt.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1e", "--1", "NaN", "Inf", "0x10", "1,5", "e5"} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidNumericLiteral) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidNumericLiteral", in, err)
		}
	}
}

func TestParseBoundsExponent(t *testing.T) {
	for _, in := range []string{"1e1001", "1e-1001", "1e-2000000000", "1e99999999999999999999"} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidNumericLiteral) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidNumericLiteral", in, err)
		}
	}
	d, err := Parse("1e1000")
	if err != nil {
		t.Fatalf("Parse(1e1000): %v", err)
	}
	if got := len(d.String()); got != 1001 {
		t.Fatalf("1e1000 rendered with %d digits", got)
	}
	if _, err := Parse("2.5E-1000"); err != nil {
		t.Fatalf("Parse(2.5E-1000): %v", err)
	}
}

func TestCmp(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.51e-6", "1.5113e-6", -1},
		{"1.51E-6", "1.5113E-6", -1},
		{"1.5113e-6", "1.51e-6", 1},
		{"0.10", "0.1", 0},
		{"2006", "2.00600e+003", 0},
		{"-1", "0", -1},
	}
	for _, tt := range tests {
		if got := MustParse(tt.a).Cmp(MustParse(tt.b)); got != tt.want {
			t.Errorf("Cmp(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSub(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"0.000000549410817836", "0", "0.000000549410817836"},
		{"0.3", "0.1", "0.2"},
		{"1", "1.000", "0"},
		{"0.02", "0.05", "-0.03"},
	}
	for _, tt := range tests {
		if got := MustParse(tt.a).Sub(MustParse(tt.b)).String(); got != tt.want {
			t.Errorf("%s - %s = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("1891.40")
	if err != nil || got != "1891.4" {
		t.Fatalf("Normalize = %q, %v", got, err)
	}
	if _, err := Normalize("x"); !errors.Is(err, ErrInvalidNumericLiteral) {
		t.Fatalf("expected invalid literal, got %v", err)
	}
}

func TestAbsAndSign(t *testing.T) {
	d := MustParse("-0.0335")
	if d.Sign() != -1 || d.Abs().String() != "0.0335" || d.Neg().String() != "0.0335" {
		t.Fatalf("unexpected abs/sign for %s", d)
	}
	if !Zero.IsZero() || MustParse("7").Sign() != 1 {
		t.Fatalf("constructors broken")
	}
}

func TestTextRoundTrip(t *testing.T) {
	var d Decimal
	if err := d.UnmarshalText([]byte("2.50")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	text, _ := d.MarshalText()
	if string(text) != "2.5" {
		t.Fatalf("MarshalText = %s", text)
	}
}
