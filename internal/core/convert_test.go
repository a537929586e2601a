package core

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ParseAmount Tests
// ----------------------------------------------------------------------------

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string // StringFixed(2) of the result
		wantErr bool
	}{
		{name: "integer", input: "123", want: "123.00"},
		{name: "zero", input: "0", want: "0.00"},
		{name: "negative", input: "-456", want: "-456.00"},
		{name: "decimal", input: "123.45", want: "123.45"},
		{name: "leading decimal point", input: ".99", want: "0.99"},
		{name: "dollar with thousands", input: "$1,234.56", want: "1234.56"},
		{name: "euro", input: "€1234.56", want: "1234.56"},
		{name: "pound", input: "£1234.56", want: "1234.56"},
		{name: "accounting negative", input: "($1,234.56)", want: "-1234.56"},
		{name: "accounting with spaces", input: "( 999.99 )", want: "-999.99"},
		{name: "surrounding whitespace", input: "  42.10 ", want: "42.10"},
		{name: "rounds half away from zero", input: "10.005", want: "10.01"},
		{name: "rounds negative half away from zero", input: "-10.005", want: "-10.01"},
		{name: "rounds down", input: "10.004", want: "10.00"},
		{name: "scientific notation", input: "1.5e3", want: "1500.00"},
		{name: "largest allowed", input: "9999999999.99", want: "9999999999.99"},

		{name: "eleven integer digits", input: "10000000000", wantErr: true},
		{name: "rounds past the limit", input: "9999999999.995", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "letters", input: "abc", wantErr: true},
		{name: "double negative", input: "(-5)", wantErr: true},
		{name: "two decimal points", input: "1.2.3", wantErr: true},
		{name: "huge exponent", input: "1e900000000", wantErr: true},
		{name: "huge negative exponent", input: "1e-900000000", wantErr: true},
		{name: "exponent overflows int", input: "1e99999999999999999999", wantErr: true},
		{name: "exponent just past limit", input: "1e-21", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %s, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.input, err)
			}
			if got.StringFixed(2) != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got.StringFixed(2), tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "iso", input: "2024-03-15", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "iso with spaces", input: " 2024-03-15 ", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "us slashes", input: "3/15/2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "compact", input: "20240315", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "month name", input: "Mar 15, 2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "two digit year", input: "3/15/24", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "two digit year last century", input: "3/15/99", want: time.Date(1999, 3, 15, 0, 0, 0, 0, time.UTC)},

		{name: "empty", input: "", wantErr: true},
		{name: "not a date", input: "yesterday", wantErr: true},
		{name: "impossible day", input: "2024-02-30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDate(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseID Tests
// ----------------------------------------------------------------------------

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "1", want: 1},
		{input: " 42 ", want: 42},
		{input: "7.0", want: 7},
		{input: "+9", want: 9},
		{input: "9223372036854775807", want: 9223372036854775807},

		{input: "1.5", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
		{input: "true", wantErr: true},
		{input: "9223372036854775808", wantErr: true},
		{input: "1e900000000", wantErr: true},
		{input: "1e-900000000", wantErr: true},
		{input: "12e2", want: 1200},
	}

	for _, tt := range tests {
		got, err := ParseID(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseID(%q) = %d, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseID(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseID(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Cell cleanup Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello  ", "hello"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTrimCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello  ", "hello"},
		{`="00123"`, "00123"},
		{"=N/A", "=N/A"},
		{`Acme "Gold"`, `Acme "Gold"`},
		{`"quoted"`, `"quoted"`},
		{"O'Brien'", "O'Brien'"},
		{`="`, `="`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := TrimCell(tt.input); got != tt.want {
			t.Errorf("TrimCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestParseHugeExponentReturns guards against exponents that would make
// the decimal rescale run for minutes.
func TestParseHugeExponentReturns(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, s := range []string{"1e900000000", "1e-900000000", "-5E900000000"} {
			if _, err := ParseAmount(s); err == nil {
				t.Errorf("ParseAmount(%q) succeeded, want error", s)
			}
			if _, err := ParseID(s); err == nil {
				t.Errorf("ParseID(%q) succeeded, want error", s)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("parsing a huge exponent did not return")
	}
}

func TestNormalizeCPTCodes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"99213,99214", "99213,99214"},
		{" 99213 , 99214 ,", "99213,99214"},
		{"", ""},
		{" , ", ""},
		{"A1", "A1"},
	}

	for _, tt := range tests {
		if got := NormalizeCPTCodes(tt.input); got != tt.want {
			t.Errorf("NormalizeCPTCodes(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Smith", "%smith%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`c:\x`, `%c:\\x%`},
	}

	for _, tt := range tests {
		if got := LikePattern(tt.input); got != tt.want {
			t.Errorf("LikePattern(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
