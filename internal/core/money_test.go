package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{" 2.50 ", "2.5", true},
		{"-7.1", "-7.1", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,000.5", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "%q parsed as %s", tc.in, got)
	}
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, "33.33", RoundCents(decimal.NewFromInt(100).Div(decimal.NewFromInt(3))).StringFixed(2))
	assert.Equal(t, "0.01", RoundCents(decimal.RequireFromString("0.005")).String())
	assert.Equal(t, "-0.01", RoundCents(decimal.RequireFromString("-0.005")).String())
}

func TestValidAmount(t *testing.T) {
	cases := map[string]bool{
		"0":                        true,
		"-42.5":                    true,
		"12.3456":                  true,
		"12.34560000":              true,
		"999999999999.99":          true,
		"1000000000000":            false,
		"-1000000000000":           false,
		"12.34567":                 false,
		"1e-3000000":               false,
		"1e3000000":                false,
		"1.0000000000000000000000": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidAmount(decimal.RequireFromString(in)), "amount %s", in)
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-02", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2025-01-02T15:04:05", time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"2025-01-02 15:04:05", time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"2025-01-02T01:00:00+02:00", time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTime(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s -> %s", tc.in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := ParseTime("yesterday")
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = ParseTime("")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
