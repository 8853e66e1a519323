package numbering

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		template string
		value    string
		want     *Parsed
	}{
		{
			name:     "plain counter",
			template: "####",
			value:    "0001",
			want:     &Parsed{Number: 1},
		},
		{
			name:     "bracket literal prefix",
			template: "[INV]-####",
			value:    "INV-0042",
			want:     &Parsed{Number: 42},
		},
		{
			name:     "year month counter",
			template: "YYMM-###",
			value:    "2412-005",
			want:     &Parsed{Year: 2024, HasYear: true, Month: 12, HasMonth: true, Number: 5},
		},
		{
			name:     "four digit year and day",
			template: "YYYY/MM/DD-##",
			value:    "2024/03/07-09",
			want:     &Parsed{Year: 2024, HasYear: true, Month: 3, HasMonth: true, Day: 7, HasDay: true, Number: 9},
		},
		{
			name:     "bare character literal",
			template: "R####",
			value:    "R0010",
			want:     &Parsed{Number: 10},
		},
		{
			name:     "trailing leftovers rejected",
			template: "[INV]-####",
			value:    "INV-0001-",
			want:     nil,
		},
		{
			name:     "literal mismatch rejected",
			template: "[IN]-####",
			value:    "INV-0001",
			want:     nil,
		},
		{
			name:     "non numeric counter rejected",
			template: "####",
			value:    "00A1",
			want:     nil,
		},
		{
			name:     "value too short rejected",
			template: "[INV]-####",
			value:    "INV-01",
			want:     nil,
		},
		{
			name:     "empty value rejected",
			template: "####",
			value:    "",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.template, tt.value)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	now := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		template string
		number   int
		want     string
	}{
		{"plain counter", "####", 2, "0002"},
		{"bracket literal", "[INV]-####", 13, "INV-0013"},
		{"two digit year", "YY-###", 1, "24-001"},
		{"four digit year with month and day", "YYYY/MM/DD-##", 5, "2024/03/07-05"},
		{"counter outgrows width", "##", 123, "123"},
		{"bare literals", "A#B", 7, "A7B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.template, tt.number, now))
		})
	}
}

func TestNextSimpleIncrement(t *testing.T) {
	now := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "0002", Next("####", "####", "0001", now))
}

func TestNextPrefixed(t *testing.T) {
	now := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-0002", Next("[INV]-####", "####", "INV-0001", now))
}

func TestNextAnnualReset(t *testing.T) {
	now := time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)

	// Last number issued in December of the previous year; the increment
	// template resets yearly, so the counter restarts at 1 stamped with the
	// current year and month.
	got := Next("YYMM-###", "YY-###", "2412-107", now)
	assert.Equal(t, "2503-001", got)
}

func TestNextSameYearKeepsCounting(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	// Display shows year+month but the sequence only resets annually: a last
	// value from an earlier month of the same year keeps incrementing.
	got := Next("YYMM-###", "YY-###", "2401-010", now)
	assert.Equal(t, "2406-011", got)
}

func TestNextMonthlyReset(t *testing.T) {
	now := time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)
	got := Next("YYMM-###", "YYMM-###", "2403-055", now)
	assert.Equal(t, "2404-001", got)
}

func TestNextRestartsOnUnparseableLastValue(t *testing.T) {
	now := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)

	for _, last := range []string{"", "garbage", "INV-00", "0001-"} {
		t.Run(fmt.Sprintf("last=%q", last), func(t *testing.T) {
			assert.Equal(t, "INV-0001", Next("[INV]-####", "####", last, now))
		})
	}
}

func TestNextRoundTripsThroughParse(t *testing.T) {
	now := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	template := "[OFF]/YYYY/#####"

	value := Next(template, "YYYY-#####", "", now)
	require.Equal(t, "OFF/2024/00001", value)

	for i := 2; i <= 5; i++ {
		value = Next(template, "YYYY-#####", value, now)
		parsed := Parse(template, value)
		require.NotNil(t, parsed)
		assert.Equal(t, i, parsed.Number)
	}
}
