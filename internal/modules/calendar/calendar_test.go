package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEasterSunday(t *testing.T) {
	tests := []struct {
		year     int
		expected string
	}{
		{2022, "2022-04-17"},
		{2023, "2023-04-09"},
		{2024, "2024-03-31"},
		{2025, "2025-04-20"},
		{2026, "2026-04-05"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, easterSunday(tt.year).Format("2006-01-02"), "year %d", tt.year)
	}
}

func TestIsHoliday(t *testing.T) {
	svc := New()

	tests := []struct {
		name     string
		date     string
		expected bool
	}{
		{"new year", "2025-01-01", true},
		{"preseren day", "2025-02-08", true},
		{"easter sunday 2025", "2025-04-20", true},
		{"easter monday 2025", "2025-04-21", true},
		{"christmas", "2025-12-25", true},
		{"ordinary tuesday", "2025-03-11", false},
		{"easter sunday 2024", "2024-03-31", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, svc.IsHoliday(date(tt.date)))
		})
	}
}

func TestIsPreHoliday(t *testing.T) {
	svc := New()

	assert.True(t, svc.IsPreHoliday(date("2025-12-24")))
	assert.True(t, svc.IsPreHoliday(date("2025-04-26"))) // day before Apr 27
	assert.False(t, svc.IsPreHoliday(date("2025-03-11")))
}

// Pension payment dates must always land on a banking day.
func TestIsPensionPaymentDay_NeverWeekendOrHoliday(t *testing.T) {
	svc := New()

	for year := 2020; year <= 2030; year++ {
		d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
		for !d.After(end) {
			if svc.IsPensionPaymentDay(d) {
				assert.NotEqual(t, time.Saturday, d.Weekday(), "pension day on Saturday: %s", d.Format("2006-01-02"))
				assert.NotEqual(t, time.Sunday, d.Weekday(), "pension day on Sunday: %s", d.Format("2006-01-02"))
				assert.False(t, svc.IsHoliday(d), "pension day on holiday: %s", d.Format("2006-01-02"))
			}
			d = d.AddDate(0, 0, 1)
		}
	}
}

func TestIsPensionPaymentDay_OnePerMonth(t *testing.T) {
	svc := New()

	for month := time.January; month <= time.December; month++ {
		count := 0
		d := time.Date(2025, month, 1, 0, 0, 0, 0, time.UTC)
		for d.Month() == month {
			if svc.IsPensionPaymentDay(d) {
				count++
			}
			d = d.AddDate(0, 0, 1)
		}
		assert.Equal(t, 1, count, "month %s", month)
	}
}

func TestIsPensionPaymentDay_February(t *testing.T) {
	svc := New()

	// February has no 30th; the payment date falls back from the last day.
	// 2025-02-28 is a Friday.
	assert.True(t, svc.IsPensionPaymentDay(date("2025-02-28")))
}

func TestIsHighSalesDay(t *testing.T) {
	svc := New()

	assert.True(t, svc.IsHighSalesDay(date("2025-12-24"))) // pre-holiday
	assert.True(t, svc.IsHighSalesDay(date("2025-02-28"))) // pension day
	assert.False(t, svc.IsHighSalesDay(date("2025-03-11")))
}

func TestPensionPaymentDates_CoversTwoYears(t *testing.T) {
	svc := New()

	dates := svc.PensionPaymentDates(date("2025-06-15"))
	assert.Len(t, dates, 24)
	for _, ds := range dates {
		assert.True(t, svc.IsPensionPaymentDay(date(ds)), "not a pension day: %s", ds)
	}
}

func TestPreHolidayDates_AllQualify(t *testing.T) {
	svc := New()

	dates := svc.PreHolidayDates(date("2025-06-15"))
	assert.NotEmpty(t, dates)
	for _, ds := range dates {
		assert.True(t, svc.IsPreHoliday(date(ds)))
	}
}
