// Package calendar provides deterministic holiday and pension-day
// classification for sales dates. Every other planning module consults it to
// decide whether a date is a "high-sales day" (pre-holiday or pension payment
// date), historically showing demand spikes.
package calendar

import (
	"fmt"
	"sync"
	"time"
)

// Service answers pure calendar questions. Holiday sets are computed per year
// from the fixed Slovenian list plus the Easter computus and memoized; the
// service never returns an error - unknown years simply compute from the
// algorithm.
type Service struct {
	mu       sync.RWMutex
	holidays map[int]map[string]bool // year -> set of YYYY-MM-DD
}

// New creates a calendar service.
func New() *Service {
	return &Service{holidays: make(map[int]map[string]bool)}
}

// easterSunday computes Easter Sunday for a year using the anonymous
// Gregorian (Gauss-style) congruence method.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// yearHolidays returns the memoized holiday set for a year.
func (s *Service) yearHolidays(year int) map[string]bool {
	s.mu.RLock()
	set, ok := s.holidays[year]
	s.mu.RUnlock()
	if ok {
		return set
	}

	easter := easterSunday(year)
	easterMonday := easter.AddDate(0, 0, 1)

	set = map[string]bool{
		fmt.Sprintf("%d-01-01", year): true, // New Year's Day
		fmt.Sprintf("%d-01-02", year): true, // New Year holiday
		fmt.Sprintf("%d-02-08", year): true, // Preseren Day
		fmt.Sprintf("%d-04-27", year): true, // Day of Uprising
		fmt.Sprintf("%d-05-01", year): true, // Labour Day
		fmt.Sprintf("%d-05-02", year): true, // Labour Day holiday
		fmt.Sprintf("%d-06-25", year): true, // Statehood Day
		fmt.Sprintf("%d-08-15", year): true, // Assumption Day
		fmt.Sprintf("%d-10-31", year): true, // Reformation Day
		fmt.Sprintf("%d-11-01", year): true, // All Saints' Day
		fmt.Sprintf("%d-12-25", year): true, // Christmas
		fmt.Sprintf("%d-12-26", year): true, // Independence and Unity Day
	}
	set[easter.Format("2006-01-02")] = true
	set[easterMonday.Format("2006-01-02")] = true

	s.mu.Lock()
	s.holidays[year] = set
	s.mu.Unlock()
	return set
}

// IsHoliday reports whether the date is a public holiday.
func (s *Service) IsHoliday(date time.Time) bool {
	return s.yearHolidays(date.Year())[date.Format("2006-01-02")]
}

// IsPreHoliday reports whether the following day is a public holiday.
func (s *Service) IsPreHoliday(date time.Time) bool {
	return s.IsHoliday(date.AddDate(0, 0, 1))
}

// pensionPaymentDate computes the pension payment date of a month: the last
// banking day on or before the 30th (31st in 31-day months), skipping
// weekends and holidays.
func (s *Service) pensionPaymentDate(year int, month time.Month) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()

	targetDay := 30
	if lastDay >= 31 {
		targetDay = 31
	}
	if targetDay > lastDay {
		targetDay = lastDay
	}

	payment := time.Date(year, month, targetDay, 0, 0, 0, 0, time.UTC)
	for payment.Weekday() == time.Saturday || payment.Weekday() == time.Sunday || s.IsHoliday(payment) {
		payment = payment.AddDate(0, 0, -1)
	}
	return payment
}

// IsPensionPaymentDay reports whether the date is its month's pension payment
// date.
func (s *Service) IsPensionPaymentDay(date time.Time) bool {
	payment := s.pensionPaymentDate(date.Year(), date.Month())
	return date.Format("2006-01-02") == payment.Format("2006-01-02")
}

// IsHighSalesDay reports whether the date is a pre-holiday or pension payment
// date.
func (s *Service) IsHighSalesDay(date time.Time) bool {
	return s.IsPreHoliday(date) || s.IsPensionPaymentDay(date)
}

// PreHolidayDates returns every pre-holiday date in the 365 days before the
// target date, as YYYY-MM-DD strings. Used to collect comparable special days
// for the special-day forecast source.
func (s *Service) PreHolidayDates(target time.Time) []string {
	var dates []string
	for i := -365; i < 0; i++ {
		d := target.AddDate(0, 0, i)
		if s.IsPreHoliday(d) {
			dates = append(dates, d.Format("2006-01-02"))
		}
	}
	return dates
}

// PensionPaymentDates returns the pension payment date of every month in the
// target date's year and the year before, as YYYY-MM-DD strings.
func (s *Service) PensionPaymentDates(target time.Time) []string {
	var dates []string
	for yearOffset := 0; yearOffset <= 1; yearOffset++ {
		year := target.Year() - yearOffset
		for month := time.January; month <= time.December; month++ {
			dates = append(dates, s.pensionPaymentDate(year, month).Format("2006-01-02"))
		}
	}
	return dates
}
