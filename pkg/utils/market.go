package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// holidayRow matches one row of the NSE holiday CSV.
type holidayRow struct {
	Date        string `csv:"date"` // YYYY-MM-DD
	Description string `csv:"description"`
}

// HolidayCalendar answers whether a date is an exchange holiday.
type HolidayCalendar struct {
	days map[string]string // "2006-01-02" -> description
}

// LoadHolidayCalendar reads an NSE holiday CSV (date,description).
func LoadHolidayCalendar(path string) (*HolidayCalendar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening holiday file: %w", err)
	}
	defer f.Close()

	var rows []holidayRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing holiday file: %w", err)
	}

	cal := &HolidayCalendar{days: make(map[string]string, len(rows))}
	for _, r := range rows {
		if _, err := time.ParseInLocation("2006-01-02", r.Date, IndiaLocation); err != nil {
			return nil, fmt.Errorf("bad holiday date %q: %w", r.Date, err)
		}
		cal.days[r.Date] = r.Description
	}
	return cal, nil
}

// IsHoliday reports whether the given date is a listed holiday.
func (h *HolidayCalendar) IsHoliday(t time.Time) bool {
	if h == nil {
		return false
	}
	_, ok := h.days[t.In(IndiaLocation).Format("2006-01-02")]
	return ok
}

// MarketClock answers market-session questions for a configurable
// trading window in IST.
type MarketClock struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	Holidays    *HolidayCalendar
	Now         func() time.Time // overridable for tests and backtests
}

// NewMarketClock returns a clock for the given session window.
func NewMarketClock(openHour, openMinute, closeHour, closeMinute int, holidays *HolidayCalendar) *MarketClock {
	return &MarketClock{
		OpenHour:    openHour,
		OpenMinute:  openMinute,
		CloseHour:   closeHour,
		CloseMinute: closeMinute,
		Holidays:    holidays,
		Now:         time.Now,
	}
}

// IsTradingDay reports whether the date is a weekday and not a holiday.
func (m *MarketClock) IsTradingDay(t time.Time) bool {
	t = t.In(IndiaLocation)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !m.Holidays.IsHoliday(t)
}

// IsOpenAt reports whether the market is open at the given instant.
func (m *MarketClock) IsOpenAt(t time.Time) bool {
	t = t.In(IndiaLocation)
	if !m.IsTradingDay(t) {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	open := m.OpenHour*60 + m.OpenMinute
	close := m.CloseHour*60 + m.CloseMinute
	return mins >= open && mins < close
}

// IsOpen reports whether the market is open now.
func (m *MarketClock) IsOpen() bool {
	return m.IsOpenAt(m.Now())
}

// NextOpen returns the next market opening time after now.
func (m *MarketClock) NextOpen() time.Time {
	now := m.Now().In(IndiaLocation)
	next := time.Date(now.Year(), now.Month(), now.Day(), m.OpenHour, m.OpenMinute, 0, 0, IndiaLocation)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for !m.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// TodayClose returns today's market close time.
func (m *MarketClock) TodayClose() time.Time {
	now := m.Now().In(IndiaLocation)
	return time.Date(now.Year(), now.Month(), now.Day(), m.CloseHour, m.CloseMinute, 0, 0, IndiaLocation)
}
