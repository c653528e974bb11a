package utils

import (
	"log"
	"time"

	"github.com/scmhub/calendar"
)

const (
	// MICNSE is the ISO 10383 code of the National Stock Exchange of India.
	MICNSE = "xnse"
	// IndiaTimezone is used when no calendar is available.
	IndiaTimezone = "Asia/Kolkata"
)

// TradingCalendar answers trading-day and session questions using
// scmhub/calendar, with a Mon-Fri fallback when the exchange is unknown.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
	Open     time.Duration // fallback session open, offset from midnight
	Close    time.Duration // fallback session close
}

// -----------------------------------------------------------------------------

// GetCalendar loads the calendar for mic. Without one the fallback session is
// 09:15-15:30 in India time.
func GetCalendar(mic string) *TradingCalendar {
	if mic == "" {
		mic = MICNSE
	}

	if cal := calendar.GetCalendar(mic); cal != nil {
		return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
	}

	loc, err := time.LoadLocation(IndiaTimezone)
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	log.Printf("WARNING: no calendar for MIC '%s'. Using fallback (Mon-Fri 09:15-15:30 %s).", mic, loc)
	return NewFallbackCalendar(loc)
}

// -----------------------------------------------------------------------------

// NewFallbackCalendar is a Mon-Fri 09:15-15:30 calendar without holidays.
func NewFallbackCalendar(loc *time.Location) *TradingCalendar {
	return &TradingCalendar{
		Fallback: true,
		Timezone: loc,
		Open:     9*time.Hour + 15*time.Minute,
		Close:    15*time.Hour + 30*time.Minute,
	}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	date = tc.local(date)
	if !tc.Fallback {
		return tc.Calendar.IsBusinessDay(date)
	}
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute reports whether a regular session is running at t.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	t = tc.local(t)
	if !tc.Fallback {
		return tc.Calendar.IsOpen(t)
	}
	if !tc.IsTradingDay(t) {
		return false
	}
	sinceMidnight := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	return sinceMidnight >= tc.Open && sinceMidnight < tc.Close
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) local(t time.Time) time.Time {
	if tc.Timezone == nil {
		return t
	}
	return t.In(tc.Timezone)
}
