package utils

import (
	"time"

	"options-observer/src/logger"
	"options-observer/src/models"
)

const (
	MarketStatusOpen   = "open"
	MarketStatusClosed = "closed"

	expiryValueLayout   = "2006-01-02"
	expiryDisplayLayout = "02 Jan 2006"
)

// MarketScheduler derives market status and weekly expiry candidates from
// the exchange calendar.
type MarketScheduler struct {
	Calendar      *TradingCalendar
	ExpiryWeekday time.Weekday
	ExpiryCount   int
	Logger        *logger.Logger
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(cal *TradingCalendar, weekday time.Weekday, count int, l *logger.Logger) *MarketScheduler {
	if count <= 0 {
		count = 4
	}
	return &MarketScheduler{
		Calendar:      cal,
		ExpiryWeekday: weekday,
		ExpiryCount:   count,
		Logger:        l,
	}
}

// -----------------------------------------------------------------------------

// IsMarketOpen reports whether the exchange session is open at now.
func (ms *MarketScheduler) IsMarketOpen(now time.Time) bool {
	return ms.Calendar.IsOpenOnMinute(now)
}

// -----------------------------------------------------------------------------

func (ms *MarketScheduler) MarketStatus(now time.Time) string {
	if ms.IsMarketOpen(now) {
		return MarketStatusOpen
	}
	return MarketStatusClosed
}

// -----------------------------------------------------------------------------

// ExpiryDates returns the next ExpiryCount weekly expiries starting today.
// An expiry that falls on a holiday moves to the previous trading day.
func (ms *MarketScheduler) ExpiryDates(now time.Time) []models.MExpiryDate {
	if ms.Calendar.Timezone != nil {
		now = now.In(ms.Calendar.Timezone)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, now.Location())

	ahead := (int(ms.ExpiryWeekday) - int(today.Weekday()) + 7) % 7
	first := today.AddDate(0, 0, ahead)

	dates := make([]models.MExpiryDate, 0, ms.ExpiryCount)
	seen := make(map[string]bool, ms.ExpiryCount)
	for i := 0; i < ms.ExpiryCount; i++ {
		day := ms.previousTradingDay(first.AddDate(0, 0, 7*i))
		value := day.Format(expiryValueLayout)
		if seen[value] {
			continue
		}
		seen[value] = true
		dates = append(dates, models.MExpiryDate{
			Value:   value,
			Display: day.Format(expiryDisplayLayout),
		})
	}
	return dates
}

// -----------------------------------------------------------------------------

// previousTradingDay walks back at most a week from day to a trading day.
func (ms *MarketScheduler) previousTradingDay(day time.Time) time.Time {
	for i := 0; i < 7; i++ {
		candidate := day.AddDate(0, 0, -i)
		if ms.Calendar.IsTradingDay(candidate) {
			if i > 0 && ms.Logger != nil {
				ms.Logger.Debug("Expiry %s is a holiday, moved to %s",
					day.Format(expiryValueLayout), candidate.Format(expiryValueLayout))
			}
			return candidate
		}
	}
	return day
}
