package domain

import (
	"context"
	"time"
)

// Temporal class of a weather request, decided purely from the requested
// date relative to "today". The class selects which upstream variant the
// adapter calls; an invalid class must never reach the network.
type TemporalClass string

const (
	ClassCurrent    TemporalClass = "current"
	ClassHistorical TemporalClass = "historical"
	ClassForecast   TemporalClass = "forecast"
	ClassInvalid    TemporalClass = "invalid"
)

// Default classification bounds. The upstream archive starts at
// DefaultEarliestDate and forecasts are published DefaultForecastDays
// ahead, both inclusive.
const (
	DefaultEarliestDate = "2010-01-01"
	DefaultForecastDays = 14
)

// DateRule holds the classification window. The zero value is unusable;
// construct with NewDateRule.
type DateRule struct {
	earliest     time.Time
	forecastDays int
}

// NewDateRule builds a rule from an inclusive archive floor and an
// inclusive forecast horizon in days.
func NewDateRule(earliest time.Time, forecastDays int) DateRule {
	return DateRule{earliest: truncateDay(earliest), forecastDays: forecastDays}
}

// DefaultDateRule returns the rule with the stock bounds.
func DefaultDateRule() DateRule {
	earliest, _ := time.Parse(time.DateOnly, DefaultEarliestDate)
	return NewDateRule(earliest, DefaultForecastDays)
}

// Classify decides the temporal class of a request. A zero requested
// time means the caller gave no date and is asking about now. The
// comparison is calendar-day based: hours and time zones within a day
// do not change the class.
func (r DateRule) Classify(today, requested time.Time) TemporalClass {
	if requested.IsZero() {
		return ClassCurrent
	}
	day := truncateDay(requested)
	now := truncateDay(today)
	switch {
	case day.Equal(now):
		return ClassCurrent
	case day.Before(now):
		if day.Before(r.earliest) {
			return ClassInvalid
		}
		return ClassHistorical
	default:
		horizon := now.AddDate(0, 0, r.forecastDays)
		if day.After(horizon) {
			return ClassInvalid
		}
		return ClassForecast
	}
}

// Earliest reports the inclusive archive floor.
func (r DateRule) Earliest() time.Time { return r.earliest }

// ForecastDays reports the inclusive forecast horizon in days.
func (r DateRule) ForecastDays() int { return r.forecastDays }

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeatherRecord is the normalized observation returned by the weather
// adapter regardless of which upstream variant served it. Date is the
// calendar day the record describes, in YYYY-MM-DD form.
type WeatherRecord struct {
	Location   string        `json:"location"`
	Region     string        `json:"region,omitempty"`
	Country    string        `json:"country,omitempty"`
	Date       string        `json:"date"`
	TempC      float64       `json:"temp_c"`
	TempF      float64       `json:"temp_f"`
	Conditions string        `json:"conditions"`
	Humidity   int           `json:"humidity"`
	WindKPH    float64       `json:"wind_kph"`
	Class      TemporalClass `json:"class"`
}

// WeatherFetcher retrieves one normalized record for a location and an
// already-classified date. Implementations must reject ClassInvalid
// without any network activity.
type WeatherFetcher interface {
	Fetch(ctx context.Context, class TemporalClass, location string, date time.Time) (*WeatherRecord, error)
}
