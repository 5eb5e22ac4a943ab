package tool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"nimbus-ai/internal/domain"
)

// fakeFetcher records the dispatch it received and returns a canned record.
type fakeFetcher struct {
	gotClass    domain.TemporalClass
	gotLocation string
	gotDate     time.Time
	record      *domain.WeatherRecord
	err         error
	calls       int
}

func (f *fakeFetcher) Fetch(_ context.Context, class domain.TemporalClass, location string, date time.Time) (*domain.WeatherRecord, error) {
	f.calls++
	f.gotClass = class
	f.gotLocation = location
	f.gotDate = date
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func newWeatherTool(f *fakeFetcher) *WeatherTool {
	wt := NewWeatherTool(f, domain.DefaultDateRule(), slog.Default())
	wt.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return wt
}

func TestWeatherToolCurrentWithoutDate(t *testing.T) {
	f := &fakeFetcher{record: &domain.WeatherRecord{
		Location: "London", Country: "UK", TempC: 15, TempF: 59,
		Conditions: "Overcast", Humidity: 70, WindKPH: 10,
		Class: domain.ClassCurrent,
	}}
	wt := newWeatherTool(f)

	res, err := wt.Execute(context.Background(), json.RawMessage(`{"location":"London"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if f.gotClass != domain.ClassCurrent {
		t.Errorf("class = %q, want current", f.gotClass)
	}
	if f.gotLocation != "London" {
		t.Errorf("location = %q, want London", f.gotLocation)
	}
	if !f.gotDate.IsZero() {
		t.Errorf("date = %v, want zero", f.gotDate)
	}
	if !strings.Contains(res.Content, "Current weather in London, UK") {
		t.Errorf("Content = %q", res.Content)
	}
	if res.Record == nil || res.Record.Class != domain.ClassCurrent {
		t.Errorf("Record = %+v", res.Record)
	}
}

func TestWeatherToolClassDispatch(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		wantClass domain.TemporalClass
	}{
		{name: "today is current", date: "2026-08-30", wantClass: domain.ClassCurrent},
		{name: "past is historical", date: "2023-06-15", wantClass: domain.ClassHistorical},
		{name: "near future is forecast", date: "2026-09-05", wantClass: domain.ClassForecast},
		{name: "horizon day is forecast", date: "2026-09-13", wantClass: domain.ClassForecast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{record: &domain.WeatherRecord{
				Location: "Paris", Conditions: "Sunny", Class: tt.wantClass,
			}}
			wt := newWeatherTool(f)

			args := `{"location":"Paris","date":"` + tt.date + `"}`
			if _, err := wt.Execute(context.Background(), json.RawMessage(args)); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if f.gotClass != tt.wantClass {
				t.Errorf("class = %q, want %q", f.gotClass, tt.wantClass)
			}
			if f.gotDate.Format("2006-01-02") != tt.date {
				t.Errorf("date = %s, want %s", f.gotDate.Format("2006-01-02"), tt.date)
			}
		})
	}
}

func TestWeatherToolOutOfRangeDates(t *testing.T) {
	// The classifier marks these invalid; the fetcher rejects without I/O.
	tests := []struct {
		name string
		date string
	}{
		{name: "before archive floor", date: "2009-12-31"},
		{name: "past forecast horizon", date: "2026-09-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{err: domain.NewDomainError("weather.Fetch", domain.ErrDateOutOfRange, tt.date)}
			wt := newWeatherTool(f)

			args := `{"location":"Paris","date":"` + tt.date + `"}`
			_, err := wt.Execute(context.Background(), json.RawMessage(args))
			if !errors.Is(err, domain.ErrDateOutOfRange) {
				t.Fatalf("expected ErrDateOutOfRange, got %v", err)
			}
			if f.gotClass != domain.ClassInvalid {
				t.Errorf("class = %q, want invalid", f.gotClass)
			}
		})
	}
}

func TestWeatherToolBadArgs(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{name: "malformed json", args: `{"location":`},
		{name: "unparseable date", args: `{"location":"Paris","date":"tomorrow"}`},
		{name: "impossible date", args: `{"location":"Paris","date":"2026-13-45"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{}
			wt := newWeatherTool(f)

			_, err := wt.Execute(context.Background(), json.RawMessage(tt.args))
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if f.calls != 0 {
				t.Errorf("fetcher called %d times, want 0", f.calls)
			}
		})
	}
}

func TestWeatherToolFetchErrorPropagates(t *testing.T) {
	f := &fakeFetcher{err: domain.NewDomainError("weather.Fetch", domain.ErrLocationNotFound, "Atlantis")}
	wt := newWeatherTool(f)

	_, err := wt.Execute(context.Background(), json.RawMessage(`{"location":"Atlantis"}`))
	if !errors.Is(err, domain.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestWeatherToolSchemaValidates(t *testing.T) {
	// The deliverable schema must compile and reject contract violations.
	f := &fakeFetcher{record: &domain.WeatherRecord{Location: "Rome", Class: domain.ClassCurrent}}
	wrapped, err := WithSchemaValidation(newWeatherTool(f))
	if err != nil {
		t.Fatalf("WithSchemaValidation: %v", err)
	}

	validator := wrapped.(domain.ArgValidator)
	if err := validator.ValidateArgs(json.RawMessage(`{"location":"Rome"}`)); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}
	if err := validator.ValidateArgs(json.RawMessage(`{}`)); err == nil {
		t.Error("missing location should fail validation")
	}
	if err := validator.ValidateArgs(json.RawMessage(`{"location":"Rome","date":"next week"}`)); err == nil {
		t.Error("non-date string should fail validation")
	}
	if err := validator.ValidateArgs(json.RawMessage(`{"location":"Rome","units":"C"}`)); err == nil {
		t.Error("unknown property should fail validation")
	}
}
