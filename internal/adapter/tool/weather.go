package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"nimbus-ai/internal/domain"
)

var _ domain.Tool = (*WeatherTool)(nil)

// weatherSchema constrains the arguments the model may supply. The date
// window itself is not encoded here: the classifier owns it, and its
// bounds are configurable at runtime.
const weatherSchema = `{
	"type": "object",
	"properties": {
		"location": {
			"type": "string",
			"description": "City or place name, e.g. \"London\" or \"New York\"",
			"minLength": 1
		},
		"date": {
			"type": "string",
			"description": "Optional date in YYYY-MM-DD format. Omit for current weather. Past dates return historical data, future dates a forecast.",
			"pattern": "^\\d{4}-\\d{2}-\\d{2}$"
		}
	},
	"required": ["location"],
	"additionalProperties": false
}`

// WeatherTool answers weather questions for a single location and day.
// It classifies the requested date, then dispatches to the matching
// upstream variant through the fetcher.
type WeatherTool struct {
	fetcher domain.WeatherFetcher
	rule    domain.DateRule
	now     func() time.Time
	logger  *slog.Logger
}

// NewWeatherTool creates the weather tool.
func NewWeatherTool(fetcher domain.WeatherFetcher, rule domain.DateRule, logger *slog.Logger) *WeatherTool {
	return &WeatherTool{
		fetcher: fetcher,
		rule:    rule,
		now:     time.Now,
		logger:  logger,
	}
}

// Schema implements domain.Tool.
func (t *WeatherTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        "get_weather",
		Description: "Get weather for a location. Supports current conditions, historical data and forecasts.",
		Parameters:  json.RawMessage(weatherSchema),
	}
}

type weatherArgs struct {
	Location string `json:"location"`
	Date     string `json:"date,omitempty"`
}

// Execute implements domain.Tool.
func (t *WeatherTool) Execute(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var wa weatherArgs
	if err := json.Unmarshal(args, &wa); err != nil {
		return nil, domain.NewDomainError("WeatherTool.Execute", domain.ErrInvalidInput, err.Error())
	}

	var requested time.Time
	if wa.Date != "" {
		parsed, err := time.Parse(time.DateOnly, wa.Date)
		if err != nil {
			return nil, domain.NewDomainError("WeatherTool.Execute", domain.ErrInvalidInput,
				fmt.Sprintf("invalid date %q, use YYYY-MM-DD", wa.Date))
		}
		requested = parsed
	}

	class := t.rule.Classify(t.now(), requested)
	t.logger.Debug("weather request classified",
		"location", wa.Location,
		"date", wa.Date,
		"class", class,
	)

	record, err := t.fetcher.Fetch(ctx, class, wa.Location, requested)
	if err != nil {
		return nil, err
	}

	return &domain.ToolResult{
		Content: formatRecord(record),
		Record:  record,
	}, nil
}

// formatRecord renders the observation the model reads. Plain prose;
// the structured record rides alongside for stream consumers.
func formatRecord(r *domain.WeatherRecord) string {
	place := r.Location
	if r.Country != "" {
		place += ", " + r.Country
	}

	switch r.Class {
	case domain.ClassHistorical:
		return fmt.Sprintf("Historical weather in %s on %s: avg %.1fC (%.1fF), %s, humidity %d%%, max wind %.1f km/h",
			place, r.Date, r.TempC, r.TempF, r.Conditions, r.Humidity, r.WindKPH)
	case domain.ClassForecast:
		return fmt.Sprintf("Forecast for %s on %s: avg %.1fC (%.1fF), %s, humidity %d%%, max wind %.1f km/h",
			place, r.Date, r.TempC, r.TempF, r.Conditions, r.Humidity, r.WindKPH)
	default:
		return fmt.Sprintf("Current weather in %s: %.1fC (%.1fF), %s, humidity %d%%, wind %.1f km/h",
			place, r.TempC, r.TempF, r.Conditions, r.Humidity, r.WindKPH)
	}
}
