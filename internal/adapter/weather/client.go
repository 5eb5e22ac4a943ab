package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"nimbus-ai/internal/domain"
	"nimbus-ai/internal/infra/config"
	"nimbus-ai/internal/infra/tracer"
)

const (
	defaultBaseURL = "https://api.weatherapi.com/v1"
	defaultTimeout = 15 * time.Second

	// upstream error code for "no matching location found"
	codeNoLocation = 1006

	maxResponseBody = 1 * 1024 * 1024 // 1 MB
)

var _ domain.WeatherFetcher = (*Client)(nil)

// Client fetches weather observations from a WeatherAPI-style upstream.
// One logical operation maps to three upstream variants: current.json,
// history.json and forecast.json. The caller classifies the date; the
// client only dispatches. No retries here: the loop treats upstream
// failures as observations, retrying is the model's call.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient creates a weather client with the configured timeout.
func NewClient(cfg config.WeatherConfig, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		now:     time.Now,
	}
}

// Fetch implements domain.WeatherFetcher.
func (c *Client) Fetch(ctx context.Context, class domain.TemporalClass, location string, date time.Time) (*domain.WeatherRecord, error) {
	if class == domain.ClassInvalid {
		return nil, domain.NewDomainError("weather.Fetch", domain.ErrDateOutOfRange,
			fmt.Sprintf("date %s outside supported range", date.Format("2006-01-02")))
	}

	ctx, span := tracer.StartSpan(ctx, "weather.fetch",
		trace.WithAttributes(
			tracer.StringAttr("weather.class", string(class)),
			tracer.StringAttr("weather.location", location),
		),
	)
	defer span.End()

	endpoint, params := c.variantFor(class, location, date)

	c.logger.Debug("fetching weather",
		"class", class,
		"location", location,
		"endpoint", endpoint,
	)

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	// Current records carry the requested day when the caller named
	// one; only a dateless request falls back to the clock.
	if class == domain.ClassCurrent && date.IsZero() {
		date = c.now().UTC()
	}

	record, err := normalize(class, date, body)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	tracer.SetOK(span)
	c.logger.Info("weather fetched",
		"class", class,
		"location", record.Location,
		"date", record.Date,
		"temp_c", record.TempC,
	)
	return record, nil
}

// variantFor maps a temporal class to the upstream endpoint and query
// parameters. Forecast requests ask for a single day; the dt parameter
// selects which one.
func (c *Client) variantFor(class domain.TemporalClass, location string, date time.Time) (string, url.Values) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", location)

	switch class {
	case domain.ClassHistorical:
		params.Set("dt", date.Format("2006-01-02"))
		return "history.json", params
	case domain.ClassForecast:
		params.Set("dt", date.Format("2006-01-02"))
		params.Set("days", "1")
		return "forecast.json", params
	default: // ClassCurrent
		params.Set("aqi", "no")
		return "current.json", params
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewDomainError("weather.Fetch", domain.ErrUpstreamUnavailable, err.Error())
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.NewDomainError("weather.Fetch", domain.ErrUpstreamUnavailable, err.Error())
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.mapAPIError(httpResp.StatusCode, body)
	}
	return body, nil
}

// mapAPIError converts a non-200 upstream response into a domain error.
// WeatherAPI reports unknown locations as 400 with error.code 1006.
func (c *Client) mapAPIError(statusCode int, body []byte) error {
	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	// Best effort; an unparseable error body still maps by status.
	_ = json.Unmarshal(body, &apiErr)

	detail := apiErr.Error.Message
	if detail == "" {
		detail = fmt.Sprintf("status %d", statusCode)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return domain.NewDomainError("weather.Fetch", domain.ErrUpstreamRateLimited, detail)
	case statusCode == http.StatusBadRequest && apiErr.Error.Code == codeNoLocation:
		return domain.NewDomainError("weather.Fetch", domain.ErrLocationNotFound, detail)
	case statusCode >= 500:
		return domain.NewDomainError("weather.Fetch", domain.ErrUpstreamUnavailable, detail)
	default:
		return domain.NewDomainError("weather.Fetch", domain.ErrInvalidResponse,
			fmt.Sprintf("status %d: %s", statusCode, detail))
	}
}

// --- upstream wire types ---

type apiResponse struct {
	Location *apiLocation `json:"location"`
	Current  *apiCurrent  `json:"current"`
	Forecast *apiForecast `json:"forecast"`
}

type apiLocation struct {
	Name    string `json:"name"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

type apiCurrent struct {
	TempC     float64       `json:"temp_c"`
	TempF     float64       `json:"temp_f"`
	Condition *apiCondition `json:"condition"`
	Humidity  int           `json:"humidity"`
	WindKPH   float64       `json:"wind_kph"`
}

type apiCondition struct {
	Text string `json:"text"`
}

type apiForecast struct {
	ForecastDay []apiForecastDay `json:"forecastday"`
}

type apiForecastDay struct {
	Date string  `json:"date"`
	Day  *apiDay `json:"day"`
}

type apiDay struct {
	AvgTempC    float64       `json:"avgtemp_c"`
	AvgTempF    float64       `json:"avgtemp_f"`
	Condition   *apiCondition `json:"condition"`
	AvgHumidity float64       `json:"avghumidity"`
	MaxWindKPH  float64       `json:"maxwind_kph"`
}

// normalize converts the variant-specific payload into a WeatherRecord.
// History and forecast share the forecastday shape; current has its own.
func normalize(class domain.TemporalClass, date time.Time, body []byte) (*domain.WeatherRecord, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewDomainError("weather.Fetch", domain.ErrInvalidResponse, err.Error())
	}
	if resp.Location == nil {
		return nil, domain.NewDomainError("weather.Fetch", domain.ErrInvalidResponse, "response missing location")
	}

	record := &domain.WeatherRecord{
		Location: resp.Location.Name,
		Region:   resp.Location.Region,
		Country:  resp.Location.Country,
		Class:    class,
	}

	if class == domain.ClassCurrent {
		cur := resp.Current
		if cur == nil || cur.Condition == nil {
			return nil, domain.NewDomainError("weather.Fetch", domain.ErrInvalidResponse, "response missing current block")
		}
		record.Date = date.Format("2006-01-02")
		record.TempC = cur.TempC
		record.TempF = cur.TempF
		record.Conditions = cur.Condition.Text
		record.Humidity = cur.Humidity
		record.WindKPH = cur.WindKPH
		return record, nil
	}

	if resp.Forecast == nil || len(resp.Forecast.ForecastDay) == 0 {
		return nil, domain.NewDomainError("weather.Fetch", domain.ErrInvalidResponse, "response missing forecastday block")
	}
	fd := resp.Forecast.ForecastDay[0]
	if fd.Day == nil || fd.Day.Condition == nil {
		return nil, domain.NewDomainError("weather.Fetch", domain.ErrInvalidResponse, "forecastday missing day block")
	}

	record.Date = fd.Date
	if record.Date == "" {
		record.Date = date.Format("2006-01-02")
	}
	record.TempC = fd.Day.AvgTempC
	record.TempF = fd.Day.AvgTempF
	record.Conditions = fd.Day.Condition.Text
	record.Humidity = int(fd.Day.AvgHumidity)
	record.WindKPH = fd.Day.MaxWindKPH
	return record, nil
}
