package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"lawncare/internal/config"
	"lawncare/internal/external"
	"lawncare/internal/types"
)

const openMeteoDailyFields = "weather_code,temperature_2m_max,temperature_2m_min,apparent_temperature_max," +
	"precipitation_sum,precipitation_probability_max,wind_speed_10m_max,wind_direction_10m_dominant," +
	"relative_humidity_2m_mean,uv_index_max,sunrise,sunset"

// OpenMeteoSource fetches the daily forecast for the business location from
// the Open-Meteo forecast API in imperial units.
type OpenMeteoSource struct {
	base   *external.BaseClient
	cfg    config.WeatherConfig
	clock  types.Clock
	logger *slog.Logger
}

// NewOpenMeteoSource builds a source on a BaseClient with the default
// retry policy.
func NewOpenMeteoSource(cfg config.WeatherConfig, httpClient *http.Client, clock types.Clock, logger *slog.Logger, opts ...external.BaseClientOption) *OpenMeteoSource {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteoSource{
		base:   external.NewBaseClient(httpClient, "open-meteo", external.DefaultRetryPolicy(), opts...),
		cfg:    cfg,
		clock:  clock,
		logger: logger.With("component", "open_meteo"),
	}
}

func (s *OpenMeteoSource) Name() string { return "open-meteo" }

type openMeteoResponse struct {
	Daily openMeteoDaily `json:"daily"`
}

type openMeteoDaily struct {
	Time                        []string   `json:"time"`
	WeatherCode                 []int      `json:"weather_code"`
	Temperature2mMax            []float64  `json:"temperature_2m_max"`
	Temperature2mMin            []float64  `json:"temperature_2m_min"`
	ApparentTemperatureMax      []float64  `json:"apparent_temperature_max"`
	PrecipitationSum            []float64  `json:"precipitation_sum"`
	PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
	WindSpeed10mMax             []float64  `json:"wind_speed_10m_max"`
	WindDirection10mDominant    []float64  `json:"wind_direction_10m_dominant"`
	RelativeHumidity2mMean      []float64  `json:"relative_humidity_2m_mean"`
	UVIndexMax                  []float64  `json:"uv_index_max"`
	Sunrise                     []string   `json:"sunrise"`
	Sunset                      []string   `json:"sunset"`
}

type openMeteoError struct {
	Reason string `json:"reason"`
}

// Forecast requests the configured number of days. The stormy scenario
// overlays the synthetic storm on real data so the reschedule flow can be
// demonstrated in any weather.
func (s *OpenMeteoSource) Forecast(ctx context.Context, scenario types.Scenario) ([]types.DailyForecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(s.cfg.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(s.cfg.Longitude, 'f', 4, 64))
	q.Set("daily", openMeteoDailyFields)
	q.Set("temperature_unit", "fahrenheit")
	q.Set("wind_speed_unit", "mph")
	q.Set("precipitation_unit", "inch")
	q.Set("timezone", s.cfg.Timezone)
	q.Set("forecast_days", strconv.Itoa(s.cfg.ForecastDays))

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/forecast?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "building forecast request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.base.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "forecast request failed", "error", err)
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "forecast service unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "reading forecast response", err)
	}
	if resp.StatusCode != http.StatusOK {
		var oe openMeteoError
		_ = json.Unmarshal(body, &oe)
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast,
			fmt.Sprintf("forecast service returned %d: %s", resp.StatusCode, oe.Reason), nil)
	}

	var parsed openMeteoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "decoding forecast response", err)
	}

	days, err := parsed.Daily.toForecast()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "malformed forecast response", err)
	}
	if scenario == types.ScenarioStormy {
		days = StormOverlay(days, types.DateOf(s.clock.Now()))
	}
	return days, nil
}

// toForecast zips the parallel daily arrays. Optional series may be shorter
// than time; missing values read as zero.
func (d openMeteoDaily) toForecast() ([]types.DailyForecast, error) {
	if len(d.Time) == 0 {
		return nil, fmt.Errorf("no daily data")
	}
	if len(d.WeatherCode) < len(d.Time) || len(d.Temperature2mMax) < len(d.Time) {
		return nil, fmt.Errorf("daily series shorter than time axis")
	}

	out := make([]types.DailyForecast, 0, len(d.Time))
	for i, day := range d.Time {
		date, err := types.ParseDate(day)
		if err != nil {
			return nil, err
		}

		code := d.WeatherCode[i]
		wind := at(d.WindSpeed10mMax, i)
		c := types.WeatherCondition{
			Code:          strconv.Itoa(code),
			Description:   describeWMO(code),
			Temperature:   d.Temperature2mMax[i],
			FeelsLike:     at(d.ApparentTemperatureMax, i),
			Humidity:      at(d.RelativeHumidity2mMean, i),
			WindSpeed:     wind,
			WindDirection: compass(at(d.WindDirection10mDominant, i)),
			Precipitation: at(d.PrecipitationSum, i),
			UVIndex:       at(d.UVIndexMax, i),
			IsWindy:       wind >= highWindMPH,
		}
		classifyWMO(code, &c)

		var chance float64
		if i < len(d.PrecipitationProbabilityMax) && d.PrecipitationProbabilityMax[i] != nil {
			chance = *d.PrecipitationProbabilityMax[i]
		}

		out = append(out, types.DailyForecast{
			Date:                date,
			Condition:           c,
			High:                d.Temperature2mMax[i],
			Low:                 at(d.Temperature2mMin, i),
			Sunrise:             clockTime(at(d.Sunrise, i)),
			Sunset:              clockTime(at(d.Sunset, i)),
			PrecipitationChance: chance,
		})
	}
	return out, nil
}

func at[T any](s []T, i int) T {
	var zero T
	if i < len(s) {
		return s[i]
	}
	return zero
}

// clockTime keeps the HH:MM part of an ISO-8601 local timestamp.
func clockTime(iso string) string {
	if i := strings.IndexByte(iso, 'T'); i >= 0 {
		return iso[i+1:]
	}
	return iso
}

func compass(deg float64) string {
	idx := int(math.Round(math.Mod(deg+360, 360)/45)) % len(windDirections)
	return windDirections[idx]
}

// classifyWMO sets the condition flags for a WMO weather interpretation code.
func classifyWMO(code int, c *types.WeatherCondition) {
	switch {
	case code <= 1:
		c.IsSunny = true
	case code >= 51 && code <= 67, code >= 80 && code <= 82:
		c.IsRainy = true
	case code >= 71 && code <= 77, code == 85, code == 86:
		c.IsSnowy = true
	case code >= 95:
		c.IsStormy = true
		c.IsRainy = true
	}
}

func describeWMO(code int) string {
	switch code {
	case 0:
		return "Clear sky"
	case 1:
		return "Mainly clear"
	case 2:
		return "Partly cloudy"
	case 3:
		return "Overcast"
	case 45, 48:
		return "Fog"
	case 51, 53, 55:
		return "Drizzle"
	case 56, 57:
		return "Freezing drizzle"
	case 61:
		return "Slight rain"
	case 63:
		return "Moderate rain"
	case 65:
		return "Heavy rain"
	case 66, 67:
		return "Freezing rain"
	case 71, 73, 75, 77:
		return "Snow"
	case 80, 81:
		return "Rain showers"
	case 82:
		return "Violent rain showers"
	case 85, 86:
		return "Snow showers"
	case 95:
		return "Thunderstorm"
	case 96, 99:
		return "Thunderstorm with hail"
	default:
		return "Unknown"
	}
}
