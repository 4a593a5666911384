package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawncare/internal/config"
	"lawncare/internal/external"
	"lawncare/internal/types"
)

const openMeteoFixture = `{
  "latitude": 35.78, "longitude": -78.64, "timezone": "America/New_York",
  "daily": {
    "time": ["2026-06-10", "2026-06-11", "2026-06-12"],
    "weather_code": [1, 95, 63],
    "temperature_2m_max": [78.4, 71.2, 66.0],
    "temperature_2m_min": [60.1, 62.0, 58.3],
    "apparent_temperature_max": [79.0, 72.5, 64.1],
    "precipitation_sum": [0.0, 1.4, 0.42],
    "precipitation_probability_max": [5, 96, null],
    "wind_speed_10m_max": [6.3, 24.8, 11.0],
    "wind_direction_10m_dominant": [180, 225, 10],
    "relative_humidity_2m_mean": [55, 90, 85],
    "uv_index_max": [7.1, 1.2, 2.0],
    "sunrise": ["2026-06-10T05:59", "2026-06-11T05:59", "2026-06-12T05:59"],
    "sunset": ["2026-06-10T20:27", "2026-06-11T20:28", "2026-06-12T20:28"]
  }
}`

func noopSleep(context.Context, time.Duration) error { return nil }

func newTestOpenMeteo(serverURL string) *OpenMeteoSource {
	cfg := config.WeatherConfig{
		BaseURL:      serverURL,
		Latitude:     35.7796,
		Longitude:    -78.6382,
		Timezone:     "America/New_York",
		ForecastDays: 3,
	}
	return NewOpenMeteoSource(cfg, &http.Client{Timeout: time.Second}, fixedClock(), nil, external.WithSleepFunc(noopSleep))
}

func TestOpenMeteoForecast_ParsesDailySeries(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, openMeteoFixture)
	}))
	defer srv.Close()

	days, err := newTestOpenMeteo(srv.URL).Forecast(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, []string{"fahrenheit"}, gotQuery["temperature_unit"])
	assert.Equal(t, []string{"mph"}, gotQuery["wind_speed_unit"])
	assert.Equal(t, []string{"inch"}, gotQuery["precipitation_unit"])
	assert.Equal(t, []string{"3"}, gotQuery["forecast_days"])
	assert.Equal(t, []string{"35.7796"}, gotQuery["latitude"])

	sunny := days[0]
	assert.True(t, sunny.Date.Equal(testToday))
	assert.True(t, sunny.Condition.IsSunny)
	assert.Equal(t, 78.4, sunny.Condition.Temperature)
	assert.Equal(t, "S", sunny.Condition.WindDirection)
	assert.Equal(t, "05:59", sunny.Sunrise)
	assert.Equal(t, "20:27", sunny.Sunset)
	assert.Equal(t, 5.0, sunny.PrecipitationChance)

	storm := days[1]
	assert.True(t, storm.Condition.IsStormy)
	assert.True(t, storm.Condition.IsWindy)
	assert.Equal(t, "Thunderstorm", storm.Condition.Description)
	assert.Equal(t, 0, SuitabilityScore(storm))

	rain := days[2]
	assert.True(t, rain.Condition.IsRainy)
	assert.Equal(t, 0.0, rain.PrecipitationChance, "null probability reads as zero")
	assert.Equal(t, ReasonHeavyRain, IsSuitableForLawnCare(rain.Condition).Reason)
}

func TestOpenMeteoForecast_StormyScenarioOverlays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"daily":{"time":["2026-06-10","2026-06-11"],"weather_code":[0,0],"temperature_2m_max":[75,75]}}`)
	}))
	defer srv.Close()

	days, err := newTestOpenMeteo(srv.URL).Forecast(context.Background(), types.ScenarioStormy)
	require.NoError(t, err)
	assert.False(t, days[0].Condition.IsStormy)
	assert.True(t, days[1].Condition.IsStormy)
}

func TestOpenMeteoForecast_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		attempt int
	}{
		{"bad request reason surfaced", http.StatusBadRequest, `{"error":true,"reason":"Latitude must be in range"}`, 1},
		{"server error retried", http.StatusServiceUnavailable, `oops`, 2},
		{"malformed payload", http.StatusOK, `{"daily":{"time":["2026-06-10"]}}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestOpenMeteo(srv.URL).Forecast(context.Background(), types.ScenarioNormal)
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.ErrCodeUpstreamForecast))
			assert.Equal(t, tt.attempt, calls)
			if tt.status == http.StatusBadRequest {
				assert.Contains(t, err.Error(), "Latitude must be in range")
			}
		})
	}
}

func TestCompass(t *testing.T) {
	assert.Equal(t, "N", compass(0))
	assert.Equal(t, "N", compass(350))
	assert.Equal(t, "E", compass(91))
	assert.Equal(t, "SW", compass(225))
}
