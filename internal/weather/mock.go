package weather

import (
	"context"

	"lawncare/internal/types"
)

// MockWindowDays is the length of the mock forecast, today included.
const MockWindowDays = 15

// MockSource serves a deterministic forecast anchored on the clock's today.
// The normal scenario is fair weather throughout; the stormy scenario layers
// StormOverlay on top of it.
type MockSource struct {
	clock types.Clock
}

// NewMockSource returns a MockSource. A nil clock uses the wall clock.
func NewMockSource(clock types.Clock) *MockSource {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MockSource{clock: clock}
}

func (s *MockSource) Name() string { return "mock" }

// Forecast never fails.
func (s *MockSource) Forecast(_ context.Context, scenario types.Scenario) ([]types.DailyForecast, error) {
	today := types.DateOf(s.clock.Now())
	days := make([]types.DailyForecast, 0, MockWindowDays)
	for i := 0; i < MockWindowDays; i++ {
		days = append(days, fairDay(today.AddDays(i), i))
	}
	if scenario == types.ScenarioStormy {
		days = StormOverlay(days, today)
	}
	return days, nil
}

// fairDay produces mild, varied weather that always passes the suitability
// predicate and scores well above the reschedule cut-off.
func fairDay(date types.Date, i int) types.DailyForecast {
	high := 72.0 + float64(i%5)*2
	chance := float64((i * 7) % 30)
	wind := 5.0 + float64(i%4)*2

	c := types.WeatherCondition{
		Temperature:   high - 4,
		FeelsLike:     high - 5,
		Humidity:      45 + float64(i%6)*5,
		WindSpeed:     wind,
		WindDirection: windDirections[i%len(windDirections)],
		UVIndex:       float64(4 + i%4),
	}
	if chance < 20 {
		c.Code, c.Description, c.IsSunny = "clear", "Sunny", true
	} else {
		c.Code, c.Description = "partly-cloudy", "Partly cloudy"
	}

	return types.DailyForecast{
		Date:                date,
		Condition:           c,
		High:                high,
		Low:                 high - 15,
		Sunrise:             "06:45",
		Sunset:              "19:30",
		PrecipitationChance: chance,
	}
}

var windDirections = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// StormOverlay returns a copy of forecast with a storm system passing
// through: thunderstorms on today+1 and today+2, heavy rain on today+3 and
// high winds on today+5. Days outside the window are left alone.
func StormOverlay(forecast []types.DailyForecast, today types.Date) []types.DailyForecast {
	out := make([]types.DailyForecast, len(forecast))
	copy(out, forecast)

	for i := range out {
		switch today.DaysUntil(out[i].Date) {
		case 1, 2:
			out[i].Condition = types.WeatherCondition{
				Code: "thunderstorm", Description: "Thunderstorms",
				Temperature: 68, FeelsLike: 66, Humidity: 92,
				WindSpeed: 25, WindDirection: "SW", Precipitation: 1.2, UVIndex: 1,
				IsRainy: true, IsStormy: true, IsWindy: true,
			}
			out[i].PrecipitationChance = 95
		case 3:
			out[i].Condition = types.WeatherCondition{
				Code: "heavy-rain", Description: "Heavy rain",
				Temperature: 64, FeelsLike: 62, Humidity: 88,
				WindSpeed: 12, WindDirection: "S", Precipitation: 0.6, UVIndex: 2,
				IsRainy: true,
			}
			out[i].PrecipitationChance = 85
		case 5:
			out[i].Condition = types.WeatherCondition{
				Code: "windy", Description: "Windy",
				Temperature: 70, FeelsLike: 67, Humidity: 40,
				WindSpeed: 22, WindDirection: "NW", UVIndex: 5,
				IsWindy: true,
			}
			out[i].PrecipitationChance = 20
		}
	}
	return out
}
