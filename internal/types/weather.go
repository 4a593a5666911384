package types

import "fmt"

// WeatherCondition is a single forecast snapshot. Units are imperial:
// degrees Fahrenheit, miles per hour and inches of precipitation.
type WeatherCondition struct {
	Code          string  `json:"code"`
	Description   string  `json:"description"`
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection string  `json:"wind_direction"`
	Precipitation float64 `json:"precipitation"`
	UVIndex       float64 `json:"uv_index"`

	IsRainy  bool `json:"is_rainy"`
	IsSnowy  bool `json:"is_snowy"`
	IsStormy bool `json:"is_stormy"`
	IsSunny  bool `json:"is_sunny"`
	IsWindy  bool `json:"is_windy"`
}

// DailyForecast is the forecast for one calendar day.
type DailyForecast struct {
	Date                Date             `json:"date"`
	Condition           WeatherCondition `json:"condition"`
	High                float64          `json:"high"`
	Low                 float64          `json:"low"`
	Sunrise             string           `json:"sunrise"`
	Sunset              string           `json:"sunset"`
	PrecipitationChance float64          `json:"precipitation_chance"`
}

// Scenario selects which forecast the mock weather source serves.
type Scenario string

const (
	ScenarioNormal Scenario = "normal"
	ScenarioStormy Scenario = "stormy"
)

// ParseScenario maps a query value onto a Scenario. Empty input means normal.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(s) {
	case "", ScenarioNormal:
		return ScenarioNormal, nil
	case ScenarioStormy:
		return ScenarioStormy, nil
	default:
		return "", NewAppError(ErrCodeValidationInvalidScenario,
			fmt.Sprintf("unknown scenario %q (want normal or stormy)", s), nil)
	}
}

// Severity grades how badly weather affects an appointment.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities so that high sorts first. Unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// WeatherImpact describes whether the forecast for an appointment's day
// warrants rescheduling. Severity is empty when Affected is false.
type WeatherImpact struct {
	Affected bool     `json:"affected"`
	Reason   string   `json:"reason,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}
