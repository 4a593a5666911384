// Package weather scores daily forecasts for outdoor lawn-care work and
// supplies those forecasts from a deterministic mock or from Open-Meteo.
package weather

import (
	"fmt"
	"math"

	"lawncare/internal/types"
)

// Reasons reported when a condition is unsuitable for outdoor work.
const (
	ReasonStormy    = "Stormy conditions"
	ReasonHeavyRain = "Heavy rain"
	ReasonHighWinds = "High winds"
	ReasonTooCold   = "Too cold"
	ReasonTooHot    = "Too hot"
)

// Thresholds for the suitability predicate and the impact check.
const (
	heavyRainInches   = 0.25
	highWindMPH       = 15.0
	severeWindMPH     = 20.0
	minTemperatureF   = 40.0
	maxTemperatureF   = 95.0
	idealTemperatureF = 75.0

	likelyPrecipitation = 70.0
	severePrecipitation = 90.0
)

// Suitability is the verdict of IsSuitableForLawnCare. Reason is empty when
// Suitable is true.
type Suitability struct {
	Suitable bool   `json:"suitable"`
	Reason   string `json:"reason,omitempty"`
}

// IsSuitableForLawnCare applies the rules in order and reports the first one
// that fails.
func IsSuitableForLawnCare(c types.WeatherCondition) Suitability {
	switch {
	case c.IsStormy:
		return Suitability{Reason: ReasonStormy}
	case c.IsRainy && c.Precipitation > heavyRainInches:
		return Suitability{Reason: ReasonHeavyRain}
	case c.IsWindy && c.WindSpeed > highWindMPH:
		return Suitability{Reason: ReasonHighWinds}
	case c.Temperature < minTemperatureF:
		return Suitability{Reason: ReasonTooCold}
	case c.Temperature > maxTemperatureF:
		return Suitability{Reason: ReasonTooHot}
	}
	return Suitability{Suitable: true}
}

// unsuitableScore is the fixed score returned for a day that fails the
// predicate outright.
func unsuitableScore(reason string) int {
	switch reason {
	case ReasonStormy:
		return 0
	case ReasonHeavyRain:
		return 10
	case ReasonHighWinds:
		return 20
	case ReasonTooCold, ReasonTooHot:
		return 30
	default:
		return 40
	}
}

// SuitabilityScore rates a day from 0 (no work possible) to 100 (ideal).
// Suitable days lose points for precipitation chance, wind above 10 mph and
// temperatures more than 10°F away from 75°F.
func SuitabilityScore(f types.DailyForecast) int {
	c := f.Condition
	if s := IsSuitableForLawnCare(c); !s.Suitable {
		return unsuitableScore(s.Reason)
	}

	score := 100.0
	score -= f.PrecipitationChance * 0.7
	if c.WindSpeed > 10 {
		score -= (c.WindSpeed - 10) * 3
	}
	if dev := math.Abs(c.Temperature - idealTemperatureF); dev > 10 {
		score -= (dev - 10) * 1.5
	}

	return int(math.Round(math.Max(0, math.Min(100, score))))
}

// ForecastFor returns the forecast entry for day, if the window has one.
func ForecastFor(forecast []types.DailyForecast, day types.Date) (types.DailyForecast, bool) {
	for _, f := range forecast {
		if f.Date.Equal(day) {
			return f, true
		}
	}
	return types.DailyForecast{}, false
}

// AppointmentImpact decides whether the forecast for the appointment's day
// warrants a reschedule. Days missing from the forecast are not affected.
func AppointmentImpact(a types.Appointment, forecast []types.DailyForecast) types.WeatherImpact {
	f, ok := ForecastFor(forecast, a.Date)
	if !ok {
		return types.WeatherImpact{}
	}

	if s := IsSuitableForLawnCare(f.Condition); !s.Suitable {
		severity := types.SeverityMedium
		if s.Reason == ReasonStormy || s.Reason == ReasonHeavyRain {
			severity = types.SeverityHigh
		}
		return types.WeatherImpact{Affected: true, Reason: s.Reason, Severity: severity}
	}

	if f.PrecipitationChance > likelyPrecipitation {
		severity := types.SeverityMedium
		if f.PrecipitationChance > severePrecipitation {
			severity = types.SeverityHigh
		}
		return types.WeatherImpact{
			Affected: true,
			Reason:   fmt.Sprintf("High chance of precipitation (%.0f%%)", f.PrecipitationChance),
			Severity: severity,
		}
	}

	if wind := f.Condition.WindSpeed; wind > highWindMPH {
		severity := types.SeverityMedium
		if wind > severeWindMPH {
			severity = types.SeverityHigh
		}
		return types.WeatherImpact{
			Affected: true,
			Reason:   fmt.Sprintf("Strong winds (%.0f mph)", wind),
			Severity: severity,
		}
	}

	return types.WeatherImpact{}
}
