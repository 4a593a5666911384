package weather

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"lawncare/internal/config"
	"lawncare/internal/types"
)

// Source supplies the daily forecast window. Implementations return one
// entry per calendar day in ascending order starting today.
type Source interface {
	Name() string
	Forecast(ctx context.Context, scenario types.Scenario) ([]types.DailyForecast, error)
}

// NewSource builds the configured forecast source. Open-Meteo responses are
// cached in Redis when rdb is non-nil; the mock source is never cached.
func NewSource(cfg config.WeatherConfig, rdb *redis.Client, clock types.Clock, logger *slog.Logger) Source {
	if cfg.Source != config.WeatherSourceOpenMeteo {
		return NewMockSource(clock)
	}

	src := NewOpenMeteoSource(cfg, &http.Client{Timeout: cfg.Timeout}, clock, logger)
	if rdb == nil {
		return src
	}
	return NewCachedSource(src, NewRedisCache(rdb), cfg.CacheTTL, clock, logger)
}
