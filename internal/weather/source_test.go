package weather

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"lawncare/internal/config"
)

func TestNewSource(t *testing.T) {
	cfg := config.WeatherConfig{Source: config.WeatherSourceMock}
	assert.IsType(t, &MockSource{}, NewSource(cfg, nil, fixedClock(), nil))

	cfg.Source = config.WeatherSourceOpenMeteo
	assert.IsType(t, &OpenMeteoSource{}, NewSource(cfg, nil, fixedClock(), nil))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	src := NewSource(cfg, rdb, fixedClock(), nil)
	assert.IsType(t, &CachedSource{}, src)
	assert.Equal(t, "open-meteo", src.Name())
}
