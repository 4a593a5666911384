package weather

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawncare/internal/types"
)

// countingSource counts upstream fetches.
type countingSource struct {
	calls int
	days  []types.DailyForecast
	err   error
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Forecast(context.Context, types.Scenario) ([]types.DailyForecast, error) {
	s.calls++
	return s.days, s.err
}

func sampleDays() []types.DailyForecast {
	return []types.DailyForecast{
		{Date: testToday, Condition: pleasant(), High: 80, Low: 60, PrecipitationChance: 10},
		{Date: testToday.AddDays(1), Condition: types.WeatherCondition{IsStormy: true}, PrecipitationChance: 95},
	}
}

func TestRedisCache_Set(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name      string
		value     any
		setupMock func(mock redismock.ClientMock, value any)
		wantErr   bool
	}{
		{
			name:  "Success",
			value: sampleDays(),
			setupMock: func(mock redismock.ClientMock, value any) {
				jsonData, _ := json.Marshal(value)
				mock.ExpectSet("forecast:key", jsonData, time.Minute).SetVal("OK")
			},
		},
		{
			name:      "Error on json.Marshal",
			value:     make(chan int),
			setupMock: func(redismock.ClientMock, any) {},
			wantErr:   true,
		},
		{
			name:  "Error from Redis client",
			value: "v",
			setupMock: func(mock redismock.ClientMock, value any) {
				jsonData, _ := json.Marshal(value)
				mock.ExpectSet("forecast:key", jsonData, time.Minute).SetErr(errors.New("redis error"))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			redisClient, redisMock := redismock.NewClientMock()
			defer redisClient.Close()

			tc.setupMock(redisMock, tc.value)
			err := NewRedisCache(redisClient).Set(ctx, "forecast:key", tc.value, time.Minute)

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, redisMock.ExpectationsWereMet())
		})
	}
}

func TestRedisCache_GetMiss(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	defer redisClient.Close()

	redisMock.ExpectGet("forecast:missing").RedisNil()
	_, err := NewRedisCache(redisClient).Get(context.Background(), "forecast:missing")
	assert.ErrorIs(t, err, redis.Nil)
}

func newMiniredisCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewRedisCache(rdb)
}

func TestCachedSource_MissThenHit(t *testing.T) {
	mr, cache := newMiniredisCache(t)
	upstream := &countingSource{days: sampleDays()}
	src := NewCachedSource(upstream, cache, 30*time.Minute, fixedClock(), nil)

	first, err := src.Forecast(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)
	second, err := src.Forecast(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)

	assert.Equal(t, 1, upstream.calls)
	require.Len(t, second, 2)
	assert.True(t, second[1].Date.Equal(first[1].Date))
	assert.True(t, second[1].Condition.IsStormy)

	key := "forecast:counting:normal:2026-06-10"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Minute, mr.TTL(key))
}

func TestCachedSource_ScenariosCachedSeparately(t *testing.T) {
	_, cache := newMiniredisCache(t)
	upstream := &countingSource{days: sampleDays()}
	src := NewCachedSource(upstream, cache, time.Hour, fixedClock(), nil)

	_, _ = src.Forecast(context.Background(), types.ScenarioNormal)
	_, _ = src.Forecast(context.Background(), types.ScenarioStormy)
	assert.Equal(t, 2, upstream.calls)
}

func TestCachedSource_ExpiredEntryRefetches(t *testing.T) {
	mr, cache := newMiniredisCache(t)
	upstream := &countingSource{days: sampleDays()}
	src := NewCachedSource(upstream, cache, time.Minute, fixedClock(), nil)

	_, _ = src.Forecast(context.Background(), types.ScenarioNormal)
	mr.FastForward(2 * time.Minute)
	_, _ = src.Forecast(context.Background(), types.ScenarioNormal)
	assert.Equal(t, 2, upstream.calls)
}

func TestCachedSource_CorruptEntryRefetches(t *testing.T) {
	mr, cache := newMiniredisCache(t)
	require.NoError(t, mr.Set("forecast:counting:normal:2026-06-10", "{not json"))

	upstream := &countingSource{days: sampleDays()}
	days, err := NewCachedSource(upstream, cache, time.Minute, fixedClock(), nil).Forecast(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)
	assert.Len(t, days, 2)
	assert.Equal(t, 1, upstream.calls)
}

func TestCachedSource_RedisDownFallsThrough(t *testing.T) {
	mr, cache := newMiniredisCache(t)
	mr.Close()

	upstream := &countingSource{days: sampleDays()}
	days, err := NewCachedSource(upstream, cache, time.Minute, fixedClock(), nil).Forecast(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)
	assert.Len(t, days, 2)
}

func TestCachedSource_UpstreamErrorNotCached(t *testing.T) {
	mr, cache := newMiniredisCache(t)
	upstream := &countingSource{err: types.NewAppError(types.ErrCodeUpstreamForecast, "down", nil)}

	_, err := NewCachedSource(upstream, cache, time.Minute, fixedClock(), nil).Forecast(context.Background(), types.ScenarioNormal)
	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamForecast))
	assert.Empty(t, mr.Keys())
}
