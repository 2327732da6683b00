package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/telemetry"
	"github.com/irfndi/stockcast/internal/utils"
)

// RedisBarStore keeps one sorted set per symbol. The score is the bar's day
// number since the Unix epoch and the member is the JSON-encoded bar.
type RedisBarStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBarStore creates a bar store on client with keys under prefix.
func NewRedisBarStore(client redis.UniversalClient, prefix string) *RedisBarStore {
	return &RedisBarStore{client: client, prefix: prefix}
}

// Name implements interfaces.BarSource.
func (s *RedisBarStore) Name() string { return "redis" }

func (s *RedisBarStore) key(symbol string) string {
	return s.prefix + models.NormalizeSymbol(symbol)
}

func dayScore(bar models.Bar) float64 {
	return float64(models.TruncateDate(bar.Date).Unix() / (24 * 60 * 60))
}

// GetBars returns up to limit of the newest bars, oldest first. A limit of 0 or less returns all bars.
func (s *RedisBarStore) GetBars(ctx context.Context, symbol string, limit int) (models.BarSeries, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.GetDatabaseTracer(), "RedisBarStore.GetBars",
		attribute.String("db.system", "redis"),
		attribute.String("symbol", models.NormalizeSymbol(symbol)),
	)
	defer span.End()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	members, err := s.client.ZRevRange(ctx, s.key(symbol), 0, stop).Result()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to read bars for %s: %w", symbol, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%s: %w", models.NormalizeSymbol(symbol), utils.ErrNoBars)
	}

	series := make(models.BarSeries, len(members))
	for i, member := range members {
		var bar models.Bar
		if err := json.Unmarshal([]byte(member), &bar); err != nil {
			return nil, fmt.Errorf("failed to decode bar for %s: %w", symbol, err)
		}
		series[len(members)-1-i] = bar
	}
	return series, nil
}

// SaveBars replaces any stored bar on the same day and adds the new ones atomically.
func (s *RedisBarStore) SaveBars(ctx context.Context, symbol string, series models.BarSeries) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.GetDatabaseTracer(), "RedisBarStore.SaveBars",
		attribute.String("db.system", "redis"),
		attribute.String("symbol", models.NormalizeSymbol(symbol)),
		attribute.Int("bars", len(series)),
	)
	defer span.End()

	key := s.key(symbol)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, bar := range series {
			bar.Date = models.TruncateDate(bar.Date)
			payload, err := json.Marshal(bar)
			if err != nil {
				return err
			}
			score := dayScore(bar)
			day := strconv.FormatFloat(score, 'f', 0, 64)
			pipe.ZRemRangeByScore(ctx, key, day, day)
			pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: string(payload)})
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to save bars for %s: %w", symbol, err)
	}
	return nil
}
