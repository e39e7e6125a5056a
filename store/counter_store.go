package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	minuteKeyLayout = "2006-01-02:15:04"
	minuteField     = "events"
	countryField    = "count"
)

// CounterStore keeps coarse realtime tallies in Redis. Nothing in the service reads
// them back; they exist for external dashboards watching Redis directly.
type CounterStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCounterStore(client *redis.Client, ttl time.Duration) *CounterStore {
	return &CounterStore{client: client, ttl: ttl}
}

func MinuteKey(t time.Time) string {
	return "realtime:" + t.UTC().Format(minuteKeyLayout)
}

func CountryKey(country string) string {
	return "country:" + country
}

// Increment bumps the minute bucket for at and the tally for country, refreshing the
// expiry on both. Retries can double count.
func (s *CounterStore) Increment(ctx context.Context, at time.Time, country string) error {
	minuteKey := MinuteKey(at)
	countryKey := CountryKey(country)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, minuteKey, minuteField, 1)
		pipe.Expire(ctx, minuteKey, s.ttl)
		pipe.HIncrBy(ctx, countryKey, countryField, 1)
		pipe.Expire(ctx, countryKey, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment realtime counters: %w", err)
	}
	return nil
}
