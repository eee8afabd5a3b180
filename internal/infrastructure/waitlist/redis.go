package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis waitlist settings
type Config struct {
	Addr     string
	Password string
	DB       int
	// Key is the sorted set; entries live under Key + ":" + code
	Key string
	// EntryTTL bounds how long an abandoned entry survives
	EntryTTL time.Duration
}

// DefaultConfig returns defaults for a local Redis
func DefaultConfig() Config {
	return Config{
		Addr:     "localhost:6379",
		Key:      "triage:waitlist",
		EntryTTL: 24 * time.Hour,
	}
}

// Redis is a waitlist backed by a sorted set and one hash per patient
type Redis struct {
	client *redis.Client
	config Config
	logger *zap.Logger
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, cfg Config, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Key == "" {
		cfg.Key = DefaultConfig().Key
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.String("key", cfg.Key))
	return &Redis{client: client, config: cfg, logger: logger}, nil
}

func (r *Redis) entryKey(code string) string {
	return r.config.Key + ":" + code
}

// Add inserts or replaces a patient's entry
func (r *Redis) Add(ctx context.Context, e Entry) error {
	e.ArrivedAtMillis = e.ArrivedAt.UnixMilli()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.entryKey(e.PatientCode), e)
		if r.config.EntryTTL > 0 {
			pipe.Expire(ctx, r.entryKey(e.PatientCode), r.config.EntryTTL)
		}
		pipe.ZAdd(ctx, r.config.Key, redis.Z{
			Score:  Score(e.PriorityScore, e.ArrivedAt),
			Member: e.PatientCode,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("add %s to waitlist: %w", e.PatientCode, err)
	}
	return nil
}

// Remove deletes a patient's entry. Removing an absent patient is not an error.
func (r *Redis) Remove(ctx context.Context, code string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, r.config.Key, code)
		pipe.Del(ctx, r.entryKey(code))
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %s from waitlist: %w", code, err)
	}
	return nil
}

// Top returns up to n entries, most urgent first. Members whose hash has
// expired are dropped from the set.
func (r *Redis) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultLimit
	}

	codes, err := r.client.ZRevRange(ctx, r.config.Key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read waitlist: %w", err)
	}
	if len(codes) == 0 {
		return []Entry{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(codes))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, code := range codes {
			cmds[i] = pipe.HGetAll(ctx, r.entryKey(code))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read waitlist entries: %w", err)
	}

	entries := make([]Entry, 0, len(codes))
	var stale []any
	for i, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			stale = append(stale, codes[i])
			continue
		}
		var e Entry
		if err := cmd.Scan(&e); err != nil {
			return nil, fmt.Errorf("decode waitlist entry %s: %w", codes[i], err)
		}
		e.ArrivedAt = time.UnixMilli(e.ArrivedAtMillis).UTC()
		entries = append(entries, e)
	}

	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, r.config.Key, stale...).Err(); err != nil {
			r.logger.Warn("failed to prune stale waitlist members", zap.Error(err))
		}
	}

	return entries, nil
}

// Len returns the number of waiting patients
func (r *Redis) Len(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, r.config.Key).Result()
	if err != nil {
		return 0, fmt.Errorf("count waitlist: %w", err)
	}
	return n, nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client
func (r *Redis) Close() error {
	return r.client.Close()
}
