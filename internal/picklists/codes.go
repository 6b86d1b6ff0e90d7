package picklists

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultCodePrefix = "PL"
	codeCounterTTL    = 48 * time.Hour
)

// CodeGenerator hands out human-readable pick list codes.
type CodeGenerator interface {
	Next(ctx context.Context, now time.Time) (string, error)
}

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(parts ...string) string
}

// RedisCodeGenerator numbers lists per UTC day: PL-20260301-0007. The unique
// index on pick_lists.code catches any collision after a counter reset.
type RedisCodeGenerator struct {
	store  counterStore
	prefix string
}

func NewRedisCodeGenerator(store counterStore, prefix string) (*RedisCodeGenerator, error) {
	if store == nil {
		return nil, errors.New("redis counter store required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultCodePrefix
	}
	return &RedisCodeGenerator{store: store, prefix: prefix}, nil
}

func (g *RedisCodeGenerator) Next(ctx context.Context, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")
	seq, err := g.store.IncrWithTTL(ctx, g.store.CounterKey("picklist-code", day), codeCounterTTL)
	if err != nil {
		return "", fmt.Errorf("incrementing pick list counter: %w", err)
	}
	return FormatCode(g.prefix, now, seq), nil
}

// FormatCode renders prefix-YYYYMMDD-NNNN. Sequences above 9999 keep all digits.
func FormatCode(prefix string, now time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.UTC().Format("20060102"), seq)
}
