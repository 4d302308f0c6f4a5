package payherewebhook

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/angelmondragon/farmlink-backend/pkg/redis"
)

const dedupeScope = "payhere"

// Deduper claims notification keys in redis so PayHere retries of an already
// applied callback skip reconciliation.
type Deduper struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewDeduper(store redis.IdempotencyStore, ttl time.Duration) (*Deduper, error) {
	switch {
	case store == nil:
		return nil, errors.New("payhere dedupe: store is required")
	case ttl <= 0:
		return nil, errors.New("payhere dedupe: ttl must be positive")
	}
	return &Deduper{store: store, ttl: ttl}, nil
}

// Claim returns replay=true when another delivery already holds key.
func (d *Deduper) Claim(ctx context.Context, key string) (replay bool, err error) {
	if key == "" {
		return false, errors.New("payhere dedupe: empty key")
	}
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	claimed, err := d.store.SetNX(ctx, d.store.IdempotencyKey(dedupeScope, key), stamp, d.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Release drops a claim after a failed reconciliation.
func (d *Deduper) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return d.store.Del(ctx, d.store.IdempotencyKey(dedupeScope, key))
}
