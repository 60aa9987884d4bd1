package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Deduper is the event-dedup contract consumed by the fulfillment worker.
type Deduper interface {
	Seen(ctx context.Context, id string) bool
	Mark(ctx context.Context, id string)
}

// Dedup implements Deduper on Redis, best-effort: a Redis failure lets the
// event through, since handlers are transition-guarded anyway.
type Dedup struct {
	Client  *redis.Client
	Service string
}

func (d *Dedup) Seen(ctx context.Context, id string) bool {
	ok, err := Exists(ctx, d.Client, d.key(id))
	return err == nil && ok
}

func (d *Dedup) Mark(ctx context.Context, id string) {
	_ = d.Client.Set(ctx, d.key(id), "1", TTLDedup).Err()
}

func (d *Dedup) key(id string) string {
	return fmt.Sprintf(KeyDedup, d.Service, id)
}
