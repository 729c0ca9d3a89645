package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultTTL = 2 * time.Minute

var Module = fx.Module("cache",
	fx.Provide(
		NewRedisClient,
		newStore,
		newLoader,
	),
)

func newStore(client *redis.Client) Store {
	if client == nil {
		return NewMemoryStore()
	}
	return NewRedisStore(client, "atelier")
}

func newLoader(store Store, log *zap.Logger) *Loader {
	return NewLoader(store, defaultTTL, log)
}
