package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Loader reads through a Store, decoding JSON values. Cache failures are
// logged and never fail the caller.
type Loader struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

func NewLoader(store Store, ttl time.Duration, log *zap.Logger) *Loader {
	return &Loader{store: store, ttl: ttl, log: log.Named("cache")}
}

// Load returns the cached value for namespace/key or calls load and caches its result.
func Load[T any](ctx context.Context, l *Loader, namespace, key string, load func(context.Context) (T, error)) (T, error) {
	if l == nil || l.store == nil {
		return load(ctx)
	}

	if raw, ok, err := l.store.Get(ctx, namespace, key); err != nil {
		l.log.Warn("cache get failed", zap.String("namespace", namespace), zap.Error(err))
	} else if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if raw, err := json.Marshal(value); err == nil {
		if err := l.store.Set(ctx, namespace, key, raw, l.ttl); err != nil {
			l.log.Warn("cache set failed", zap.String("namespace", namespace), zap.Error(err))
		}
	}
	return value, nil
}

// Invalidate drops a namespace, logging failures.
func (l *Loader) Invalidate(ctx context.Context, namespace string) {
	if l == nil || l.store == nil {
		return
	}
	if err := l.store.Invalidate(ctx, namespace); err != nil {
		l.log.Warn("cache invalidate failed", zap.String("namespace", namespace), zap.Error(err))
	}
}
