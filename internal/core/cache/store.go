package cache

import (
	"context"
	"fmt"

	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/pkg/common"
)

// Store 鍵值快取
//
// Get 未命中時回傳 common.ErrCacheMiss。
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New 依設定建立快取；停用時回傳 nil
func New(ctx context.Context, cfg *config.CacheConfig) (Store, error) {
	if !cfg.Enabled {
		common.LogInfo("快取已停用")
		return nil, nil
	}
	switch cfg.Backend {
	case config.CacheBackendRedis:
		s, err := NewRedisStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CacheBackendMemory, "":
		return NewManager(cfg), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
