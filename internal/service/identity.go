package service

import (
	"context"
	"fmt"
	"sync"

	"wisefido-band/internal/redisclient"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 匿名用户标识在设置存储中的键
const anonymousUserIDKey = "band:settings:anonymous_user_id"

// Identity 匿名用户标识提供者
// 标识是一次性生成的随机 UUID，缓存在本地 KV 设置存储中，
// 绝不派生自任何真实身份（GDPR 约束）
type Identity struct {
	kv     redisclient.KVStore
	logger *zap.Logger

	mu     sync.Mutex
	cached string
}

func NewIdentity(kv redisclient.KVStore, logger *zap.Logger) *Identity {
	return &Identity{
		kv:     kv,
		logger: logger,
	}
}

// UserID 返回匿名用户标识，首次调用时生成并持久化
func (i *Identity) UserID(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cached != "" {
		return i.cached, nil
	}

	val, err := i.kv.Get(ctx, anonymousUserIDKey)
	if err == nil && val != "" {
		i.cached = val
		return val, nil
	}
	if err != nil && err != redisclient.ErrCacheMiss {
		return "", fmt.Errorf("failed to read anonymous user id: %w", err)
	}

	id := uuid.NewString()
	if err := i.kv.Set(ctx, anonymousUserIDKey, id, 0); err != nil {
		return "", fmt.Errorf("failed to persist anonymous user id: %w", err)
	}

	i.logger.Info("Generated anonymous user id")
	i.cached = id
	return id, nil
}
