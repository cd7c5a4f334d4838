package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Backend 是设备本地键值存储的底层实现，只处理字符串，序列化由调用方负责。
type Backend interface {
	// Get 读取 key；不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete 删除 key；key 不存在不视为错误。
	Delete(ctx context.Context, key string) error
	Close() error
}
