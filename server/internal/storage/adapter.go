package storage

import (
	"context"
	"encoding/json"
	"errors"

	"mindly/server/internal/logger"
)

// Adapter 是各组件使用的本地持久化入口。
// 它从不向外返回错误：配额、禁用、损坏的数据一律记录日志并视为“不存在”。
type Adapter struct {
	backend Backend
	log     *logger.Logger
}

// NewAdapter 包装一个 Backend。log 为 nil 时不输出日志。
func NewAdapter(backend Backend, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Adapter{backend: backend, log: log.With("component", "storage")}
}

// Read 读取原始字符串；不存在或出错时 ok 为 false。
func (a *Adapter) Read(ctx context.Context, key string) (string, bool) {
	v, err := a.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.log.Warn("storage read failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

// Write 写入原始字符串，失败只记录日志。返回值仅供需要确认落盘的调用方参考。
func (a *Adapter) Write(ctx context.Context, key, raw string) bool {
	if err := a.backend.Set(ctx, key, raw); err != nil {
		a.log.Warn("storage write failed", "key", key, "error", err)
		return false
	}
	return true
}

// Remove 删除 key，失败只记录日志。
func (a *Adapter) Remove(ctx context.Context, key string) {
	if err := a.backend.Delete(ctx, key); err != nil {
		a.log.Warn("storage remove failed", "key", key, "error", err)
	}
}

// ReadJSON 读取并反序列化到 out；不存在或 JSON 损坏时返回 false。
// 返回 false 时 out 可能已被部分填充，调用方应传入新值并丢弃它。
func (a *Adapter) ReadJSON(ctx context.Context, key string, out any) bool {
	raw, ok := a.Read(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		a.log.Warn("storage value corrupt, treating as absent", "key", key, "error", err)
		return false
	}
	return true
}

// WriteJSON 序列化 v 并写入。
func (a *Adapter) WriteJSON(ctx context.Context, key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		a.log.Warn("storage marshal failed", "key", key, "error", err)
		return false
	}
	return a.Write(ctx, key, string(data))
}
