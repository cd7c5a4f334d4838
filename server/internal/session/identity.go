package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mindly/server/internal/model"
	"mindly/server/internal/storage"
)

// RunSource 提供最近一次完成的问卷记录，由问卷历史实现。
type RunSource interface {
	Latest(ctx context.Context) (model.QuestionnaireRun, bool)
}

// UserSource 说明当前用户 ID 的来源。
type UserSource string

const (
	UserSourceNone      UserSource = ""
	UserSourcePointer   UserSource = "pointer"
	UserSourceLatestRun UserSource = "latest_run"
)

// UserContext 是聊天与问卷之间共享的用户上下文。
// 聊天模块只通过它获知用户，不直接读取问卷的存储 key。
type UserContext struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id,omitempty"`
	Source    UserSource `json:"source,omitempty"`
}

// HasUser 报告是否解析出了用户 ID。
func (u UserContext) HasUser() bool { return u.UserID != "" }

// Identity 管理设备级的持久会话 ID 与“当前用户 ID”指针。
type Identity struct {
	store *storage.Adapter
	newID func() string

	mu sync.Mutex
	// id 缓存本进程内已确定的会话 ID，存储写入失败时仍保持稳定。
	id string
}

// NewIdentity 创建 Identity；newID 为 nil 时使用 UUID v4。
func NewIdentity(store *storage.Adapter, newID func() string) *Identity {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Identity{store: store, newID: newID}
}

// SessionID 返回设备的持久会话 ID，首次调用时创建并保存，此后永不改变。
// 存储不可用时每次进程启动会得到新 ID，但同一进程内保持稳定。
func (i *Identity) SessionID(ctx context.Context) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id
	}
	if id, ok := i.store.Read(ctx, storage.KeySessionID); ok && strings.TrimSpace(id) != "" {
		i.id = id
		return id
	}
	i.id = i.newID()
	i.store.Write(ctx, storage.KeySessionID, i.id)
	return i.id
}

// SetCurrentUser 记录显式的当前用户 ID。
func (i *Identity) SetCurrentUser(ctx context.Context, userID string) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}
	i.store.Write(ctx, storage.KeyCurrentUserID, userID)
}

// ClearCurrentUser 删除当前用户 ID 指针。
func (i *Identity) ClearCurrentUser(ctx context.Context) {
	i.store.Remove(ctx, storage.KeyCurrentUserID)
}

// Resolve 按固定顺序解析用户：先取显式指针，再回退到最近一次问卷的 ID。
func (i *Identity) Resolve(ctx context.Context, runs RunSource) UserContext {
	uc := UserContext{SessionID: i.SessionID(ctx)}

	if id, ok := i.store.Read(ctx, storage.KeyCurrentUserID); ok {
		if id = strings.TrimSpace(id); id != "" {
			uc.UserID = id
			uc.Source = UserSourcePointer
			return uc
		}
	}
	if runs != nil {
		if run, ok := runs.Latest(ctx); ok && run.ID != "" {
			uc.UserID = run.ID
			uc.Source = UserSourceLatestRun
		}
	}
	return uc
}
