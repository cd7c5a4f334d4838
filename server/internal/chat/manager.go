package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"mindly/server/internal/gateway"
	"mindly/server/internal/logger"
	"mindly/server/internal/model"
	"mindly/server/internal/session"
	"mindly/server/internal/storage"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is still pending")
	ErrNotOpen      = errors.New("chat session is not open")
	ErrClosed       = errors.New("chat session is closed")
	ErrAbandoned    = errors.New("chat request was abandoned by the caller")
)

// Remote 是聊天会话用到的远端能力，由 gateway.Client 实现。
type Remote interface {
	FetchQuestionnaire(ctx context.Context, userID string) gateway.Result[gateway.QuestionnaireData]
	SendChat(ctx context.Context, message, sessionID, userID string) gateway.ChatReply
}

// Snapshot 是聊天会话的只读快照。
type Snapshot struct {
	SessionID string              `json:"session_id"`
	UserID    string              `json:"user_id,omitempty"`
	Messages  []model.ChatMessage `json:"messages"`
	Metrics   model.Metrics       `json:"metrics,omitempty"`
	Loading   bool                `json:"loading"`
}

// Manager 管理一个设备会话的聊天记录、指标快照与在途请求。
//
// 同一时刻最多只有一个在途请求；网络调用从不持有锁。
// Close 之后到达的回复会被丢弃。
type Manager struct {
	identity *session.Identity
	runs     session.RunSource
	remote   Remote
	store    *storage.Adapter
	greeting string
	log      *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	opened    bool
	closed    bool
	sessionID string
	userID    string
	messages  []model.ChatMessage
	metrics   model.Metrics
	loading   bool
	// gen 在新建对话时递增，旧对话的迟到回复据此丢弃。
	gen int

	subs    map[int]chan Snapshot
	nextSub int
}

// NewManager 创建聊天会话，调用 Open 后才可发送消息。
func NewManager(identity *session.Identity, runs session.RunSource, remote Remote, store *storage.Adapter, greeting string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		identity: identity,
		runs:     runs,
		remote:   remote,
		store:    store,
		greeting: greeting,
		log:      log.With("component", "chat"),
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[int]chan Snapshot),
	}
}

// Open 取得会话 ID、解析用户并恢复聊天记录。
// 没有历史记录时：解析到用户且远端有问卷结果则自动发送一次分析请求，否则显示固定问候语。
// 分析途中调用方取消时返回 ErrAbandoned，不写入任何内容，之后可以再次 Open。
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.opened {
		m.mu.Unlock()
		return nil
	}

	// 读取本地状态不受调用方取消影响，否则读失败会被当成“没有记录”。
	storeCtx := context.WithoutCancel(ctx)
	uc := m.identity.Resolve(storeCtx, m.runs)
	m.sessionID = uc.SessionID
	m.userID = uc.UserID
	m.opened = true

	var msgs []model.ChatMessage
	if m.store.ReadJSON(storeCtx, storage.ChatLogKey(m.sessionID), &msgs) && len(msgs) > 0 {
		m.messages = msgs
		var metrics map[string]float64
		if m.store.ReadJSON(storeCtx, storage.ChatMetricsKey(m.sessionID), &metrics) {
			m.metrics = model.NormalizeMetrics(metrics)
		}
		m.log.Info("chat restored", "session_id", m.sessionID, "messages", len(msgs))
		m.notifyLocked()
		m.mu.Unlock()
		return nil
	}

	if !uc.HasUser() {
		m.greetLocked(ctx)
		m.mu.Unlock()
		return nil
	}

	m.loading = true
	gen, sessionID, userID := m.gen, m.sessionID, m.userID
	m.notifyLocked()
	m.mu.Unlock()

	reqCtx, cancel := m.requestContext(ctx)
	defer cancel()

	fetch := m.remote.FetchQuestionnaire(reqCtx, userID)
	if !fetch.OK {
		m.mu.Lock()
		defer m.mu.Unlock()
		if err := m.settleOpenLocked(ctx, reqCtx, gen); err != nil {
			return err
		}
		m.log.Info("no questionnaire for analysis", "user_id", userID, "status", fetch.Status)
		m.greetLocked(ctx)
		return nil
	}

	reply := m.remote.SendChat(reqCtx, AnalysisPrompt(fetch.Data), sessionID, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.settleOpenLocked(ctx, reqCtx, gen); err != nil {
		return err
	}
	m.messages = []model.ChatMessage{{Role: model.RoleAssistant, Text: reply.Response}}
	m.metrics = reply.Metrics
	m.persistLocked(ctx)
	m.notifyLocked()
	return nil
}

// Submit 发送一条用户消息并等待回复。
// 空白消息与在途请求期间的发送会被拒绝，不追加消息也不发请求。
func (m *Manager) Submit(ctx context.Context, text string) (model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return model.ChatMessage{}, ErrClosed
	case !m.opened:
		m.mu.Unlock()
		return model.ChatMessage{}, ErrNotOpen
	case m.loading:
		m.mu.Unlock()
		return model.ChatMessage{}, ErrBusy
	}
	m.messages = append(m.messages, model.ChatMessage{Role: model.RoleUser, Text: text})
	m.loading = true
	m.persistLocked(ctx)
	m.notifyLocked()
	gen, sessionID, userID := m.gen, m.sessionID, m.userID
	m.mu.Unlock()

	reqCtx, cancel := m.requestContext(ctx)
	defer cancel()
	reply := m.remote.SendChat(reqCtx, text, sessionID, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stale(gen) {
		return model.ChatMessage{}, ErrClosed
	}
	if reqCtx.Err() != nil || ctx.Err() != nil {
		// 调用方已离开：回复被丢弃，用户消息保留，可以重新发送。
		m.loading = false
		m.notifyLocked()
		m.log.Info("chat reply abandoned", "session_id", sessionID)
		return model.ChatMessage{}, ErrAbandoned
	}
	msg := model.ChatMessage{Role: model.RoleAssistant, Text: reply.Response}
	m.messages = append(m.messages, msg)
	m.metrics = reply.Metrics
	m.loading = false
	m.persistLocked(ctx)
	m.notifyLocked()
	return msg, nil
}

// NewConversation 回到只有问候语的新对话：清空指标与已解析的用户，删除已保存的记录。会话 ID 不变。
func (m *Manager) NewConversation(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !m.opened {
		return ErrNotOpen
	}
	m.gen++
	m.loading = false
	m.userID = ""
	m.metrics = nil
	m.messages = []model.ChatMessage{{Role: model.RoleAssistant, Text: m.greeting}}
	ctx = context.WithoutCancel(ctx)
	m.store.Remove(ctx, storage.ChatLogKey(m.sessionID))
	m.store.Remove(ctx, storage.ChatMetricsKey(m.sessionID))
	m.notifyLocked()
	return nil
}

// Snapshot 返回当前状态。
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe 订阅状态变化。通道只保留最新一份快照；取消函数可重复调用。
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		})
	}
}

// Close 取消在途请求并关闭所有订阅，之后到达的回复不再生效。
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.loading = false
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

// requestContext 在调用方取消或会话关闭时取消请求。
func (m *Manager) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	reqCtx, cancel := context.WithCancel(m.ctx)
	if ctx.Err() != nil {
		cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	return reqCtx, func() {
		stop()
		cancel()
	}
}

func (m *Manager) stale(gen int) bool {
	return m.closed || m.gen != gen
}

// settleOpenLocked 结束自动分析的 loading。调用方取消时不写入任何内容，
// 并把会话恢复为未打开，下次 Open 会重新尝试。
func (m *Manager) settleOpenLocked(ctx, reqCtx context.Context, gen int) error {
	if m.stale(gen) {
		return ErrClosed
	}
	m.loading = false
	if reqCtx.Err() != nil || ctx.Err() != nil {
		m.opened = false
		m.notifyLocked()
		return ErrAbandoned
	}
	return nil
}

func (m *Manager) greetLocked(ctx context.Context) {
	m.messages = []model.ChatMessage{{Role: model.RoleAssistant, Text: m.greeting}}
	m.persistLocked(ctx)
	m.notifyLocked()
}

// persistLocked 在网络调用之后也会被调用，调用方的取消不能阻止写入。
func (m *Manager) persistLocked(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	m.store.WriteJSON(ctx, storage.ChatLogKey(m.sessionID), m.messages)
	if m.metrics != nil {
		m.store.WriteJSON(ctx, storage.ChatMetricsKey(m.sessionID), m.metrics)
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: m.sessionID,
		UserID:    m.userID,
		Messages:  append([]model.ChatMessage{}, m.messages...),
		Metrics:   m.metrics.Clone(),
		Loading:   m.loading,
	}
}

func (m *Manager) notifyLocked() {
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// AnalysisPrompt 根据最近一次问卷生成自动分析请求，答案按题目 ID 排序。
// 该提示只发给远端，不写入聊天记录。
func AnalysisPrompt(data gateway.QuestionnaireData) string {
	var b strings.Builder
	b.WriteString("Please analyze my latest wellness questionnaire")
	if data.Timestamp != "" {
		fmt.Fprintf(&b, " (completed %s)", data.Timestamp)
	}
	b.WriteString(" and give me a short, supportive summary with practical next steps.\nMy answers:")
	for _, id := range data.Responses.Keys() {
		fmt.Fprintf(&b, "\n- %s: %d", id, data.Responses[id])
	}
	return b.String()
}
