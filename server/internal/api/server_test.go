package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mindly/server/internal/chat"
	"mindly/server/internal/config"
	"mindly/server/internal/gateway"
	"mindly/server/internal/library"
	"mindly/server/internal/mood"
	"mindly/server/internal/questionnaire"
	"mindly/server/internal/session"
	"mindly/server/internal/storage"
)

// remoteStub 用 gin 模拟远端问卷存储与聊天推理服务。
type remoteStub struct {
	mu      sync.Mutex
	saved   []map[string]any
	chats   []map[string]any
	failAll bool
}

func (r *remoteStub) handler() http.Handler {
	engine := gin.New()
	engine.POST("/api/questionnaire/latest", func(c *gin.Context) {
		var body map[string]any
		_ = c.ShouldBindJSON(&body)
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.failAll {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db down"})
			return
		}
		r.saved = append(r.saved, body)
		c.JSON(http.StatusOK, gin.H{})
	})
	engine.GET("/api/questionnaire/latest", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No questionnaire found"})
	})
	engine.POST("/api/chat", func(c *gin.Context) {
		var body map[string]any
		_ = c.ShouldBindJSON(&body)
		r.mu.Lock()
		r.chats = append(r.chats, body)
		r.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"response": "**Noted.** Keep going.", "metrics": gin.H{"stress": 3}})
	})
	return engine
}

type testEnv struct {
	server   *httptest.Server
	remote   *remoteStub
	store    *storage.Adapter
	identity *session.Identity
	chat     *chat.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	remote := &remoteStub{}
	remoteSrv := httptest.NewServer(remote.handler())
	t.Cleanup(remoteSrv.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = remoteSrv.URL
	cfg.Storage.Driver = "memory"
	cfg.Server.PingInterval = time.Second

	store := storage.NewAdapter(storage.NewMemoryBackend(), nil)
	catalog := questionnaire.DefaultCatalog()
	history := questionnaire.NewHistory(store, cfg.Questionnaire.HistoryLimit)
	wizard := questionnaire.NewWizard(catalog, store, history, nil)
	wizard.Load(context.Background())
	moods := mood.NewRecorder(store, nil)
	moods.Load(context.Background())
	identity := session.NewIdentity(store, func() string { return "sess-test" })
	client := gateway.NewClient(cfg.Backend, cfg.Chat.Apology, nil)
	manager := chat.NewManager(identity, history, client, store, cfg.Chat.Greeting, nil)
	if err := manager.Open(context.Background()); err != nil {
		t.Fatalf("open chat: %v", err)
	}
	t.Cleanup(manager.Close)

	srv := NewServer(Deps{
		Config:   cfg,
		Catalog:  catalog,
		Wizard:   wizard,
		Moods:    moods,
		Chat:     manager,
		Identity: identity,
		Remote:   client,
		Library:  library.New(library.DefaultContent(), func(int) int { return 0 }),
		Themes:   library.NewThemeStore(store),
	})
	httpSrv := httptest.NewServer(srv.Routes())
	t.Cleanup(httpSrv.Close)

	return &testEnv{server: httpSrv, remote: remote, store: store, identity: identity, chat: manager}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected healthz %d %v", status, body)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

// TestQuestionnaireFlow 完整作答六个分区：未答完不能前进，完成后生成记录、上传并设置当前用户。
func TestQuestionnaireFlow(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/questionnaire/advance", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete section, got %d", status)
	}

	catalog := questionnaire.DefaultCatalog()
	var last map[string]any
	for i, section := range catalog.Sections() {
		for _, q := range section.Questions {
			status, body := env.do(t, http.MethodPost, "/api/questionnaire/answers", gin.H{"question_id": q.ID, "value": 1})
			if status != http.StatusOK {
				t.Fatalf("answer %s: %d %v", q.ID, status, body)
			}
		}
		status, body := env.do(t, http.MethodPost, "/api/questionnaire/advance", nil)
		if status != http.StatusOK {
			t.Fatalf("advance section %d: %d %v", i, status, body)
		}
		last = body
	}

	run, ok := last["run"].(map[string]any)
	if !ok {
		t.Fatalf("expected run in final advance, got %v", last)
	}
	syncRes, ok := last["sync"].(map[string]any)
	if !ok || syncRes["ok"] != true {
		t.Fatalf("expected successful sync, got %v", last["sync"])
	}
	state := last["state"].(map[string]any)
	if state["show_summary"] != true {
		t.Fatalf("expected summary state, got %v", state)
	}

	env.remote.mu.Lock()
	saved := len(env.remote.saved)
	userID := env.remote.saved[0]["userId"]
	env.remote.mu.Unlock()
	if saved != 1 || userID != run["id"] {
		t.Fatalf("unexpected remote saves %d userId=%v run=%v", saved, userID, run["id"])
	}
	if uc := env.identity.Resolve(context.Background(), nil); uc.UserID != run["id"] {
		t.Fatalf("expected current user %v, got %+v", run["id"], uc)
	}

	status, _ = env.do(t, http.MethodPost, "/api/questionnaire/answers", gin.H{"question_id": "phq1", "value": 2})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 while showing summary, got %d", status)
	}

	status, body := env.do(t, http.MethodPost, "/api/questionnaire/restart", nil)
	if status != http.StatusOK || body["current_index"] != float64(0) || len(body["responses"].(map[string]any)) != 0 {
		t.Fatalf("unexpected restart state %d %v", status, body)
	}
	if hist := body["history"].([]any); len(hist) != 1 {
		t.Fatalf("restart must keep history, got %d", len(hist))
	}

	status, body = env.do(t, http.MethodDelete, "/api/questionnaire/history", nil)
	if status != http.StatusOK || len(body["history"].([]any)) != 0 {
		t.Fatalf("unexpected history after clear %v", body["history"])
	}
	if uc := env.identity.Resolve(context.Background(), nil); uc.UserID != "" {
		t.Fatalf("expected current user cleared with history, got %+v", uc)
	}
}

// completeQuestionnaire 以每题 1 分答完全部分区，返回最后一次 advance 的响应。
func (e *testEnv) completeQuestionnaire(t *testing.T) map[string]any {
	t.Helper()
	var last map[string]any
	for _, section := range questionnaire.DefaultCatalog().Sections() {
		for _, q := range section.Questions {
			if status, body := e.do(t, http.MethodPost, "/api/questionnaire/answers", gin.H{"question_id": q.ID, "value": 1}); status != http.StatusOK {
				t.Fatalf("answer %s: %d %v", q.ID, status, body)
			}
		}
		status, body := e.do(t, http.MethodPost, "/api/questionnaire/advance", nil)
		if status != http.StatusOK {
			t.Fatalf("advance %s: %d %v", section.Key, status, body)
		}
		last = body
	}
	return last
}

// TestQuestionnaireSyncFailureKeepsLocalRun 验证上传失败时记录仍保存在本地，且不设置当前用户。
func TestQuestionnaireSyncFailureKeepsLocalRun(t *testing.T) {
	env := newTestEnv(t)
	env.remote.mu.Lock()
	env.remote.failAll = true
	env.remote.mu.Unlock()

	last := env.completeQuestionnaire(t)
	syncRes := last["sync"].(map[string]any)
	if syncRes["ok"] != false || syncRes["status"] != float64(http.StatusInternalServerError) || syncRes["error"] != "db down" {
		t.Fatalf("unexpected sync result %v", syncRes)
	}
	state := last["state"].(map[string]any)
	if len(state["history"].([]any)) != 1 {
		t.Fatalf("expected local run kept, got %v", state["history"])
	}
	if uc := env.identity.Resolve(context.Background(), nil); uc.HasUser() {
		t.Fatalf("current user must not be set after failed sync: %+v", uc)
	}
}

func TestQuestionnaireRejectsInvalidAnswer(t *testing.T) {
	env := newTestEnv(t)
	cases := []gin.H{
		{"question_id": "nope", "value": 1},
		{"question_id": "phq1", "value": 9},
		{"question_id": "phq1"},
	}
	for _, body := range cases {
		if status, _ := env.do(t, http.MethodPost, "/api/questionnaire/answers", body); status != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, status)
		}
	}
}

func TestMoodFlow(t *testing.T) {
	env := newTestEnv(t)

	steps := []struct {
		path string
		body any
		want int
	}{
		{"/api/moods/wizard/emotions", gin.H{"name": "Calm"}, http.StatusConflict},
		{"/api/moods/wizard/mood", gin.H{"mood": "Good"}, http.StatusOK},
		{"/api/moods/wizard/continue", nil, http.StatusBadRequest},
		{"/api/moods/wizard/emotions", gin.H{"name": "Calm"}, http.StatusOK},
		{"/api/moods/wizard/continue", nil, http.StatusOK},
		{"/api/moods/wizard/triggers", gin.H{"name": "Health"}, http.StatusOK},
		{"/api/moods/wizard/continue", nil, http.StatusOK},
		{"/api/moods/wizard/note", gin.H{"note": "slept well"}, http.StatusOK},
	}
	for _, st := range steps {
		if status, body := env.do(t, http.MethodPost, st.path, st.body); status != st.want {
			t.Fatalf("%s: expected %d, got %d %v", st.path, st.want, status, body)
		}
	}

	status, body := env.do(t, http.MethodPost, "/api/moods", nil)
	if status != http.StatusCreated {
		t.Fatalf("save: %d %v", status, body)
	}
	entry := body["entry"].(map[string]any)
	if entry["mood"] != "Good" || entry["note"] != "slept well" {
		t.Fatalf("unexpected entry %v", entry)
	}

	if status, _ := env.do(t, http.MethodDelete, "/api/moods", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without confirmation, got %d", status)
	}
	status, body = env.do(t, http.MethodDelete, "/api/moods?confirm=true", nil)
	if status != http.StatusOK || len(body["recent"].([]any)) != 0 {
		t.Fatalf("unexpected clear result %d %v", status, body)
	}
}

func TestChatSubmitOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/chat", nil)
	if status != http.StatusOK || len(body["messages"].([]any)) != 1 {
		t.Fatalf("unexpected initial chat %d %v", status, body)
	}

	if status, _ := env.do(t, http.MethodPost, "/api/chat/messages", gin.H{"text": "  "}); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", status)
	}

	status, body = env.do(t, http.MethodPost, "/api/chat/messages", gin.H{"text": "hello"})
	if status != http.StatusOK {
		t.Fatalf("submit: %d %v", status, body)
	}
	reply := body["reply"].(map[string]any)
	if reply["html"] != "<strong>Noted.</strong> Keep going." {
		t.Fatalf("unexpected rendered reply %v", reply["html"])
	}

	status, body = env.do(t, http.MethodPost, "/api/chat/new", nil)
	if status != http.StatusOK || len(body["messages"].([]any)) != 1 || body["session_id"] != "sess-test" {
		t.Fatalf("unexpected new conversation %d %v", status, body)
	}
}

// TestChatStream 通过 WebSocket 发送消息并收到包含回复的快照。
func TestChatStream(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/chat/stream"
	header := http.Header{}
	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first streamMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if first.Type != streamTypeSnapshot || first.Chat == nil || len(first.Chat.Messages) != 1 {
		t.Fatalf("unexpected initial message %+v", first)
	}

	if err := conn.WriteJSON(streamMessage{Type: streamTypeSend, Text: "hi there"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == streamTypeError {
			t.Fatalf("unexpected error %s", msg.Error)
		}
		if msg.Chat != nil && !msg.Chat.Loading && len(msg.Chat.Messages) == 3 {
			if msg.Chat.Messages[2].Text != "**Noted.** Keep going." {
				t.Fatalf("unexpected reply %+v", msg.Chat.Messages[2])
			}
			return
		}
	}
}

func TestChatStreamRejectsUnknownOrigin(t *testing.T) {
	env := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/chat/stream"
	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatalf("expected dial to fail for unknown origin")
	}
}

func TestLibraryAndTheme(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/library/resources", nil)
	if status != http.StatusOK || len(body["topics"].([]any)) != 3 {
		t.Fatalf("unexpected resources %d %v", status, body)
	}
	status, body = env.do(t, http.MethodGet, "/api/library/booking?site=http://x.test", nil)
	if status != http.StatusOK || len(body["channels"].([]any)) != 4 {
		t.Fatalf("unexpected booking %d %v", status, body)
	}
	status, body = env.do(t, http.MethodGet, "/api/library/quote", nil)
	if status != http.StatusOK || body["text"] != "Small steps every day lead to big changes." {
		t.Fatalf("unexpected quote %d %v", status, body)
	}

	status, body = env.do(t, http.MethodGet, "/api/theme?prefers_dark=true", nil)
	if status != http.StatusOK || body["theme"] != "dark" {
		t.Fatalf("unexpected theme %d %v", status, body)
	}
	status, body = env.do(t, http.MethodPut, "/api/theme", gin.H{"theme": "light"})
	if status != http.StatusOK || body["theme"] != "light" {
		t.Fatalf("unexpected theme put %d %v", status, body)
	}
	status, body = env.do(t, http.MethodPut, "/api/theme", gin.H{"toggle": true})
	if status != http.StatusOK || body["theme"] != "dark" {
		t.Fatalf("unexpected toggle %d %v", status, body)
	}
	if status, _ := env.do(t, http.MethodPut, "/api/theme", gin.H{"theme": "blue"}); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid theme, got %d", status)
	}
}
