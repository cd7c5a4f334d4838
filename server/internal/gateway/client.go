package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"mindly/server/internal/config"
	"mindly/server/internal/logger"
	"mindly/server/internal/model"
)

// Client 调用远端的问卷存储与聊天推理接口。
// 所有方法都不返回 error：失败被折叠进 Result 或回退回复里。
type Client struct {
	baseURL    string
	apology    string
	httpClient *http.Client
	log        *logger.Logger

	fetches singleflight.Group
}

// NewClient 创建远端客户端。apology 是聊天失败时返回给用户的固定文本。
func NewClient(cfg config.BackendConfig, apology string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apology: apology,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With("component", "gateway"),
	}
}

// SaveQuestionnaire 上传一次完成的问卷。userID 为空时以 null 发送。
func (c *Client) SaveQuestionnaire(ctx context.Context, userID, timestamp string, answers model.AnswerSet) Result[Saved] {
	body := saveRequest{Timestamp: timestamp, Responses: answers}
	if userID != "" {
		body.UserID = &userID
	}
	if body.Responses == nil {
		body.Responses = model.AnswerSet{}
	}

	status, raw, isJSON, err := c.do(ctx, http.MethodPost, "/api/questionnaire/latest", body)
	if err != nil {
		c.log.Warn("save questionnaire failed", "error", err)
		return Result[Saved]{Status: 0, Error: transportMessage(err)}
	}
	if !is2xx(status) {
		msg := errorMessage(raw, isJSON, fallbackSaveError)
		c.log.Warn("save questionnaire rejected", "status", status, "error", msg)
		return Result[Saved]{Status: status, Error: msg}
	}
	return Result[Saved]{OK: true, Status: status, Data: Saved{Saved: true}}
}

// FetchQuestionnaire 读取远端保存的最近一次问卷。
// userID 为空时在本地直接拒绝，不发出请求。同一 userID 的并发读取只发出一个请求。
func (c *Client) FetchQuestionnaire(ctx context.Context, userID string) Result[QuestionnaireData] {
	if strings.TrimSpace(userID) == "" {
		return Result[QuestionnaireData]{Status: http.StatusBadRequest, Error: errUserIDRequired}
	}

	// 共享的请求不跟随任何一个调用方取消，只受客户端超时约束。
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.fetches.Do(userID, func() (interface{}, error) {
		return c.fetchQuestionnaire(shared, userID), nil
	})
	res := v.(Result[QuestionnaireData])
	// 共享结果里的 map 不能被多个调用方同时持有。
	res.Data.Responses = res.Data.Responses.Clone()
	return res
}

func (c *Client) fetchQuestionnaire(ctx context.Context, userID string) Result[QuestionnaireData] {
	path := "/api/questionnaire/latest?userId=" + url.QueryEscape(userID)
	status, raw, isJSON, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		c.log.Warn("fetch questionnaire failed", "error", err)
		return Result[QuestionnaireData]{Status: 0, Error: transportMessage(err)}
	}
	if !is2xx(status) {
		msg := errorMessage(raw, isJSON, fallbackFetchError)
		c.log.Warn("fetch questionnaire rejected", "status", status, "error", msg)
		return Result[QuestionnaireData]{Status: status, Error: msg}
	}

	var data QuestionnaireData
	if isJSON {
		if err := json.Unmarshal(raw, &data); err != nil {
			c.log.Warn("decode questionnaire failed", "error", err)
			return Result[QuestionnaireData]{Status: status, Error: fallbackFetchError}
		}
	}
	return Result[QuestionnaireData]{OK: true, Status: status, Data: data}
}

// SendChat 发送一条聊天消息。任何失败都返回固定致歉文本与全零指标。
func (c *Client) SendChat(ctx context.Context, message, sessionID, userID string) ChatReply {
	req := chatRequest{Message: message, SessionID: sessionID, UserID: userID}
	status, raw, _, err := c.do(ctx, http.MethodPost, "/api/chat", req)
	if err != nil {
		c.log.Warn("send chat failed", "session_id", sessionID, "error", err)
		return c.fallback()
	}
	if !is2xx(status) {
		c.log.Warn("send chat rejected", "session_id", sessionID, "status", status)
		return c.fallback()
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Response == nil {
		c.log.Warn("decode chat reply failed", "session_id", sessionID, "error", err)
		return c.fallback()
	}
	return ChatReply{
		Response: *resp.Response,
		Metrics:  model.NormalizeMetrics(numericMetrics(resp.Metrics)),
	}
}

func (c *Client) fallback() ChatReply {
	return ChatReply{Response: c.apology, Metrics: model.ZeroMetrics(), Fallback: true}
}

// numericMetrics 丢弃非数字的指标值。
func numericMetrics(raw map[string]any) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

// do 发出请求并读完响应体。只有拿不到响应时才返回 error。
func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, bool, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, false, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, false, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, false, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, false, fmt.Errorf("read response: %w", err)
	}
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	return resp.StatusCode, raw, isJSON, nil
}

func is2xx(status int) bool { return status >= 200 && status < 300 }

// errorMessage 优先使用 JSON 响应体里的 error 字段。
func errorMessage(raw []byte, isJSON bool, fallback string) string {
	if !isJSON {
		return fallback
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return fallback
	}
	return body.Error
}

func transportMessage(err error) string {
	if err == nil || err.Error() == "" {
		return fallbackNetError
	}
	return err.Error()
}
