package gateway

import "mindly/server/internal/model"

// Result 是所有远端调用的统一返回值。
// OK 为 false 时 Error 一定非空；Status 为 0 表示请求没有拿到 HTTP 响应。
type Result[T any] struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Data   T      `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Saved 是保存问卷成功时的数据。
type Saved struct {
	Saved bool `json:"saved"`
}

// QuestionnaireData 是远端保存的最近一次问卷。
type QuestionnaireData struct {
	Timestamp string          `json:"timestamp"`
	Responses model.AnswerSet `json:"responses"`
}

// ChatReply 是一次聊天往返的结果。
type ChatReply struct {
	Response string        `json:"response"`
	Metrics  model.Metrics `json:"metrics"`
	// Fallback 为 true 表示请求失败，Response 是固定的致歉文本。
	Fallback bool `json:"-"`
}

const (
	fallbackSaveError  = "Failed to save"
	fallbackFetchError = "Failed to fetch questionnaire data"
	fallbackNetError   = "Network error"
	errUserIDRequired  = "User ID is required"
)

type saveRequest struct {
	UserID    *string         `json:"userId"`
	Timestamp string          `json:"timestamp"`
	Responses model.AnswerSet `json:"responses"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}

type chatResponse struct {
	Response *string        `json:"response"`
	Metrics  map[string]any `json:"metrics"`
}
