package storage

// 设备本地命名空间。每个实体只拥有一个 key 或一个 key 前缀，
// 名称沿用原客户端，以便已保存的会话可以直接恢复。
const (
	KeySessionID          = "mindly_session_id"
	KeyQuestionnaireDraft = "mindly_questionnaire_draft"
	KeyQuestionnaireRuns  = "mindly_questionnaire_runs"
	KeyMoods              = "mindly-moods-v2"
	KeyTheme              = "mindly-theme"
	KeyCurrentUserID      = "mindly_current_user_id"

	prefixChatLog     = "mindly-chat-log:"
	prefixChatMetrics = "mindly-chat-metrics:"
)

// ChatLogKey 返回某个会话的聊天记录 key。
func ChatLogKey(sessionID string) string { return prefixChatLog + sessionID }

// ChatMetricsKey 返回某个会话的指标快照 key。
func ChatMetricsKey(sessionID string) string { return prefixChatMetrics + sessionID }
