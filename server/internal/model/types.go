package model

import (
	"math"
	"sort"
	"strings"
)

// AnswerSet 是问卷题目 ID 到所选选项分值的映射。
// 只会整体重置，不会删除单个答案。
type AnswerSet map[string]int

// Clone 返回一份独立副本，避免 run 与草稿共享底层 map。
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys 按字典序返回所有题目 ID，用于稳定输出。
func (a AnswerSet) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// QuestionnaireDraft 是进行中问卷的可恢复状态。
// JSON 字段名与原客户端保持一致，保证恢复会话时互通。
type QuestionnaireDraft struct {
	CurrentIndex int       `json:"currentIndex"`
	Responses    AnswerSet `json:"responses"`
	ShowSummary  bool      `json:"showSummary"`
	// SavedAt 为毫秒时间戳。
	SavedAt int64 `json:"savedAt"`
}

// QuestionnaireRun 是一次完整作答的不可变记录。
type QuestionnaireRun struct {
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Responses AnswerSet `json:"responses"`
}

// MoodEntry 是一条心情记录。
type MoodEntry struct {
	// TS 为毫秒时间戳。
	TS       int64    `json:"ts"`
	Mood     string   `json:"mood"`
	Emoji    string   `json:"emoji"`
	Emotions []string `json:"emotions"`
	Triggers []string `json:"triggers"`
	Note     string   `json:"note,omitempty"`
}

// Role 标识聊天消息的作者。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage 是聊天记录中的一条消息，追加后不再修改。
type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// 六个固定的健康指标名。
const (
	MetricStress           = "stress"
	MetricAnxiety          = "anxiety"
	MetricLoneliness       = "loneliness"
	MetricMotivation       = "motivation"
	MetricFinancialBurden  = "financial_burden"
	MetricAcademicPressure = "academic_pressure"
)

// MetricNames 按固定顺序列出全部指标。
var MetricNames = []string{
	MetricStress,
	MetricAnxiety,
	MetricLoneliness,
	MetricMotivation,
	MetricFinancialBurden,
	MetricAcademicPressure,
}

const (
	MetricMin = 0.0
	MetricMax = 10.0
)

// Metrics 是一次聊天往返后的指标快照，每次整体替换。
type Metrics map[string]float64

// ZeroMetrics 返回六项全为 0 的快照。
func ZeroMetrics() Metrics {
	m := make(Metrics, len(MetricNames))
	for _, name := range MetricNames {
		m[name] = 0
	}
	return m
}

// NormalizeMetrics 只保留已知指标，缺失项与 NaN 补 0，越界值截断到 [0,10]。
func NormalizeMetrics(raw map[string]float64) Metrics {
	m := ZeroMetrics()
	for k, v := range raw {
		name := strings.ToLower(strings.TrimSpace(k))
		if _, ok := m[name]; !ok {
			continue
		}
		switch {
		case math.IsNaN(v):
			v = 0
		case v < MetricMin:
			v = MetricMin
		case v > MetricMax:
			v = MetricMax
		}
		m[name] = v
	}
	return m
}

// Clone 返回独立副本。nil 保持为 nil。
func (m Metrics) Clone() Metrics {
	if m == nil {
		return nil
	}
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
