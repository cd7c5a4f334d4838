package questionnaire

import (
	"context"

	"mindly/server/internal/model"
	"mindly/server/internal/storage"
)

// DefaultHistoryLimit 是保留的历史记录条数上限。
const DefaultHistoryLimit = 20

// History 读写已完成问卷的历史（最新在前，最多 limit 条）。
// 它同时实现 session.RunSource，聊天模块借此解析当前用户。
type History struct {
	store *storage.Adapter
	limit int
}

func NewHistory(store *storage.Adapter, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{store: store, limit: limit}
}

// Limit 返回上限。
func (h *History) Limit() int { return h.limit }

// Load 读取历史；不存在或损坏时返回空。
func (h *History) Load(ctx context.Context) []model.QuestionnaireRun {
	var runs []model.QuestionnaireRun
	if !h.store.ReadJSON(ctx, storage.KeyQuestionnaireRuns, &runs) {
		return nil
	}
	if len(runs) > h.limit {
		runs = runs[:h.limit]
	}
	return runs
}

// Latest 返回最近一次完成的问卷。
func (h *History) Latest(ctx context.Context) (model.QuestionnaireRun, bool) {
	runs := h.Load(ctx)
	if len(runs) == 0 {
		return model.QuestionnaireRun{}, false
	}
	return runs[0], true
}

// Save 整体写入历史。
func (h *History) Save(ctx context.Context, runs []model.QuestionnaireRun) {
	h.store.WriteJSON(ctx, storage.KeyQuestionnaireRuns, runs)
}

// Clear 删除全部历史。
func (h *History) Clear(ctx context.Context) {
	h.store.Remove(ctx, storage.KeyQuestionnaireRuns)
}

// PrependRun 把 run 放到最前并截断到 limit，返回新切片，不修改入参。
func PrependRun(runs []model.QuestionnaireRun, run model.QuestionnaireRun, limit int) []model.QuestionnaireRun {
	out := make([]model.QuestionnaireRun, 0, len(runs)+1)
	out = append(out, run)
	out = append(out, runs...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
