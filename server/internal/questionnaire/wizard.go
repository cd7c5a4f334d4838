package questionnaire

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"mindly/server/internal/model"
	"mindly/server/internal/storage"
)

var (
	ErrIncompleteSection = errors.New("every question in the section must be answered")
	ErrShowingSummary    = errors.New("questionnaire is showing the summary")
	ErrNotShowingSummary = errors.New("questionnaire is not showing the summary")
	ErrUnknownQuestion   = errors.New("unknown question id")
	ErrInvalidOption     = errors.New("value is not an option of the question")
)

// isoMillis 与浏览器 Date.toISOString 输出一致。
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Progress 是作答进度。
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// State 是问卷状态机的只读快照。
type State struct {
	CurrentIndex int             `json:"current_index"`
	Section      Section         `json:"section"`
	SectionCount int             `json:"section_count"`
	IsLast       bool            `json:"is_last"`
	Responses    model.AnswerSet `json:"responses"`
	ShowSummary  bool            `json:"show_summary"`
	CanAdvance   bool            `json:"can_advance"`
	CanRetreat   bool            `json:"can_retreat"`
	Progress     Progress        `json:"progress"`
	Summary      []SectionScore  `json:"summary,omitempty"`
	History      []RunSummary    `json:"history"`
}

// RunSummary 是一次历史记录的展示数据。
type RunSummary struct {
	ID        string         `json:"id"`
	Number    int            `json:"number"`
	Timestamp string         `json:"timestamp"`
	Sections  []SectionScore `json:"sections"`
}

// Wizard 驱动多分区问卷：当前分区指针、作答、草稿持久化与历史记录。
//
// 状态只有 InSection(i) 与 ShowingSummary 两类；每次作答与状态迁移都会把完整草稿写回存储，
// 历史只在最后一个分区 Advance 时写入。
type Wizard struct {
	catalog *Catalog
	store   *storage.Adapter
	history *History
	now     func() time.Time

	mu          sync.Mutex
	index       int
	answers     model.AnswerSet
	showSummary bool
	runs        []model.QuestionnaireRun
	lastRunMS   int64
}

// NewWizard 创建状态机，初始为 InSection(0)。调用 Load 恢复已保存的状态。
func NewWizard(catalog *Catalog, store *storage.Adapter, history *History, now func() time.Time) *Wizard {
	if now == nil {
		now = time.Now
	}
	return &Wizard{
		catalog: catalog,
		store:   store,
		history: history,
		now:     now,
		answers: model.AnswerSet{},
	}
}

// draftRecord 用指针字段区分“缺失”与“零值”，只采纳类型正确的字段。
type draftRecord struct {
	CurrentIndex *int            `json:"currentIndex"`
	Responses    model.AnswerSet `json:"responses"`
	ShowSummary  *bool           `json:"showSummary"`
}

// Load 从存储恢复历史与草稿。损坏的数据视为不存在；越界的分区下标会被截到合法范围。
func (w *Wizard) Load(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.runs = w.history.Load(ctx)
	for _, r := range w.runs {
		if ms, err := strconv.ParseInt(r.ID, 10, 64); err == nil && ms > w.lastRunMS {
			w.lastRunMS = ms
		}
	}

	var d draftRecord
	if !w.store.ReadJSON(ctx, storage.KeyQuestionnaireDraft, &d) {
		return
	}
	if d.CurrentIndex != nil {
		w.index = clamp(*d.CurrentIndex, 0, w.catalog.Len()-1)
	}
	if d.Responses != nil {
		w.answers = d.Responses
	}
	if d.ShowSummary != nil {
		w.showSummary = *d.ShowSummary
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Answer 记录或覆盖一道题的答案，不改变状态。
func (w *Wizard) Answer(ctx context.Context, questionID string, value int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.showSummary {
		return ErrShowingSummary
	}
	q, _, ok := w.catalog.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if !q.HasOption(value) {
		return ErrInvalidOption
	}
	w.answers[questionID] = value
	w.persistDraft(ctx)
	return nil
}

// Advance 在当前分区全部作答后前进；在最后一个分区时进入总结并生成一条历史记录。
// 返回值仅在生成了新记录时非 nil。
func (w *Wizard) Advance(ctx context.Context) (*model.QuestionnaireRun, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.showSummary {
		return nil, ErrShowingSummary
	}
	if !w.sectionComplete(w.index) {
		return nil, ErrIncompleteSection
	}

	if w.index < w.catalog.Len()-1 {
		w.index++
		w.persistDraft(ctx)
		return nil, nil
	}

	w.showSummary = true
	run := w.newRun()
	w.runs = PrependRun(w.runs, run, w.history.Limit())
	w.history.Save(ctx, w.runs)
	w.persistDraft(ctx)
	return &run, nil
}

func (w *Wizard) newRun() model.QuestionnaireRun {
	now := w.now()
	ms := now.UnixMilli()
	// 同一毫秒内连续完成时 ID 仍需唯一且递增。
	if ms <= w.lastRunMS {
		ms = w.lastRunMS + 1
	}
	w.lastRunMS = ms
	return model.QuestionnaireRun{
		ID:        strconv.FormatInt(ms, 10),
		Timestamp: time.UnixMilli(ms).UTC().Format(isoMillis),
		Responses: w.answers.Clone(),
	}
}

// Retreat 回到上一分区；在第一个分区时什么也不做。总结页不可用，需先 EditAnswers。
func (w *Wizard) Retreat(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.showSummary {
		return ErrShowingSummary
	}
	if w.index == 0 {
		return nil
	}
	w.index--
	w.persistDraft(ctx)
	return nil
}

// EditAnswers 从总结页回到第一个分区，保留全部答案。
func (w *Wizard) EditAnswers(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.showSummary {
		return ErrNotShowingSummary
	}
	w.showSummary = false
	w.index = 0
	w.persistDraft(ctx)
	return nil
}

// Restart 在任意状态下清空答案、回到第一个分区并删除已保存的草稿。
func (w *Wizard) Restart(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.answers = model.AnswerSet{}
	w.index = 0
	w.showSummary = false
	w.store.Remove(ctx, storage.KeyQuestionnaireDraft)
}

// ClearHistory 删除全部历史记录，不影响进行中的作答。
func (w *Wizard) ClearHistory(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.runs = nil
	w.history.Clear(ctx)
}

// CanAdvance 报告当前分区是否已全部作答。
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.showSummary && w.sectionComplete(w.index)
}

func (w *Wizard) sectionComplete(i int) bool {
	for _, q := range w.catalog.Section(i).Questions {
		if _, ok := w.answers[q.ID]; !ok {
			return false
		}
	}
	return true
}

func (w *Wizard) persistDraft(ctx context.Context) {
	w.store.WriteJSON(ctx, storage.KeyQuestionnaireDraft, model.QuestionnaireDraft{
		CurrentIndex: w.index,
		Responses:    w.answers,
		ShowSummary:  w.showSummary,
		SavedAt:      w.now().UnixMilli(),
	})
}

// Runs 返回历史记录副本（最新在前）。
func (w *Wizard) Runs() []model.QuestionnaireRun {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.QuestionnaireRun(nil), w.runs...)
}

// State 返回当前快照。
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := State{
		CurrentIndex: w.index,
		Section:      w.catalog.Section(w.index),
		SectionCount: w.catalog.Len(),
		IsLast:       w.index == w.catalog.Len()-1,
		Responses:    w.answers.Clone(),
		ShowSummary:  w.showSummary,
		CanAdvance:   !w.showSummary && w.sectionComplete(w.index),
		CanRetreat:   !w.showSummary && w.index > 0,
		Progress:     w.progress(),
		History:      make([]RunSummary, 0, len(w.runs)),
	}
	if w.showSummary {
		st.Summary = Summarize(w.catalog, w.answers)
	}
	for i, r := range w.runs {
		st.History = append(st.History, RunSummary{
			ID:        r.ID,
			Number:    len(w.runs) - i,
			Timestamp: r.Timestamp,
			Sections:  Summarize(w.catalog, r.Responses),
		})
	}
	return st
}

func (w *Wizard) progress() Progress {
	total := w.catalog.TotalQuestions()
	answered := 0
	for id := range w.answers {
		if _, _, ok := w.catalog.Question(id); ok {
			answered++
		}
	}
	p := Progress{Answered: answered, Total: total}
	if total > 0 {
		p.Percent = int(float64(answered)/float64(total)*100 + 0.5)
	}
	return p
}
