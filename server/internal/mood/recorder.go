package mood

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"mindly/server/internal/model"
	"mindly/server/internal/storage"
)

// Step 是心情记录向导的步骤。
type Step string

const (
	StepMood     Step = "mood"
	StepEmotions Step = "emotions"
	StepTriggers Step = "triggers"
	StepNote     Step = "note"
)

var (
	ErrWrongStep     = errors.New("action not available in the current step")
	ErrUnknownMood   = errors.New("unknown mood level")
	ErrUnknownChoice = errors.New("unknown emotion or trigger")
	ErrNoMood        = errors.New("a mood must be selected first")
	ErrNoEmotion     = errors.New("select at least one emotion to continue")
	ErrNotConfirmed  = errors.New("clearing mood history requires confirmation")
)

// DefaultRecent 是首页展示的最近记录条数。
const DefaultRecent = 10

// WizardState 是向导的只读快照。
type WizardState struct {
	Step     Step     `json:"step"`
	Mood     *Level   `json:"mood,omitempty"`
	Emotions []string `json:"emotions"`
	Triggers []string `json:"triggers"`
	Note     string   `json:"note"`
	// CanContinue 对应前端“继续”按钮是否可用。
	CanContinue bool `json:"can_continue"`
}

// Recorder 是四步心情记录向导（心情 → 情绪 → 诱因 → 备注）及其本地历史。
// 向导状态只在内存中；历史记录在保存与清空时整体写回存储。
type Recorder struct {
	store *storage.Adapter
	now   func() time.Time

	mu       sync.Mutex
	step     Step
	selected *Level
	emotions []string
	triggers []string
	note     string
	entries  []model.MoodEntry
}

func NewRecorder(store *storage.Adapter, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, now: now, step: StepMood}
}

// Load 读取已保存的心情记录；损坏的数据视为空。
func (r *Recorder) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entries []model.MoodEntry
	if r.store.ReadJSON(ctx, storage.KeyMoods, &entries) {
		r.entries = entries
	}
}

// SelectMood 选择心情等级并自动进入情绪步骤。
func (r *Recorder) SelectMood(mood string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.step != StepMood {
		return ErrWrongStep
	}
	level, ok := findLevel(mood)
	if !ok {
		return ErrUnknownMood
	}
	r.selected = &level
	r.step = StepEmotions
	return nil
}

// ToggleEmotion 切换一个情绪的选中状态：不在集合中则加入，否则移除。
func (r *Recorder) ToggleEmotion(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.step != StepEmotions {
		return ErrWrongStep
	}
	if !hasChoice(Emotions, name) {
		return ErrUnknownChoice
	}
	r.emotions = toggle(r.emotions, name)
	return nil
}

// ToggleTrigger 切换一个诱因的选中状态。诱因没有最少选择数。
func (r *Recorder) ToggleTrigger(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.step != StepTriggers {
		return ErrWrongStep
	}
	if !hasChoice(Triggers, name) {
		return ErrUnknownChoice
	}
	r.triggers = toggle(r.triggers, name)
	return nil
}

func toggle(set []string, name string) []string {
	for i, v := range set {
		if v == name {
			out := make([]string, 0, len(set)-1)
			out = append(out, set[:i]...)
			return append(out, set[i+1:]...)
		}
	}
	return append(append([]string(nil), set...), name)
}

// Continue 前进到下一步，不允许跳过未满足的选择。
func (r *Recorder) Continue() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.step {
	case StepMood:
		if r.selected == nil {
			return ErrNoMood
		}
		r.step = StepEmotions
	case StepEmotions:
		if len(r.emotions) == 0 {
			return ErrNoEmotion
		}
		r.step = StepTriggers
	case StepTriggers:
		r.step = StepNote
	default:
		return ErrWrongStep
	}
	return nil
}

// Back 回到上一步，保留已做的选择；在第一步时什么也不做。
func (r *Recorder) Back() {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.step {
	case StepEmotions:
		r.step = StepMood
	case StepTriggers:
		r.step = StepEmotions
	case StepNote:
		r.step = StepTriggers
	}
}

// SetNote 设置可选的备注。
func (r *Recorder) SetNote(note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.step != StepNote {
		return ErrWrongStep
	}
	r.note = note
	return nil
}

// Save 追加一条记录并重置向导。只能在备注步骤且已选心情时调用。
func (r *Recorder) Save(ctx context.Context) (model.MoodEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.step != StepNote {
		return model.MoodEntry{}, ErrWrongStep
	}
	if r.selected == nil {
		return model.MoodEntry{}, ErrNoMood
	}

	entry := model.MoodEntry{
		TS:       r.now().UnixMilli(),
		Mood:     r.selected.Mood,
		Emoji:    r.selected.Emoji,
		Emotions: append([]string{}, r.emotions...),
		Triggers: append([]string{}, r.triggers...),
		Note:     strings.TrimSpace(r.note),
	}
	r.entries = append(r.entries, entry)
	r.store.WriteJSON(ctx, storage.KeyMoods, r.entries)
	r.reset()
	return entry, nil
}

// Reset 放弃当前向导（“重新开始”）。
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func (r *Recorder) reset() {
	r.step = StepMood
	r.selected = nil
	r.emotions = nil
	r.triggers = nil
	r.note = ""
}

// Clear 清空全部心情记录，必须显式确认。
func (r *Recorder) Clear(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
	r.store.WriteJSON(ctx, storage.KeyMoods, []model.MoodEntry{})
	return nil
}

// Entries 返回全部记录（按保存顺序）。
func (r *Recorder) Entries() []model.MoodEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.MoodEntry(nil), r.entries...)
}

// Recent 返回最近 n 条记录，最新在前。
func (r *Recorder) Recent(n int) []model.MoodEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]model.MoodEntry, 0, n)
	for i := len(r.entries) - 1; i >= len(r.entries)-n; i-- {
		out = append(out, r.entries[i])
	}
	return out
}

// Wizard 返回向导快照。
func (r *Recorder) Wizard() WizardState {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := WizardState{
		Step:     r.step,
		Emotions: append([]string{}, r.emotions...),
		Triggers: append([]string{}, r.triggers...),
		Note:     r.note,
	}
	if r.selected != nil {
		l := *r.selected
		st.Mood = &l
	}
	switch r.step {
	case StepMood:
		st.CanContinue = r.selected != nil
	case StepEmotions:
		st.CanContinue = len(r.emotions) > 0
	case StepTriggers:
		st.CanContinue = true
	}
	return st
}
