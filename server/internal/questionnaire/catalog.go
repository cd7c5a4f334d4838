package questionnaire

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Option 是一道题的一个选项。
type Option struct {
	Label string `yaml:"label" json:"label"`
	Value int    `yaml:"value" json:"value"`
}

// Question 是一道题。Scale 与 Options 二选一，Scale 引用内置量表。
type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Text    string   `yaml:"text" json:"text"`
	Scale   string   `yaml:"scale,omitempty" json:"-"`
	Options []Option `yaml:"options,omitempty" json:"options"`
}

// Section 是问卷的一个分区。
type Section struct {
	Key         string     `yaml:"key" json:"key"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description"`
	Questions   []Question `yaml:"questions" json:"questions"`
}

// HasOption 报告 value 是否是该题提供的选项。
func (q Question) HasOption(value int) bool {
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// MaxValue 返回该题的最高分值，用于前端绘制进度条。
func (q Question) MaxValue() int {
	max := 0
	for _, o := range q.Options {
		if o.Value > max {
			max = o.Value
		}
	}
	return max
}

var scales = map[string][]Option{
	"likert4": {
		{Label: "Never", Value: 0},
		{Label: "Sometimes", Value: 1},
		{Label: "Often", Value: 2},
		{Label: "Almost always", Value: 3},
	},
	"likert5": {
		{Label: "Strongly disagree", Value: 0},
		{Label: "Disagree", Value: 1},
		{Label: "Neutral", Value: 2},
		{Label: "Agree", Value: 3},
		{Label: "Strongly agree", Value: 4},
	},
}

// Catalog 是有序的分区列表，构造后只读。
type Catalog struct {
	sections []Section
	index    map[string]questionRef
	total    int
}

type questionRef struct {
	section  int
	question Question
}

// NewCatalog 校验分区并建立题目索引：分区非空、题目 ID 全局唯一、每题至少一个选项。
func NewCatalog(sections []Section) (*Catalog, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("catalog has no sections")
	}
	c := &Catalog{index: make(map[string]questionRef)}
	for si := range sections {
		s := sections[si]
		if len(s.Questions) == 0 {
			return nil, fmt.Errorf("section %q has no questions", s.Key)
		}
		qs := make([]Question, len(s.Questions))
		for qi, q := range s.Questions {
			if q.ID == "" {
				return nil, fmt.Errorf("section %q: question %d has no id", s.Key, qi)
			}
			if _, dup := c.index[q.ID]; dup {
				return nil, fmt.Errorf("duplicate question id %q", q.ID)
			}
			if len(q.Options) == 0 && q.Scale != "" {
				opts, ok := scales[q.Scale]
				if !ok {
					return nil, fmt.Errorf("question %q: unknown scale %q", q.ID, q.Scale)
				}
				q.Options = append([]Option(nil), opts...)
			}
			if len(q.Options) == 0 {
				return nil, fmt.Errorf("question %q has no options", q.ID)
			}
			qs[qi] = q
			c.index[q.ID] = questionRef{section: si, question: q}
			c.total++
		}
		s.Questions = qs
		c.sections = append(c.sections, s)
	}
	return c, nil
}

// Len 返回分区数量。
func (c *Catalog) Len() int { return len(c.sections) }

// Section 返回第 i 个分区。
func (c *Catalog) Section(i int) Section { return c.sections[i] }

// Sections 返回全部分区。
func (c *Catalog) Sections() []Section { return c.sections }

// TotalQuestions 返回题目总数。
func (c *Catalog) TotalQuestions() int { return c.total }

// Question 按 ID 查找题目及其所在分区下标。
func (c *Catalog) Question(id string) (Question, int, bool) {
	ref, ok := c.index[id]
	return ref.question, ref.section, ok
}

type catalogFile struct {
	Sections []Section `yaml:"sections"`
}

// LoadCatalog 从 YAML 文件加载分区；path 为空时返回内置内容。
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sections: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sections: %w", err)
	}
	return NewCatalog(f.Sections)
}

// DefaultCatalog 返回内置的六个分区（每个分区三题）。
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultSections())
	if err != nil {
		panic(fmt.Sprintf("default catalog invalid: %v", err))
	}
	return c
}

func defaultSections() []Section {
	return []Section{
		{
			Key:         "phq",
			Title:       "PHQ – Depression",
			Description: "Reflect on your mood over the last 2 weeks.",
			Questions: []Question{
				{ID: "phq1", Text: "Little interest or pleasure in doing things", Scale: "likert4"},
				{ID: "phq2", Text: "Feeling down, depressed, or hopeless", Scale: "likert4"},
				{ID: "phq3", Text: "Trouble falling/staying asleep, or sleeping too much", Scale: "likert4"},
			},
		},
		{
			Key:         "ghq",
			Title:       "GHQ – Anxiety",
			Description: "How have worry and tension shown up recently?",
			Questions: []Question{
				{ID: "ghq1", Text: "Felt constantly under strain", Scale: "likert4"},
				{ID: "ghq2", Text: "Found it hard to relax", Scale: "likert4"},
				{ID: "ghq3", Text: "Felt nervous or on edge", Scale: "likert4"},
			},
		},
		{
			Key:         "pss",
			Title:       "PSS – Stress",
			Description: "Perceived stress during the last month.",
			Questions: []Question{
				{ID: "pss1", Text: "Been upset because of something that happened unexpectedly", Scale: "likert4"},
				{ID: "pss2", Text: "Felt that you were unable to control important things", Scale: "likert4"},
				{ID: "pss3", Text: "Felt difficulties were piling up so high you could not overcome them", Scale: "likert4"},
			},
		},
		{
			Key:         "ucla",
			Title:       "UCLA – Social Connection",
			Description: "Your sense of connection with others.",
			Questions: []Question{
				{ID: "ucla1", Text: "I feel in tune with the people around me", Scale: "likert5"},
				{ID: "ucla2", Text: "I feel isolated from others", Scale: "likert5"},
				{ID: "ucla3", Text: "There are people I can talk to", Scale: "likert5"},
			},
		},
		{
			Key:         "financial",
			Title:       "Financial Stress Index",
			Description: "How finances affect your wellbeing.",
			Questions: []Question{
				{ID: "fin1", Text: "I worry about being able to make ends meet", Scale: "likert5"},
				{ID: "fin2", Text: "Financial stress affects my focus or sleep", Scale: "likert5"},
				{ID: "fin3", Text: "I feel confident in my budgeting", Scale: "likert5"},
			},
		},
		{
			Key:         "academic",
			Title:       "Academic Motivation Scale",
			Description: "Your motivation and engagement with studies.",
			Questions: []Question{
				{ID: "acad1", Text: "I set clear study goals and follow through", Scale: "likert5"},
				{ID: "acad2", Text: "I feel motivated to attend classes and study", Scale: "likert5"},
				{ID: "acad3", Text: "I procrastinate on assignments", Scale: "likert5"},
			},
		},
	}
}
