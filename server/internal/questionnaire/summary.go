package questionnaire

import (
	"math"

	"mindly/server/internal/model"
)

// SectionScore 是某个分区的平均分。
type SectionScore struct {
	Key      string  `json:"key"`
	Title    string  `json:"title"`
	Average  float64 `json:"average"`
	Answered int     `json:"answered"`
	// MaxValue 是该分区选项的最高分，前端据此换算百分比。
	MaxValue int `json:"max_value"`
}

// SectionAverage 计算分区内已作答题目的平均分，保留两位小数；无作答时为 0。
func SectionAverage(section Section, answers model.AnswerSet) (float64, int) {
	sum, n := 0, 0
	for _, q := range section.Questions {
		if v, ok := answers[q.ID]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return round2(float64(sum) / float64(n)), n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summarize 对每个分区计算平均分。当前作答与历史记录使用同一套计算。
func Summarize(c *Catalog, answers model.AnswerSet) []SectionScore {
	out := make([]SectionScore, 0, c.Len())
	for _, s := range c.Sections() {
		avg, n := SectionAverage(s, answers)
		max := 0
		for _, q := range s.Questions {
			if m := q.MaxValue(); m > max {
				max = m
			}
		}
		out = append(out, SectionScore{
			Key:      s.Key,
			Title:    s.Title,
			Average:  avg,
			Answered: n,
			MaxValue: max,
		})
	}
	return out
}
