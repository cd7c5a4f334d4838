package questionnaire

import (
	"testing"

	"mindly/server/internal/model"
)

// TestSectionAverage 验证分区平均分：{2,3,1} 的平均为 2.0。
func TestSectionAverage(t *testing.T) {
	c := DefaultCatalog()
	avg, n := SectionAverage(c.Section(0), model.AnswerSet{"phq1": 2, "phq2": 3, "phq3": 1})
	if avg != 2.0 || n != 3 {
		t.Fatalf("expected 2.0 over 3 answers, got %v over %d", avg, n)
	}
}

// TestSectionAverageRounding 验证平均分保留两位小数，未作答分区为 0。
func TestSectionAverageRounding(t *testing.T) {
	c := DefaultCatalog()
	avg, _ := SectionAverage(c.Section(0), model.AnswerSet{"phq1": 1, "phq2": 1, "phq3": 0})
	if avg != 0.67 {
		t.Fatalf("expected 0.67, got %v", avg)
	}
	avg, n := SectionAverage(c.Section(1), model.AnswerSet{"phq1": 3})
	if avg != 0 || n != 0 {
		t.Fatalf("expected 0 for unanswered section, got %v (%d)", avg, n)
	}
}

func TestSummarizeCoversEverySection(t *testing.T) {
	c := DefaultCatalog()
	scores := Summarize(c, model.AnswerSet{"ucla1": 4, "ucla2": 2})
	if len(scores) != c.Len() {
		t.Fatalf("expected %d scores, got %d", c.Len(), len(scores))
	}
	if scores[3].Key != "ucla" || scores[3].Average != 3 || scores[3].MaxValue != 4 {
		t.Fatalf("unexpected ucla score %+v", scores[3])
	}
	if scores[0].MaxValue != 3 {
		t.Fatalf("expected likert4 max 3, got %d", scores[0].MaxValue)
	}
}
