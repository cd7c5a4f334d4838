package model

import "testing"

// TestNormalizeMetricsClampsAndFills 验证指标归一化：未知项丢弃、缺失项补 0、越界截断。
func TestNormalizeMetricsClampsAndFills(t *testing.T) {
	m := NormalizeMetrics(map[string]float64{
		"Stress":  12,
		"anxiety": -1,
		"mood":    5,
	})

	if len(m) != len(MetricNames) {
		t.Fatalf("expected %d metrics, got %d", len(MetricNames), len(m))
	}
	if m[MetricStress] != 10 {
		t.Fatalf("expected stress clamped to 10, got %v", m[MetricStress])
	}
	if m[MetricAnxiety] != 0 {
		t.Fatalf("expected anxiety clamped to 0, got %v", m[MetricAnxiety])
	}
	if _, ok := m["mood"]; ok {
		t.Fatalf("unexpected unknown metric kept")
	}
	if m[MetricAcademicPressure] != 0 {
		t.Fatalf("expected missing metric filled with 0")
	}
}

func TestAnswerSetCloneIsIndependent(t *testing.T) {
	a := AnswerSet{"phq1": 1}
	b := a.Clone()
	b["phq1"] = 3
	if a["phq1"] != 1 {
		t.Fatalf("clone shares storage with original")
	}
}
