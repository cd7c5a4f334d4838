package logger

import (
	"strings"
	"testing"
)

// TestSanitizeRedactsFreeText 验证开启脱敏后自由文本字段被替换、ID 字段被哈希。
func TestSanitizeRedactsFreeText(t *testing.T) {
	l := &Logger{redact: true}
	out := l.sanitize([]interface{}{"text", "I feel sad", "session_id", "abc", "status", 200})

	if out[1] != "[REDACTED]" {
		t.Fatalf("expected text redacted, got %v", out[1])
	}
	hashed, ok := out[3].(string)
	if !ok || !strings.HasPrefix(hashed, "h:") || hashed == "h:abc" {
		t.Fatalf("expected hashed session id, got %v", out[3])
	}
	if out[5] != 200 {
		t.Fatalf("expected status passthrough, got %v", out[5])
	}
}

// TestSanitizeDisabledPassthrough 验证未开启脱敏时原样输出。
func TestSanitizeDisabledPassthrough(t *testing.T) {
	l := &Logger{}
	out := l.sanitize([]interface{}{"text", "hello"})
	if out[1] != "hello" {
		t.Fatalf("expected passthrough, got %v", out[1])
	}
}

// TestSanitizeOddKeyValues 验证奇数个参数时末尾 key 不会丢失。
func TestSanitizeOddKeyValues(t *testing.T) {
	l := &Logger{redact: true}
	out := l.sanitize([]interface{}{"status", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Options{Mode: "dev", Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
