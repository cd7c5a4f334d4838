package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Logger 是对 zap SugaredLogger 的薄封装，统一 key/value 风格并做敏感字段脱敏。
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	redact        bool
}

// Options 控制日志模式与脱敏行为。
type Options struct {
	// Mode: dev | prod
	Mode  string
	Level string
	// Redact 为 true 时，用户自由文本（聊天内容、心情备注）会被替换，ID 类字段会被哈希。
	Redact bool
}

// New 创建 Logger。
func New(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(opts.Mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{SugaredLogger: zapLogger.Sugar(), redact: opts.Redact}, nil
}

// NewNop 返回丢弃所有输出的 Logger，测试中使用。
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func parseLevel(s string) (zap.AtomicLevel, error) {
	if strings.TrimSpace(s) == "" {
		return zap.NewAtomicLevelAt(zap.InfoLevel), nil
	}
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(s))
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return lvl, nil
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.sanitize(keysAndValues)...)
}

// With 返回带固定字段的子 Logger，常用于标记组件名。
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(l.sanitize(keysAndValues)...),
		redact:        l.redact,
	}
}

// 自由文本：直接替换。
var redactKeys = map[string]struct{}{
	"text":          {},
	"message":       {},
	"note":          {},
	"prompt":        {},
	"authorization": {},
	"api_key":       {},
}

// 标识类：哈希后仍可在日志中关联同一个会话。
var hashKeys = map[string]struct{}{
	"user_id":    {},
	"session_id": {},
}

func (l *Logger) sanitize(kv []interface{}) []interface{} {
	if !l.redact || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := strings.ToLower(strings.TrimSpace(fmt.Sprint(kv[i])))
		out = append(out, kv[i], sanitizeValue(key, kv[i+1]))
	}
	return out
}

func sanitizeValue(key string, val interface{}) interface{} {
	if _, ok := redactKeys[key]; ok {
		return "[REDACTED]"
	}
	if _, ok := hashKeys[key]; ok {
		s := fmt.Sprint(val)
		if s == "" {
			return s
		}
		sum := sha256.Sum256([]byte(s))
		return "h:" + hex.EncodeToString(sum[:])[:12]
	}
	return val
}
