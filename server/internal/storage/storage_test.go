package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mindly/server/internal/config"
)

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) (string, error) {
	return "", errors.New("storage disabled")
}
func (failingBackend) Set(context.Context, string, string) error {
	return errors.New("quota exceeded")
}
func (failingBackend) Delete(context.Context, string) error { return errors.New("denied") }
func (failingBackend) Close() error                         { return nil }

// TestAdapterSwallowsBackendErrors 验证底层存储出错时适配器不向外抛错，而是视为不存在。
func TestAdapterSwallowsBackendErrors(t *testing.T) {
	a := NewAdapter(failingBackend{}, nil)
	ctx := context.Background()

	if _, ok := a.Read(ctx, "k"); ok {
		t.Fatalf("expected read to report absent")
	}
	if a.Write(ctx, "k", "v") {
		t.Fatalf("expected write to report failure")
	}
	a.Remove(ctx, "k")

	var out []string
	if a.ReadJSON(ctx, "k", &out) {
		t.Fatalf("expected ReadJSON to report absent")
	}
}

// TestAdapterCorruptJSONIsAbsent 验证损坏的 JSON 被当作不存在。
func TestAdapterCorruptJSONIsAbsent(t *testing.T) {
	backend := NewMemoryBackend()
	a := NewAdapter(backend, nil)
	ctx := context.Background()

	if !a.Write(ctx, KeyMoods, "{not json") {
		t.Fatalf("write raw")
	}
	var out []map[string]any
	if a.ReadJSON(ctx, KeyMoods, &out) {
		t.Fatalf("expected corrupt value to be treated as absent")
	}
}

func TestAdapterJSONRoundTrip(t *testing.T) {
	a := NewAdapter(NewMemoryBackend(), nil)
	ctx := context.Background()

	in := map[string]int{"phq1": 2}
	if !a.WriteJSON(ctx, KeyQuestionnaireDraft, in) {
		t.Fatalf("write json")
	}
	var out map[string]int
	if !a.ReadJSON(ctx, KeyQuestionnaireDraft, &out) {
		t.Fatalf("read json")
	}
	if out["phq1"] != 2 {
		t.Fatalf("unexpected value: %v", out)
	}

	a.Remove(ctx, KeyQuestionnaireDraft)
	if _, ok := a.Read(ctx, KeyQuestionnaireDraft); ok {
		t.Fatalf("expected key removed")
	}
}

// TestFileBackendPersistsAcrossReopen 验证文件存储在重新打开后仍能读到数据。
func TestFileBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device", "mindly.json")
	ctx := context.Background()

	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := b.Set(ctx, KeySessionID, "sid-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Set(ctx, KeyTheme, "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Delete(ctx, KeyTheme); err != nil {
		t.Fatalf("delete: %v", err)
	}

	reopened, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, err := reopened.Get(ctx, KeySessionID)
	if err != nil || v != "sid-1" {
		t.Fatalf("expected sid-1, got %q (%v)", v, err)
	}
	if _, err := reopened.Get(ctx, KeyTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted key, got %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file cleaned up")
	}
}

func TestFileBackendEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileBackend(path); err != nil {
		t.Fatalf("expected empty file to load, got %v", err)
	}
}

// TestSQLiteBackendUpsert 验证 SQLite 存储的覆盖写与删除。
func TestSQLiteBackendUpsert(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "mindly.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	if err := b.Set(ctx, KeyTheme, "light"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Set(ctx, KeyTheme, "dark"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := b.Get(ctx, KeyTheme)
	if err != nil || v != "dark" {
		t.Fatalf("expected dark, got %q (%v)", v, err)
	}
	if err := b.Delete(ctx, KeyTheme); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Get(ctx, KeyTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestRedisBackend 需要本地 Redis，未设置 REDIS_ADDR 时跳过。
func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	b, err := NewRedisBackend(ctx, config.RedisConfig{Addr: addr, Prefix: "mindly-test"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer b.Close()

	if err := b.Set(ctx, KeyTheme, "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := b.Get(ctx, KeyTheme); err != nil || v != "dark" {
		t.Fatalf("expected dark, got %q (%v)", v, err)
	}
	if err := b.Delete(ctx, KeyTheme); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Get(ctx, KeyTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	b, err := Open(context.Background(), config.StorageConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := b.(*MemoryBackend); !ok {
		t.Fatalf("expected MemoryBackend, got %T", b)
	}
	if _, err := Open(context.Background(), config.StorageConfig{Driver: "nope"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestChatKeysAreDisjointPerSession(t *testing.T) {
	if ChatLogKey("a") == ChatLogKey("b") || ChatLogKey("a") == ChatMetricsKey("a") {
		t.Fatalf("chat keys collide")
	}
}
