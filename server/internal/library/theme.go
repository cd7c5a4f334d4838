package library

import (
	"context"
	"errors"

	"mindly/server/internal/storage"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var ErrInvalidTheme = errors.New("theme must be light or dark")

// ThemeStore 保存界面主题偏好。
type ThemeStore struct {
	store *storage.Adapter
}

func NewThemeStore(store *storage.Adapter) *ThemeStore {
	return &ThemeStore{store: store}
}

// Get 返回已保存的主题；没有保存时跟随系统偏好。
func (t *ThemeStore) Get(ctx context.Context, prefersDark bool) Theme {
	if v, ok := t.store.Read(ctx, storage.KeyTheme); ok {
		// 与原客户端一致：只有 "dark" 视为深色。
		if Theme(v) == ThemeDark {
			return ThemeDark
		}
		return ThemeLight
	}
	if prefersDark {
		return ThemeDark
	}
	return ThemeLight
}

func (t *ThemeStore) Set(ctx context.Context, theme Theme) error {
	if theme != ThemeLight && theme != ThemeDark {
		return ErrInvalidTheme
	}
	t.store.Write(ctx, storage.KeyTheme, string(theme))
	return nil
}

// Toggle 切换并保存主题，返回切换后的值。
func (t *ThemeStore) Toggle(ctx context.Context, prefersDark bool) Theme {
	next := ThemeDark
	if t.Get(ctx, prefersDark) == ThemeDark {
		next = ThemeLight
	}
	t.store.Write(ctx, storage.KeyTheme, string(next))
	return next
}
