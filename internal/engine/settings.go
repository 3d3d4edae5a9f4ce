package engine

import (
	"context"

	"cadence/internal/catalog"
)

func (e *Engine) GetSetting(ctx context.Context, key string) (bool, error) {
	if _, err := e.ready(); err != nil {
		return false, err
	}
	return e.store.GetSetting(ctx, key)
}

func (e *Engine) GetSettingOr(ctx context.Context, key string, fallback bool) (bool, error) {
	if _, err := e.ready(); err != nil {
		return false, err
	}
	return e.store.GetSettingOr(ctx, key, fallback)
}

func (e *Engine) ListSettings(ctx context.Context) ([]catalog.Setting, error) {
	if _, err := e.ready(); err != nil {
		return nil, err
	}
	return e.store.ListSettings(ctx)
}

func (e *Engine) SaveSetting(ctx context.Context, key string, value bool) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	return e.store.SaveSetting(ctx, key, value)
}

// SaveSettingsBatch stores every setting or none of them.
func (e *Engine) SaveSettingsBatch(ctx context.Context, settings []catalog.Setting) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	return e.store.SaveSettingsBatch(ctx, settings)
}
