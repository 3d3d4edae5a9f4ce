package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsGetAndSave(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	_, err := store.GetSetting(ctx, "shuffle")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	value, err := store.GetSettingOr(ctx, "shuffle", true)
	require.NoError(t, err)
	assert.True(t, value)

	require.NoError(t, store.SaveSetting(ctx, "shuffle", false))
	value, err = store.GetSetting(ctx, "shuffle")
	require.NoError(t, err)
	assert.False(t, value)

	require.NoError(t, store.SaveSetting(ctx, "shuffle", true))
	value, err = store.GetSetting(ctx, "shuffle")
	require.NoError(t, err)
	assert.True(t, value)

	assert.Error(t, store.SaveSetting(ctx, " ", true))
}

func TestSettingsKeysAreTrimmedOnReadAndWrite(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSetting(ctx, " eq ", true))

	for _, key := range []string{" eq ", "eq", "eq\t"} {
		value, err := store.GetSetting(ctx, key)
		require.NoError(t, err, "%q", key)
		assert.True(t, value, "%q", key)
	}

	settings, err := store.ListSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Setting{{Key: "eq", Value: true}}, settings)
}

func TestSettingsBatchRetriesAfterLockAndCommitsEverything(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()

	attempts := 0
	store.settingsWriteHook = func(attempt int, index int) error {
		attempts = max(attempts, attempt+1)
		if attempt == 0 && index == 2 {
			return errSimulatedLock
		}
		return nil
	}

	batch := []Setting{
		{Key: "crossfade", Value: true},
		{Key: "gapless", Value: true},
		{Key: "replaygain", Value: false},
		{Key: "scrobble", Value: true},
	}
	require.NoError(t, store.SaveSettingsBatch(ctx, batch))
	assert.Equal(t, 2, attempts)

	settings, err := store.ListSettings(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, batch, settings)
}

func TestSettingsBatchIsAllOrNothingWhenRetriesExhaust(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSetting(ctx, "crossfade", false))

	store.settingsWriteHook = func(_ int, index int) error {
		if index == 1 {
			return errSimulatedLock
		}
		return nil
	}

	err := store.SaveSettingsBatch(ctx, []Setting{
		{Key: "crossfade", Value: true},
		{Key: "gapless", Value: true},
	})
	require.ErrorIs(t, err, ErrStoreBusy)

	store.settingsWriteHook = nil
	settings, err := store.ListSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Setting{{Key: "crossfade", Value: false}}, settings)
}
