// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DefaultsWhenAbsent(t *testing.T) {
	store := NewStore(NewMemoryKV(), nil)
	p := store.Load(context.Background())

	assert.Equal(t, ThemeLight, p.Theme)
	assert.True(t, p.AutoLoad)
}

func TestStore_ValueMapping(t *testing.T) {
	tests := []struct {
		theme, autoLoad string
		want            Preferences
	}{
		{"dark", "false", Preferences{Theme: ThemeDark, AutoLoad: false}},
		{"light", "true", Preferences{Theme: ThemeLight, AutoLoad: true}},
		{"solarized", "no", Preferences{Theme: ThemeLight, AutoLoad: true}},
		{"DARK", "FALSE", Preferences{Theme: ThemeLight, AutoLoad: true}},
		{"", "", Preferences{Theme: ThemeLight, AutoLoad: true}},
	}

	for _, tc := range tests {
		t.Run(tc.theme+"/"+tc.autoLoad, func(t *testing.T) {
			kv := NewMemoryKV()
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, KeyTheme, tc.theme))
			require.NoError(t, kv.Set(ctx, KeyAutoLoad, tc.autoLoad))

			assert.Equal(t, tc.want, NewStore(kv, nil).Load(ctx))
		})
	}
}

func TestStore_TogglesPersist(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewStore(kv, nil)

	require.NoError(t, store.SetTheme(ctx, ThemeLight.Toggle()))
	require.NoError(t, store.SetAutoLoad(ctx, false))

	v, ok, _ := kv.Get(ctx, KeyTheme)
	require.True(t, ok)
	assert.Equal(t, "dark", v)
	v, _, _ = kv.Get(ctx, KeyAutoLoad)
	assert.Equal(t, "false", v)

	// A fresh store over the same KV sees the same values.
	assert.Equal(t, Preferences{Theme: ThemeDark, AutoLoad: false}, NewStore(kv, nil).Load(ctx))
}

func TestStore_Set(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryKV(), nil)

	require.NoError(t, store.Set(ctx, KeyTheme, "dark"))
	require.NoError(t, store.Set(ctx, KeyAutoLoad, "false"))
	assert.Equal(t, Preferences{Theme: ThemeDark, AutoLoad: false}, store.Load(ctx))

	assert.Error(t, store.Set(ctx, KeyTheme, "blue"))
	assert.Error(t, store.Set(ctx, KeyAutoLoad, "maybe"))
	assert.Error(t, store.Set(ctx, "fontSize", "12"))
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (failingKV) Set(context.Context, string, string) error { return errors.New("disk on fire") }

func TestStore_ReadFailureFallsBackToDefaults(t *testing.T) {
	store := NewStore(failingKV{}, nil)
	assert.Equal(t, Defaults(), store.Load(context.Background()))
	assert.Error(t, store.SetTheme(context.Background(), ThemeDark))
}

func TestSQLiteKV_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")

	kv, err := OpenSQLite(path)
	require.NoError(t, err)

	_, ok, err := kv.Get(ctx, KeyTheme)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, KeyTheme, "dark"))
	require.NoError(t, kv.Set(ctx, KeyTheme, "light"))
	require.NoError(t, kv.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, KeyTheme)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", v)
	assert.Equal(t, path, reopened.Path())
}
