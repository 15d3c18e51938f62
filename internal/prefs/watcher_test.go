// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReportsExternalChange(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	ours, err := OpenSQLite(path)
	require.NoError(t, err)
	defer ours.Close()

	changes := make(chan Preferences, 4)
	w, err := NewWatcher(NewStore(ours, nil), path, 20*time.Millisecond, func(p Preferences) {
		changes <- p
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	// Another process writes through its own connection.
	theirs, err := OpenSQLite(path)
	require.NoError(t, err)
	defer theirs.Close()
	require.NoError(t, NewStore(theirs, nil).SetTheme(ctx, ThemeDark))

	select {
	case p := <-changes:
		assert.Equal(t, ThemeDark, p.Theme)
		assert.True(t, p.AutoLoad)
	case <-time.After(3 * time.Second):
		t.Fatal("external change not reported")
	}
}

func TestWatcher_SyncSuppressesOwnWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	defer kv.Close()
	store := NewStore(kv, nil)

	changes := make(chan Preferences, 4)
	w, err := NewWatcher(store, path, 20*time.Millisecond, func(p Preferences) {
		changes <- p
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, store.SetAutoLoad(ctx, false))
	w.Sync(store.Load(ctx))

	select {
	case p := <-changes:
		t.Fatalf("own write reported as change: %+v", p)
	case <-time.After(300 * time.Millisecond):
	}
	assert.NoError(t, w.Close())
}
