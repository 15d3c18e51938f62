// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/logging"
)

// Keys in the store.
const (
	KeyTheme    = "theme"
	KeyAutoLoad = "autoLoadModel"
)

// Theme is the persisted color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps a stored value to a Theme. Anything but "dark" is light.
func ParseTheme(v string) Theme {
	if v == string(ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Preferences are the user's durable settings.
type Preferences struct {
	Theme    Theme
	AutoLoad bool
}

// Defaults are used for absent keys.
func Defaults() Preferences {
	return Preferences{Theme: ThemeLight, AutoLoad: true}
}

// Store reads and writes Preferences through a KV.
type Store struct {
	kv     KV
	logger *zap.Logger
}

// NewStore creates a Store over kv.
func NewStore(kv KV, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logging.OrNop(logger)}
}

// Load reads the preferences. Absent keys and read failures fall back to
// the defaults: light theme, auto-load on. Any stored autoLoadModel other
// than "false" means true.
func (s *Store) Load(ctx context.Context) Preferences {
	p := Defaults()

	if v, ok, err := s.kv.Get(ctx, KeyTheme); err != nil {
		s.logger.Warn("failed to read theme preference", zap.Error(err))
	} else if ok {
		p.Theme = ParseTheme(v)
	}

	if v, ok, err := s.kv.Get(ctx, KeyAutoLoad); err != nil {
		s.logger.Warn("failed to read auto-load preference", zap.Error(err))
	} else if ok {
		p.AutoLoad = v != "false"
	}

	return p
}

// SetTheme persists the theme.
func (s *Store) SetTheme(ctx context.Context, t Theme) error {
	return s.kv.Set(ctx, KeyTheme, string(t))
}

// SetAutoLoad persists the auto-load flag as "true" or "false".
func (s *Store) SetAutoLoad(ctx context.Context, enabled bool) error {
	return s.kv.Set(ctx, KeyAutoLoad, strconv.FormatBool(enabled))
}

// Set validates and persists a raw key/value pair.
func (s *Store) Set(ctx context.Context, key, value string) error {
	switch key {
	case KeyTheme:
		if value != string(ThemeLight) && value != string(ThemeDark) {
			return fmt.Errorf("invalid theme %q: want light or dark", value)
		}
		return s.SetTheme(ctx, Theme(value))
	case KeyAutoLoad:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: want true or false", KeyAutoLoad, value)
		}
		return s.SetAutoLoad(ctx, enabled)
	default:
		return fmt.Errorf("unknown preference %q (known: %s, %s)", key, KeyTheme, KeyAutoLoad)
	}
}
