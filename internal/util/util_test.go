// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := AtomicWriteFile(path, []byte("model = \"gemma2:2b\"\n"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "model = \"gemma2:2b\"\n" {
		t.Errorf("content = %q", got)
	}
}

func TestAtomicWriteFile_CreatesParentAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "prefs.toml")

	if err := AtomicWriteFile(path, []byte("first"), 0600); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("second"), 0600); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestFitWidth(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "Loading", 10, "Loading"},
		{"exact", "Loading", 7, "Loading"},
		{"truncated", "Fetching param cache[3/20]", 10, "Fetching …"},
		{"zero", "anything", 0, ""},
		{"one column", "abc", 1, "a"},
		{"newlines folded", "a\nb", 5, "a b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FitWidth(tc.in, tc.width)
			if got != tc.want {
				t.Errorf("FitWidth(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
			}
		})
	}
}

func TestFitWidth_WideRunes(t *testing.T) {
	got := FitWidth("模型加载中请稍候", 7)
	if w := runewidth.StringWidth(got); w > 7 {
		t.Errorf("width of %q = %d, want <= 7", got, w)
	}
}

func TestPadWidth(t *testing.T) {
	got := PadWidth("ok", 5)
	if got != "ok   " {
		t.Errorf("PadWidth = %q", got)
	}
}
