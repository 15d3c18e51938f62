// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// FitWidth truncates s to at most maxWidth terminal columns, appending "…"
// when something was cut. Wide (CJK, emoji) runes count as two columns.
// Newlines are folded to spaces since the result is meant for a single line.
func FitWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return runewidth.Truncate(s, 1, "")
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// PadWidth right-pads s with spaces to exactly width columns, truncating
// first if it is too wide.
func PadWidth(s string, width int) string {
	s = FitWidth(s, width)
	return runewidth.FillRight(s, width)
}
