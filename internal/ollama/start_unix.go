// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package ollama

import (
	"os"
	"path/filepath"
	"syscall"
)

var executableNames = []string{"ollama"}

func installCandidates() []string {
	paths := []string{
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/opt/ollama/ollama",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".local", "bin", "ollama"),
			filepath.Join(home, "bin", "ollama"),
		)
	}
	return append(paths, "/Applications/Ollama.app/Contents/Resources/ollama")
}

// detachedProcAttr puts the server in its own process group so it outlives
// qubi and is not hit by terminal signals.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
