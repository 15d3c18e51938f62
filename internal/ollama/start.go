// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// findOllamaExecutable looks in PATH first, then in the platform's usual
// install locations.
func findOllamaExecutable() (string, error) {
	for _, name := range executableNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	candidates := installCandidates()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ollama not found in PATH or in %s; please install Ollama",
		strings.Join(candidates, ", "))
}

// startOllamaProcess launches `ollama serve` detached from this process and
// waits for it to answer.
func (c *Client) startOllamaProcess(ctx context.Context) error {
	ollamaPath, err := findOllamaExecutable()
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to find Ollama executable", Cause: err}
	}

	cmd := exec.Command(ollamaPath, "serve")
	// GPU selection variables such as OLLAMA_VULKAN must reach the server.
	cmd.Env = os.Environ()
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: fmt.Sprintf("failed to start Ollama (path: %s)", ollamaPath),
			Cause:   err,
		}
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	return c.waitForStartup(ctx, ollamaPath)
}

// waitForStartup polls CheckRunning until the server answers or
// StartupWait elapses.
func (c *Client) waitForStartup(ctx context.Context, ollamaPath string) error {
	start := time.Now()
	deadline := start.Add(c.config.StartupWait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastErr error
	for time.Now().Before(deadline) {
		checkCtx, cancel := context.WithTimeout(ctx, time.Second)
		lastErr = c.CheckRunning(checkCtx)
		cancel()
		if lastErr == nil {
			c.logger.Info("ollama started",
				zap.String("path", ollamaPath),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		}

		select {
		case <-ctx.Done():
			return &ClientError{Type: ErrTypeConnection, Message: "Ollama startup cancelled", Cause: ctx.Err()}
		case <-ticker.C:
		}
	}

	return &ClientError{
		Type:    ErrTypeConnection,
		Message: fmt.Sprintf("Ollama started but not responding after %s (path: %s)", c.config.StartupWait, ollamaPath),
		Cause:   lastErr,
	}
}
