// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// PullProgress is one status line of a model download.
type PullProgress struct {
	Status    string
	Digest    string
	Total     int64
	Completed int64
}

// pullTracker folds per-layer progress lines into one fraction over every
// layer seen so far, weighted by layer size. The fraction never decreases,
// even when a new layer grows the total.
type pullTracker struct {
	layers map[string]PullProgress
	best   float64
}

func (t *pullTracker) update(p PullProgress) float64 {
	if p.Status == "success" {
		t.best = 1
		return t.best
	}
	if p.Digest != "" && p.Total > 0 {
		if t.layers == nil {
			t.layers = make(map[string]PullProgress)
		}
		t.layers[p.Digest] = p
	}

	var done, total int64
	for _, l := range t.layers {
		done += min(l.Completed, l.Total)
		total += l.Total
	}
	if total > 0 {
		if f := float64(done) / float64(total); f > t.best {
			t.best = f
		}
	}
	return t.best
}

// String renders the progress for display, e.g.
// "pulling 8eeb52dfb3bb [512.0 MB/1.6 GB]".
func (p PullProgress) String() string {
	if p.Total <= 0 {
		return p.Status
	}
	return fmt.Sprintf("%s [%s/%s]", p.Status, FormatSize(p.Completed), FormatSize(p.Total))
}

// PullCallback is called for each status line of a pull.
type PullCallback func(PullProgress)

// Pull downloads a model, reporting progress line by line. It returns when
// the server reports success or the stream ends.
func (c *Client) Pull(ctx context.Context, model string, callback PullCallback) error {
	resp, err := c.do(ctx, c.longClient, http.MethodPost, "/api/pull", PullRequest{Model: model, Stream: true})
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "pull model")
	}
	return readPullStream(ctx, resp.Body, callback)
}

// readPullStream parses NDJSON status lines. An {"error": ...} line aborts
// the pull.
func readPullStream(ctx context.Context, r io.Reader, callback PullCallback) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 || !gjson.ValidBytes(line) {
			continue
		}

		fields := gjson.GetManyBytes(line, "error", "status", "digest", "total", "completed")
		if msg := fields[0].String(); msg != "" {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
		}

		p := PullProgress{
			Status:    fields[1].String(),
			Digest:    fields[2].String(),
			Total:     fields[3].Int(),
			Completed: fields[4].Int(),
		}
		if callback != nil {
			callback(p)
		}
		if p.Status == "success" {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "pull stream interrupted", Cause: err}
	}
	return nil
}
