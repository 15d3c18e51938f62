// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
)

// Cache reports whether model weights are stored by the local server.
// It implements engine.Cache.
type Cache struct {
	client *Client
	// AutoStart launches the server before probing.
	AutoStart bool
}

// NewCache creates a cache inspector for client.
func NewCache(client *Client, autoStart bool) *Cache {
	return &Cache{client: client, AutoStart: autoStart}
}

func (c *Cache) ready(ctx context.Context) error {
	if c.AutoStart {
		return c.client.EnsureRunning(ctx)
	}
	return c.client.CheckRunning(ctx)
}

// HasModelInCache implements engine.Cache.
func (c *Cache) HasModelInCache(ctx context.Context, modelID string) (bool, error) {
	if err := c.ready(ctx); err != nil {
		return false, err
	}
	return c.client.ModelExists(ctx, modelID)
}

// DeleteModelFromCache implements engine.Cache. Deleting a model that is
// not stored is not an error.
func (c *Cache) DeleteModelFromCache(ctx context.Context, modelID string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	if err := c.client.Delete(ctx, modelID); err != nil && !IsModelNotFound(err) {
		return fmt.Errorf("delete %s: %w", modelID, err)
	}
	return nil
}

// ModelSize returns the on-disk size of a stored model, or 0 when it is not
// listed.
func (c *Cache) ModelSize(ctx context.Context, modelID string) (int64, error) {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range models {
		if m.Name == modelID {
			return m.Size, nil
		}
	}
	return 0, nil
}
