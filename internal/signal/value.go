// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package signal provides a small observable value with last-value replay.
//
// A Value holds the most recent published value. New subscribers are called
// immediately with that value and then once per Publish. There is no ordering
// guarantee across subscribers; each one must treat every value on its own.
//
//	loaded := signal.New(false)
//	stop := loaded.Subscribe(func(v bool) { fmt.Println("loaded:", v) })
//	loaded.Publish(true)
//	stop()
package signal

import "sync"

// Value is a thread-safe observable holding the last published value.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	nextID  int
	subs    map[int]func(T)
}

// New creates a Value seeded with initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[int]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Publish stores val and notifies every subscriber.
// Subscribers are called outside the lock so they may call Get or Publish.
func (v *Value[T]) Publish(val T) {
	v.mu.Lock()
	v.current = val
	fns := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(val)
	}
}

// Subscribe registers fn, calls it with the current value, and returns a
// function that removes the subscription.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	current := v.current
	v.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}
