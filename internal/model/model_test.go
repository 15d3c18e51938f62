// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Qubi", RoleAssistant.DisplayName())
	assert.Equal(t, "other", Role("other").DisplayName())
}

func TestNewMessage_AssignsUniqueIDs(t *testing.T) {
	a := NewUserMessage("hi")
	b := NewUserMessage("hi")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.IsUser())
	assert.False(t, a.Timestamp.IsZero())
}

func TestTranscript_AppendOnlyOrder(t *testing.T) {
	tr := NewTranscript("greeting")
	require.Equal(t, 1, tr.Len())

	tr.AddUser("one")
	tr.AddAssistant("two")
	tr.AddUser("three")

	msgs := tr.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"greeting", "one", "two", "three"},
		[]string{msgs[0].Content, msgs[1].Content, msgs[2].Content, msgs[3].Content})

	// The returned slice is a copy.
	msgs[0].Content = "changed"
	assert.Equal(t, "greeting", tr.Messages()[0].Content)
}

func TestTranscript_LastAssistant(t *testing.T) {
	tr := NewTranscript("")
	_, ok := tr.LastAssistant()
	assert.False(t, ok)
	_, ok = tr.Last()
	assert.False(t, ok)

	tr.AddAssistant("reply")
	tr.AddUser("question")

	last, ok := tr.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "reply", last.Content)

	end, _ := tr.Last()
	assert.Equal(t, "question", end.Content)
}
