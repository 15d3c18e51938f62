// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Transcript is the ordered, append-only list of messages shown in a chat
// session. It is owned by a single goroutine and is never persisted.
type Transcript struct {
	messages []ChatMessage
}

// NewTranscript creates a transcript seeded with an assistant greeting.
// An empty greeting yields an empty transcript.
func NewTranscript(greeting string) *Transcript {
	t := &Transcript{}
	if greeting != "" {
		t.Append(NewAssistantMessage(greeting))
	}
	return t
}

// Append adds msg to the end of the transcript.
func (t *Transcript) Append(msg ChatMessage) {
	t.messages = append(t.messages, msg)
}

// AddUser appends a user message and returns it.
func (t *Transcript) AddUser(content string) ChatMessage {
	msg := NewUserMessage(content)
	t.Append(msg)
	return msg
}

// AddAssistant appends an assistant message and returns it.
func (t *Transcript) AddAssistant(content string) ChatMessage {
	msg := NewAssistantMessage(content)
	t.Append(msg)
	return msg
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []ChatMessage {
	out := make([]ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the final message, if any.
func (t *Transcript) Last() (ChatMessage, bool) {
	if len(t.messages) == 0 {
		return ChatMessage{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// LastAssistant returns the most recent assistant message, if any.
func (t *Transcript) LastAssistant() (ChatMessage, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleAssistant {
			return t.messages[i], true
		}
	}
	return ChatMessage{}, false
}
