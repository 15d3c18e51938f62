// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"encoding/json"
	"fmt"
)

// Type identifies a record on the worker channel.
type Type string

// Records the bridge itself sends or inspects.
const (
	TypeInit           Type = "init"
	TypeWorkerResponse Type = "worker_response"
	TypeError          Type = "error"
)

// Engine protocol records. The bridge never interprets these.
const (
	TypeReload         Type = "reload"
	TypeInitProgress   Type = "initProgressCallback"
	TypeChatCompletion Type = "chatCompletion"
	TypeUnload         Type = "unload"
	TypeGetGPUVendor   Type = "getGPUVendor"
	TypeReturn         Type = "return"
	TypeThrow          Type = "throw"
)

// Message is one JSON-shaped record exchanged with a worker.
type Message struct {
	Type    Type            `json:"type"`
	ID      string          `json:"id,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WithPayload returns a copy of m carrying v encoded as JSON.
func (m Message) WithPayload(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return m, fmt.Errorf("encode %s payload: %w", m.Type, err)
	}
	m.Payload = data
	return m, nil
}

// DecodePayload decodes the payload into v.
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s record has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// ErrorMessage builds an error record.
func ErrorMessage(text string) Message {
	return Message{Type: TypeError, Message: text}
}
