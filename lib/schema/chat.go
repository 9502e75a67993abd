// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
	"time"
)

// ChatMessageType distinguishes user messages from system-generated
// ones. System messages never count toward unread totals.
type ChatMessageType string

const (
	// ChatMessage is an ordinary user-authored message.
	ChatMessage ChatMessageType = "message"

	// ChatSystem is a message generated by the workspace itself
	// (joins, renames, request links).
	ChatSystem ChatMessageType = "system"
)

// IsKnown reports whether t is one of the defined ChatMessageType
// values.
func (t ChatMessageType) IsKnown() bool {
	return t == ChatMessage || t == ChatSystem
}

// ChatMessageContent is one record in the shared chat array. The body
// may embed inline mention markers of the form
// "@[displayName](publicKey)"; lib/chat parses and renders them.
type ChatMessageContent struct {
	// ID uniquely identifies the message.
	ID string `json:"id" cbor:"id"`

	// Body is the message text, possibly containing mention markers.
	Body string `json:"body" cbor:"body"`

	// FormattedBody is the pre-rendered HTML form of Body, produced at
	// send time so every replica displays identical output. Optional.
	FormattedBody string `json:"formatted_body,omitempty" cbor:"formatted_body,omitempty"`

	// SenderKey is the sender's identity key; SenderName and
	// SenderColor are display hints denormalized at send time.
	SenderKey   string `json:"sender_key" cbor:"sender_key"`
	SenderName  string `json:"sender_name,omitempty" cbor:"sender_name,omitempty"`
	SenderColor string `json:"sender_color,omitempty" cbor:"sender_color,omitempty"`

	// Channel is the channel identifier. Direct-message channel ids
	// are derived deterministically from the two participants' keys
	// (see lib/chat.ChannelID).
	Channel string `json:"channel" cbor:"channel"`

	// Type is "message" or "system". See ChatMessageType.
	Type ChatMessageType `json:"type" cbor:"type"`

	// CreatedAt is an RFC 3339 UTC timestamp. Unread counting compares
	// these lexically, which is safe for RFC 3339 UTC.
	CreatedAt string `json:"created_at" cbor:"created_at"`
}

// Validate checks that all required fields are present and well-formed.
func (m *ChatMessageContent) Validate() error {
	if m.ID == "" {
		return errors.New("chat message: id is required")
	}
	if m.Body == "" {
		return errors.New("chat message: body is required")
	}
	if m.SenderKey == "" {
		return errors.New("chat message: sender_key is required")
	}
	if m.Channel == "" {
		return errors.New("chat message: channel is required")
	}
	switch {
	case m.Type == "":
		return errors.New("chat message: type is required")
	case !m.Type.IsKnown():
		return fmt.Errorf("chat message: unknown type %q", m.Type)
	}
	if m.CreatedAt == "" {
		return errors.New("chat message: created_at is required")
	}
	if _, err := time.Parse(time.RFC3339, m.CreatedAt); err != nil {
		return fmt.Errorf("chat message: created_at must be RFC 3339: %w", err)
	}
	return nil
}

// RecordID implements the store's record interface.
func (m ChatMessageContent) RecordID() string { return m.ID }
