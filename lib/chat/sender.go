// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/workroom-foundation/workroom/lib/clock"
	"github.com/workroom-foundation/workroom/lib/notify"
	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// Sender appends chat messages to the shared array and fans out
// mention notifications. Rendering happens at send time so every
// replica stores and shows the same formatted body.
type Sender struct {
	messages *store.Array[schema.ChatMessageContent]
	doc      *store.Doc
	notifier *notify.Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

// NewSender creates a Sender. A nil logger defaults to discard.
func NewSender(doc *store.Doc, messages *store.Array[schema.ChatMessageContent], notifier *notify.Notifier, clk clock.Clock, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sender{messages: messages, doc: doc, notifier: notifier, clock: clk, logger: logger}
}

// SendParams carries one outgoing message.
type SendParams struct {
	Channel     string
	Body        string
	SenderKey   string
	SenderName  string
	SenderColor string
}

// Send appends a user message and notifies every mentioned party
// except the sender. The message append and the notifications land in
// one commit. Duplicate mentions of the same key notify once.
func (s *Sender) Send(params SendParams) (schema.ChatMessageContent, error) {
	formatted, err := FormatBody(params.Body)
	if err != nil {
		return schema.ChatMessageContent{}, err
	}
	message := schema.ChatMessageContent{
		ID:            uuid.NewString(),
		Body:          params.Body,
		FormattedBody: formatted,
		SenderKey:     params.SenderKey,
		SenderName:    params.SenderName,
		SenderColor:   params.SenderColor,
		Channel:       params.Channel,
		Type:          schema.ChatMessage,
		CreatedAt:     schema.Timestamp(s.clock.Now()),
	}
	if err := message.Validate(); err != nil {
		return schema.ChatMessageContent{}, fmt.Errorf("chat: %w", err)
	}

	err = s.doc.Transact(func() error {
		if err := s.messages.Append(message); err != nil {
			return err
		}
		text := fmt.Sprintf("%s mentioned you: %s", params.SenderName, PlainBody(params.Body))
		notified := make(map[string]struct{})
		for _, mention := range ParseMentions(params.Body) {
			if mention.Key == params.SenderKey {
				continue
			}
			if _, done := notified[mention.Key]; done {
				continue
			}
			notified[mention.Key] = struct{}{}
			if err := s.notifier.Push(mention.Key, schema.NotifyMention, text, message.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return schema.ChatMessageContent{}, err
	}
	return message, nil
}

// SendSystem appends a system message to a channel. System messages
// have no sender identity beyond the synthetic "system" key, render no
// mentions, and notify nobody.
func (s *Sender) SendSystem(channel, body string) (schema.ChatMessageContent, error) {
	message := schema.ChatMessageContent{
		ID:        uuid.NewString(),
		Body:      body,
		SenderKey: "system",
		Channel:   channel,
		Type:      schema.ChatSystem,
		CreatedAt: schema.Timestamp(s.clock.Now()),
	}
	if err := message.Validate(); err != nil {
		return schema.ChatMessageContent{}, fmt.Errorf("chat: %w", err)
	}
	if err := s.messages.Append(message); err != nil {
		return schema.ChatMessageContent{}, err
	}
	return message, nil
}
