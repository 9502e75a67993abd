// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat provides the pure functions around workspace chat:
// deterministic direct-message channel ids, mention marker handling,
// send-time HTML rendering, and unread counting. Message storage is
// just a shared array; nothing here touches the document.
package chat

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/workroom-foundation/workroom/lib/schema"
)

// channelKeyPrefixLen is how much of each participant key goes into a
// DM channel id. Twelve characters of a base62 key is far beyond
// collision range for a workspace roster.
const channelKeyPrefixLen = 12

// ChannelID derives the direct-message channel id for two
// participants. Both sides compute the same id with no negotiation:
// the keys are sorted before truncation, so the argument order never
// matters.
func ChannelID(keyA, keyB string) string {
	first, second := keyA, keyB
	if second < first {
		first, second = second, first
	}
	return "dm:" + truncateKey(first) + ":" + truncateKey(second)
}

func truncateKey(key string) string {
	if len(key) > channelKeyPrefixLen {
		return key[:channelKeyPrefixLen]
	}
	return key
}

// Mention is one parsed "@[displayName](publicKey)" marker.
type Mention struct {
	DisplayName string
	Key         string
}

var mentionPattern = regexp.MustCompile(`@\[([^\]\n]+)\]\(([0-9A-Za-z]+)\)`)

// ParseMentions extracts every mention marker from a message body, in
// order of appearance. Duplicate keys are kept; callers deduplicate
// when fanning out notifications.
func ParseMentions(body string) []Mention {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	mentions := make([]Mention, 0, len(matches))
	for _, match := range matches {
		mentions = append(mentions, Mention{DisplayName: match[1], Key: match[2]})
	}
	return mentions
}

// RenderMentions replaces each mention marker with render's output,
// leaving the rest of the body untouched.
func RenderMentions(body string, render func(Mention) string) string {
	return mentionPattern.ReplaceAllStringFunc(body, func(marker string) string {
		match := mentionPattern.FindStringSubmatch(marker)
		return render(Mention{DisplayName: match[1], Key: match[2]})
	})
}

// PlainBody renders mention markers to their "@displayName" reading,
// for notification text and terminal output.
func PlainBody(body string) string {
	return RenderMentions(body, func(m Mention) string {
		return "@" + m.DisplayName
	})
}

// markdown is the shared renderer. Raw HTML in message bodies is
// escaped, not passed through; the output is safe to store as the
// message's formatted body.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
)

// FormatBody renders a message body to HTML at send time. Mention
// markers become links with the "mention:" scheme so display layers
// can restyle them without re-parsing the text.
func FormatBody(body string) (string, error) {
	prepared := RenderMentions(body, func(m Mention) string {
		return fmt.Sprintf("[@%s](mention:%s)", m.DisplayName, m.Key)
	})
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(prepared), &buf); err != nil {
		return "", fmt.Errorf("chat: rendering body: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// UnreadCount counts the messages in channel that viewer has not read:
// those newer than lastRead (the viewer's local cursor, RFC 3339 or
// empty for "never read anything"), excluding the viewer's own
// messages and system messages. Pure: the same snapshot and cursor
// always produce the same count.
func UnreadCount(messages []schema.ChatMessageContent, channel, viewerKey, lastRead string) int {
	count := 0
	for _, message := range messages {
		if message.Channel != channel {
			continue
		}
		if message.SenderKey == viewerKey {
			continue
		}
		if message.Type == schema.ChatSystem {
			continue
		}
		if message.CreatedAt <= lastRead {
			continue
		}
		count++
	}
	return count
}
