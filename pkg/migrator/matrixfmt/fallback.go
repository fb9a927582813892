// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package matrixfmt builds Matrix-specific message fragments: matrix.to
// links and the rich-reply fallbacks shown by clients that do not render
// m.in_reply_to relations.
package matrixfmt

import (
	"html"
	"strings"

	"maunium.net/go/mautrix/id"
)

const matrixToPrefix = "https://matrix.to/#/"

// UserLink returns the matrix.to permalink of a user.
func UserLink(userID id.UserID) string {
	return matrixToPrefix + string(userID)
}

// EventLink returns the matrix.to permalink of an event in a room.
func EventLink(roomID id.RoomID, eventID id.EventID) string {
	return matrixToPrefix + string(roomID) + "/" + string(eventID)
}

// ReplyFallbackText quotes body the way Matrix rich replies do:
//
//	> <@sender:example.org> first line
//	> second line
func ReplyFallbackText(sender id.UserID, body string) string {
	lines := strings.Split(body, "\n")
	return "> <" + string(sender) + "> " + strings.Join(lines, "\n> ")
}

// ReplyFallbackHTML builds the <mx-reply> block for a reply to eventID.
// When the quoted message has no HTML form its plain body is escaped and
// used instead.
func ReplyFallbackHTML(roomID id.RoomID, eventID id.EventID, sender id.UserID, formattedBody, body string) string {
	quoted := formattedBody
	if quoted == "" {
		quoted = strings.ReplaceAll(html.EscapeString(body), "\n", "<br/>")
	}
	return `<mx-reply><blockquote><a href="` + EventLink(roomID, eventID) + `">In reply to</a> ` +
		`<a href="` + UserLink(sender) + `">` + html.EscapeString(string(sender)) + `</a><br/>` +
		quoted + `</blockquote></mx-reply>`
}
