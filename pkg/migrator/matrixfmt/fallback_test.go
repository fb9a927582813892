// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package matrixfmt

import (
	"strings"
	"testing"

	"maunium.net/go/mautrix/id"
)

func TestUserLink(t *testing.T) {
	t.Parallel()
	got := UserLink("@alice:example.org")
	if got != "https://matrix.to/#/@alice:example.org" {
		t.Errorf("UserLink: got %q", got)
	}
}

func TestEventLink(t *testing.T) {
	t.Parallel()
	got := EventLink("!room:example.org", "$evt")
	if got != "https://matrix.to/#/!room:example.org/$evt" {
		t.Errorf("EventLink: got %q", got)
	}
}

func TestReplyFallbackText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"single line", "hello", "> <@a:example.org> hello"},
		{"multi line", "one\ntwo\nthree", "> <@a:example.org> one\n> two\n> three"},
		{"empty", "", "> <@a:example.org> "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ReplyFallbackText(id.UserID("@a:example.org"), tt.body)
			if got != tt.want {
				t.Errorf("ReplyFallbackText: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReplyFallbackHTML(t *testing.T) {
	t.Parallel()
	got := ReplyFallbackHTML("!r:example.org", "$root", "@a:example.org", "<strong>hi</strong>", "*hi*")

	if !strings.HasPrefix(got, "<mx-reply><blockquote>") || !strings.HasSuffix(got, "</blockquote></mx-reply>") {
		t.Errorf("fallback not wrapped in mx-reply blockquote: %q", got)
	}
	if !strings.Contains(got, `<a href="https://matrix.to/#/!r:example.org/$root">In reply to</a>`) {
		t.Errorf("fallback missing event link: %q", got)
	}
	if !strings.Contains(got, `<a href="https://matrix.to/#/@a:example.org">@a:example.org</a>`) {
		t.Errorf("fallback missing sender link: %q", got)
	}
	if !strings.Contains(got, "<strong>hi</strong>") {
		t.Errorf("fallback missing quoted html: %q", got)
	}
}

func TestReplyFallbackHTML_PlainBodyEscaped(t *testing.T) {
	t.Parallel()
	got := ReplyFallbackHTML("!r:example.org", "$root", "@a:example.org", "", "a < b\nc")
	if !strings.Contains(got, "a &lt; b<br/>c") {
		t.Errorf("plain body not escaped into fallback: %q", got)
	}
}
