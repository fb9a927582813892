// Copyright 2024-2026 Aiku AI

// Package slackfmt converts Slack mrkdwn to Matrix message bodies.
//
// Slack exports store text with &, < and > entity-escaped; a literal angle
// bracket only ever opens a control token such as <@U123>, <#C123|general>,
// <!here> or <https://example.com|label>.
package slackfmt

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"maunium.net/go/mautrix/event"
)

// ParsedMessage holds the plain-text and HTML renderings of a Slack message.
type ParsedMessage struct {
	Body          string
	Format        event.Format
	FormattedBody string
}

var (
	tokenRe      = regexp.MustCompile(`<([^<>\s][^<>]*)>`)
	codeBlockRe  = regexp.MustCompile("(?s)```\n?(.*?)```")
	codeRe       = regexp.MustCompile("`([^`\n]+)`")
	boldRe       = regexp.MustCompile(`(^|[\s(>])\*([^*\n]+)\*`)
	italicRe     = regexp.MustCompile(`(^|[\s(>])_([^_\n]+)_`)
	strikeRe     = regexp.MustCompile(`(^|[\s(>])~([^~\n]+)~`)
	blockquoteRe = regexp.MustCompile(`^&gt;\s?(.*)$`)
	listRe       = regexp.MustCompile(`^\s*[•◦▪\-]\s+(.+)$`)
)

// codeEscaper escapes control token brackets left inside code. Other
// characters are already entity-escaped in exports.
var codeEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// placeholders keeps already-rendered fragments out of the inline passes.
type placeholders []string

func (p *placeholders) add(fragment string) string {
	idx := len(*p)
	*p = append(*p, fragment)
	return "\x00PH" + strconv.Itoa(idx) + "\x00"
}

func (p placeholders) restore(text string) string {
	for i := len(p) - 1; i >= 0; i-- {
		text = strings.Replace(text, "\x00PH"+strconv.Itoa(i)+"\x00", p[i], 1)
	}
	return text
}

// Render converts Slack mrkdwn to a Matrix plain-text body and an HTML
// formatted body. Emoji aliases are expanded in both.
func Render(text string) *ParsedMessage {
	return &ParsedMessage{
		Body:          Emojize(PlainText(text)),
		Format:        event.FormatHTML,
		FormattedBody: Emojize(HTML(text)),
	}
}

// PlainText renders control tokens as readable text and unescapes entities.
func PlainText(text string) string {
	text = tokenRe.ReplaceAllStringFunc(text, func(match string) string {
		target, label := splitToken(match[1 : len(match)-1])
		switch {
		case strings.HasPrefix(target, "#"):
			if label != "" {
				return "#" + label
			}
			return target
		case strings.HasPrefix(target, "!"), strings.HasPrefix(target, "@"):
			if label != "" {
				return label
			}
			return target
		case label == "" || label == target:
			return target
		case isMatrixToUser(target):
			return label
		default:
			return label + " (" + target + ")"
		}
	})
	return html.UnescapeString(text)
}

// HTML renders Slack mrkdwn as Matrix-compatible HTML.
func HTML(text string) string {
	if text == "" {
		return ""
	}
	var ph placeholders

	// Code blocks first so their content is left untouched.
	text = codeBlockRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := codeBlockRe.FindStringSubmatch(match)
		return ph.add("<pre><code>" + codeEscaper.Replace(strings.TrimSuffix(parts[1], "\n")) + "</code></pre>")
	})
	text = codeRe.ReplaceAllStringFunc(text, func(match string) string {
		return ph.add("<code>" + codeEscaper.Replace(match[1:len(match)-1]) + "</code>")
	})
	text = tokenRe.ReplaceAllStringFunc(text, func(match string) string {
		return ph.add(renderToken(match[1 : len(match)-1]))
	})

	// Structural elements, line by line.
	lines := strings.Split(text, "\n")
	var result []string
	var quote, list []string
	flush := func() {
		if len(quote) > 0 {
			result = append(result, "<blockquote>"+strings.Join(quote, "<br/>")+"</blockquote>")
			quote = nil
		}
		if len(list) > 0 {
			result = append(result, "<ul>"+strings.Join(list, "")+"</ul>")
			list = nil
		}
	}
	for _, line := range lines {
		if m := blockquoteRe.FindStringSubmatch(line); m != nil {
			if len(list) > 0 {
				flush()
			}
			quote = append(quote, inline(m[1]))
			continue
		}
		if m := listRe.FindStringSubmatch(line); m != nil {
			if len(quote) > 0 {
				flush()
			}
			list = append(list, "<li>"+inline(m[1])+"</li>")
			continue
		}
		flush()
		result = append(result, inline(line))
	}
	flush()

	formatted := joinLines(result)
	return ph.restore(formatted)
}

// joinLines joins rendered lines with <br/>, except around block elements
// which already break the line.
func joinLines(lines []string) string {
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 && !isBlock(lines[i-1]) && !isBlock(line) {
			sb.WriteString("<br/>")
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func isBlock(line string) bool {
	return strings.HasPrefix(line, "<blockquote>") || strings.HasPrefix(line, "<ul>")
}

func inline(text string) string {
	text = boldRe.ReplaceAllString(text, "$1<strong>$2</strong>")
	text = italicRe.ReplaceAllString(text, "$1<em>$2</em>")
	text = strikeRe.ReplaceAllString(text, "$1<del>$2</del>")
	return text
}

// renderToken renders the inside of a <...> control token as HTML.
func renderToken(token string) string {
	target, label := splitToken(token)
	switch {
	case strings.HasPrefix(target, "#"):
		if label == "" {
			label = target[1:]
		}
		return "#" + label
	case strings.HasPrefix(target, "!"), strings.HasPrefix(target, "@"):
		if label != "" {
			return label
		}
		return target
	}
	if label == "" {
		label = target
	}
	if !isSafeURL(target) {
		return label
	}
	return `<a href="` + html.EscapeString(html.UnescapeString(target)) + `">` + label + `</a>`
}

func splitToken(token string) (target, label string) {
	target, label, _ = strings.Cut(token, "|")
	return target, label
}

func isSafeURL(target string) bool {
	lower := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:")
}

func isMatrixToUser(target string) bool {
	return strings.HasPrefix(target, "https://matrix.to/#/@")
}
