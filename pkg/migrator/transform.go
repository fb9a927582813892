// Copyright 2024-2026 Aiku AI

package migrator

import (
	"regexp"
	"strings"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/aiku/slack2matrix/pkg/migrator/matrixfmt"
	"github.com/aiku/slack2matrix/pkg/migrator/slackfmt"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Outcome is the verdict of the content transformer on one message.
type Outcome int

const (
	// OutcomeSend means the payload is ready to send.
	OutcomeSend Outcome = iota
	// OutcomeSkip means the message is never sent.
	OutcomeSkip
	// OutcomeDefer means the message references a parent that is not
	// available yet and should be retried after the room's main pass.
	OutcomeDefer
	// OutcomeDrop means the message references a parent that will never
	// have an event.
	OutcomeDrop
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSend:
		return "send"
	case OutcomeSkip:
		return "skip"
	case OutcomeDefer:
		return "defer"
	case OutcomeDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// filteredSubtypes are system or bot messages that are not migrated.
var filteredSubtypes = map[string]struct{}{
	"bot_message":       {},
	"bot_remove":        {},
	"slackbot_response": {},
	"channel_name":      {},
	"channel_join":      {},
	"channel_leave":     {},
	"channel_purpose":   {},
	"channel_topic":     {},
	"group_name":        {},
	"group_join":        {},
	"group_leave":       {},
	"group_purpose":     {},
	"group_topic":       {},
	"file_comment":      {},
}

const (
	subtypeMeMessage       = "me_message"
	subtypeThreadBroadcast = "thread_broadcast"
)

// RoomMention is the Matrix room-wide mention marker.
const RoomMention = "@room"

var (
	broadcastMentionRe = regexp.MustCompile(`<!(channel|here|everyone)(\|[^<>]*)?>`)
	userMentionRe      = regexp.MustCompile(`<@([A-Z0-9]+)(\|[^<>]*)?>`)
	labelEscaper       = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "|", "&#124;")
)

// Payload is a rendered message ready for the transmission sequencer.
type Payload struct {
	Key       NaturalKey
	Sender    id.UserID
	Timestamp int64
	Content   *event.MessageEventContent
	// ReplyTo is the parent event of a thread reply, empty otherwise.
	ReplyTo id.EventID
	// Thread is set for thread roots so replies can quote them later.
	Thread *ThreadContext

	hasText bool
}

// IsEmpty reports whether the message itself carries no text. Messages that
// only share files produce empty payloads.
func (p *Payload) IsEmpty() bool {
	return p.Content == nil || !p.hasText
}

// Result is the outcome of rendering a message, with a reason for anything
// that is not sent.
type Result struct {
	Outcome Outcome
	Reason  string
	Payload *Payload
	// Parent is the natural key the message replies to, if any.
	Parent NaturalKey
	// QuoteMissing is set for a reply sent without a fallback quote because
	// its thread root has no stored context.
	QuoteMissing bool
}

// ContentTransformer renders Slack messages into Matrix payloads for one
// room. It performs lookups only and never talks to the homeserver.
type ContentTransformer struct {
	roomID     id.RoomID
	identities *IdentityMapper
	resolver   *ReferenceResolver
	correlator *EventCorrelator
}

func NewContentTransformer(roomID id.RoomID, identities *IdentityMapper, resolver *ReferenceResolver, correlator *EventCorrelator) *ContentTransformer {
	return &ContentTransformer{
		roomID:     roomID,
		identities: identities,
		resolver:   resolver,
		correlator: correlator,
	}
}

// SkipReason returns why msg is never migrated, or "" if it is.
func SkipReason(msg *archive.Message, identities *IdentityMapper) string {
	if _, filtered := filteredSubtypes[msg.Subtype]; filtered {
		return "filtered subtype " + msg.Subtype
	}
	if msg.Hidden {
		return "hidden message"
	}
	if msg.User == "" {
		return "message has no author"
	}
	if _, ok := identities.ResolveUser(msg.User); !ok {
		return "author not migrated"
	}
	return ""
}

// SubstituteMentions rewrites Slack mentions in text. Broadcast mentions
// become @room and user mentions become matrix.to links labelled with the
// user's display name. Mentions of unmigrated users are removed.
func SubstituteMentions(text string, identities *IdentityMapper) string {
	text = broadcastMentionRe.ReplaceAllString(text, RoomMention)
	return userMentionRe.ReplaceAllStringFunc(text, func(match string) string {
		sourceID := userMentionRe.FindStringSubmatch(match)[1]
		userID, ok := identities.ResolveUser(sourceID)
		if !ok {
			return ""
		}
		label, ok := identities.DisplayName(userID)
		if !ok || label == "" {
			label = string(userID)
		}
		return "<" + matrixfmt.UserLink(userID) + "|" + labelEscaper.Replace(label) + ">"
	})
}

// AppendAttachments adds a quote for every shared message attachment.
// text and the result are in Slack's entity-escaped form.
func AppendAttachments(text string, attachments []archive.Attachment) string {
	for _, att := range attachments {
		if !att.IsShare {
			continue
		}
		shared := att.Text
		if shared == "" {
			shared = att.Fallback
		}
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		text += "&gt; _Shared (" + att.Footer + "):_ " + strings.ReplaceAll(shared, "\n", "\n&gt; ") + "\n"
	}
	return strings.TrimSuffix(text, "\n")
}

// Render turns msg into a payload, or explains why it cannot be sent now.
func (t *ContentTransformer) Render(msg archive.Message) Result {
	if reason := SkipReason(&msg, t.identities); reason != "" {
		return Result{Outcome: OutcomeSkip, Reason: reason}
	}
	sender, _ := t.identities.ResolveUser(msg.User)
	key := MakeNaturalKey(msg.User, msg.TS)

	text := SubstituteMentions(msg.Text, t.identities)
	text = AppendAttachments(text, msg.Attachments)
	parsed := slackfmt.Render(text)

	content := &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          parsed.Body,
		Format:        parsed.Format,
		FormattedBody: parsed.FormattedBody,
	}
	if msg.Subtype == subtypeMeMessage {
		content.MsgType = event.MsgEmote
	}
	payload := &Payload{
		Key:       key,
		Sender:    sender,
		Timestamp: ParseSlackTS(msg.TS),
		Content:   content,
		hasText:   strings.TrimSpace(parsed.Body) != "",
	}
	if msg.IsThreadRoot() {
		payload.Thread = &ThreadContext{
			Body:          parsed.Body,
			FormattedBody: parsed.FormattedBody,
			Sender:        sender,
		}
	}
	if !msg.IsThreadReply() {
		return Result{Outcome: OutcomeSend, Payload: payload}
	}

	parent, ok := t.resolver.EdgeFor(key)
	if !ok {
		return Result{Outcome: OutcomeDefer, Reason: "thread not scanned yet"}
	}
	parentEvent, ok := t.correlator.Lookup(parent)
	if !ok {
		if t.correlator.Attempted(parent) {
			return Result{Outcome: OutcomeDrop, Reason: "parent message has no event", Parent: parent}
		}
		return Result{Outcome: OutcomeDefer, Reason: "parent not sent yet", Parent: parent}
	}
	payload.ReplyTo = parentEvent
	content.RelatesTo = &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: parentEvent}}

	// The quote always shows the thread root, whichever message the reply
	// relation points at.
	if root, ok := t.correlator.LookupThreadContext(MakeNaturalKey(msg.ParentUserID, msg.ThreadTS)); ok {
		content.Body = matrixfmt.ReplyFallbackText(root.Sender, root.Body) + "\n\n" + parsed.Body
		content.FormattedBody = matrixfmt.ReplyFallbackHTML(t.roomID, root.EventID, root.Sender, root.FormattedBody, root.Body) +
			parsed.FormattedBody
		return Result{Outcome: OutcomeSend, Payload: payload, Parent: parent}
	}
	return Result{Outcome: OutcomeSend, Payload: payload, Parent: parent, QuoteMissing: true}
}
