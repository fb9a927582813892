// Copyright 2024-2026 Aiku AI

package migrator

import (
	"context"
	"errors"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// roomReplay is the private pipeline of one room. Nothing in it is shared
// with other rooms.
type roomReplay struct {
	m           *Migrator
	mapping     RoomMapping
	log         zerolog.Logger
	resolver    *ReferenceResolver
	correlator  *EventCorrelator
	queue       *DeferredQueue
	transformer *ContentTransformer
	sequencer   *Sequencer
}

func (m *Migrator) newRoomReplay(mapping RoomMapping) *roomReplay {
	log := m.log.With().
		Str("slack_room", mapping.Name).
		Stringer("room_id", mapping.RoomID).
		Logger()
	resolver := NewReferenceResolver(m.cfg.ThreadPolicy)
	correlator := NewEventCorrelator()
	return &roomReplay{
		m:           m,
		mapping:     mapping,
		log:         log,
		resolver:    resolver,
		correlator:  correlator,
		queue:       NewDeferredQueue(m.cfg.DeferredLimit),
		transformer: NewContentTransformer(mapping.RoomID, m.identities, resolver, correlator),
		sequencer:   NewSequencer(m.api, mapping.RoomID, log),
	}
}

// replayRoom sends the history of one room: every message file in name
// order, then one retry pass over deferred messages.
func (m *Migrator) replayRoom(ctx context.Context, mapping RoomMapping) error {
	r := m.newRoomReplay(mapping)
	files := m.archive.ListFiles(mapping.Name)
	r.log.Info().Int("files", len(files)).Msg("Replaying room history")

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		messages, err := m.archive.Messages(name)
		if err != nil {
			r.log.Err(err).Str("file", name).Msg("Skipping unreadable message file")
			continue
		}
		for _, msg := range messages {
			r.process(ctx, msg, false)
		}
		r.log.Info().
			Str("file", name).
			Int("files", len(files)).
			Int("percent", (i+1)*100/len(files)).
			Msg("Processed message file")
	}

	deferred := r.queue.Drain()
	if len(deferred) > 0 {
		r.log.Info().Int("count", len(deferred)).Msg("Retrying deferred messages")
	}
	for _, msg := range deferred {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.process(ctx, msg, true)
	}

	RoomsReplayed.Inc()
	r.log.Info().
		Int("events", r.correlator.Len()).
		Int64("transactions", r.sequencer.Tokens()).
		Msg("Finished replaying room")
	return nil
}

// process feeds one message through the pipeline. retry is set during the
// deferred pass, where a message that still cannot be resolved is dropped.
func (r *roomReplay) process(ctx context.Context, msg archive.Message, retry bool) {
	key := MakeNaturalKey(msg.User, msg.TS)
	log := r.log.With().Str("slack_user", msg.User).Str("ts", msg.TS).Logger()

	r.resolver.ScanThread(msg)
	res := r.transformer.Render(msg)
	switch res.Outcome {
	case OutcomeSkip:
		log.Debug().Str("reason", res.Reason).Msg("Skipping message")
		MessagesProcessed.WithLabelValues("skipped").Inc()
		r.correlator.MarkAttempted(key)
		return
	case OutcomeDrop:
		log.Error().Str("reason", res.Reason).Str("parent", res.Parent.String()).Msg("Dropping reply")
		MessagesProcessed.WithLabelValues("dropped").Inc()
		r.correlator.MarkAttempted(key)
		return
	case OutcomeDefer:
		if retry {
			log.Warn().Str("reason", res.Reason).Msg("Dropping reply, parent still unresolved after retry")
			MessagesProcessed.WithLabelValues("dropped").Inc()
			r.correlator.MarkAttempted(key)
			return
		}
		if !r.queue.Push(msg) {
			log.Warn().Msg("Dropping reply, deferred queue is full")
			MessagesProcessed.WithLabelValues("dropped").Inc()
			r.correlator.MarkAttempted(key)
			return
		}
		log.Debug().Str("reason", res.Reason).Msg("Deferring reply")
		MessagesProcessed.WithLabelValues("deferred").Inc()
		return
	}

	payload := res.Payload
	if res.QuoteMissing {
		log.Debug().
			Str("thread_root", MakeNaturalKey(msg.ParentUserID, msg.ThreadTS).String()).
			Msg("Thread root has no stored context, sending reply without quote")
	}
	lastEvent := r.sendFiles(ctx, msg, payload)
	// Without a file event the text is sent even when empty.
	if !payload.IsEmpty() || lastEvent == "" {
		evtID, err := r.sequencer.SendMessage(ctx, payload)
		if err == nil {
			lastEvent = evtID
		} else if errors.Is(err, context.Canceled) {
			return
		}
	}
	if lastEvent == "" {
		log.Warn().Msg("Message produced no event")
		MessagesProcessed.WithLabelValues("failed").Inc()
		r.correlator.MarkAttempted(key)
		return
	}
	if err := r.correlator.Record(key, lastEvent, payload.Thread); err != nil {
		log.Warn().Err(err).Msg("Duplicate message key")
	}
	MessagesProcessed.WithLabelValues("sent").Inc()

	if len(msg.Reactions) > 0 {
		r.sequencer.SendReactions(ctx, lastEvent, payload.Timestamp, msg.Reactions, r.m.identities)
	}
}

// sendFiles sends the files of msg ahead of its text and returns the last
// event sent, if any. Files of a reply carry the same reply relation.
func (r *roomReplay) sendFiles(ctx context.Context, msg archive.Message, payload *Payload) id.EventID {
	if r.m.cfg.SkipFiles || r.m.files == nil {
		return ""
	}
	var lastEvent id.EventID
	for _, content := range r.m.files.Process(ctx, msg, payload.Sender) {
		if payload.ReplyTo != "" {
			content.RelatesTo = &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: payload.ReplyTo}}
		}
		if evtID, err := r.sequencer.SendContent(ctx, payload.Sender, payload.Timestamp, content); err == nil {
			lastEvent = evtID
		}
	}
	return lastEvent
}
