// Copyright 2024-2026 Aiku AI

package migrator

import (
	"context"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/aiku/slack2matrix/pkg/migrator/slackfmt"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Sequencer sends one room's events. Every send attempt consumes the next
// transaction token, whether it succeeds or not, so tokens are strictly
// increasing within the room. A Sequencer is never shared between rooms.
type Sequencer struct {
	api    MatrixAPI
	roomID id.RoomID
	log    zerolog.Logger
	next   int64
}

func NewSequencer(api MatrixAPI, roomID id.RoomID, log zerolog.Logger) *Sequencer {
	return &Sequencer{
		api:    api,
		roomID: roomID,
		log:    log,
		next:   1,
	}
}

func (s *Sequencer) nextToken() int64 {
	token := s.next
	s.next++
	return token
}

// Tokens returns how many tokens have been consumed.
func (s *Sequencer) Tokens() int64 {
	return s.next - 1
}

func (s *Sequencer) send(ctx context.Context, sender id.UserID, ts int64, evtType event.Type, content any) (id.EventID, error) {
	token := s.nextToken()
	evtID, err := s.api.SendEvent(ctx, s.roomID, sender, MakeTxnID(token), ts, evtType, content)
	if err != nil {
		LogRemoteError(s.log.Warn(), err).
			Stringer("sender", sender).
			Int64("txn_id", token).
			Str("event_type", evtType.Type).
			Msg("Failed to send event")
		return "", err
	}
	return evtID, nil
}

// SendMessage sends a rendered message. Failures are logged and returned;
// the caller moves on to the next message.
func (s *Sequencer) SendMessage(ctx context.Context, payload *Payload) (id.EventID, error) {
	return s.send(ctx, payload.Sender, payload.Timestamp, event.EventMessage, payload.Content)
}

// SendContent sends arbitrary message content, such as a file event.
func (s *Sequencer) SendContent(ctx context.Context, sender id.UserID, ts int64, content *event.MessageEventContent) (id.EventID, error) {
	return s.send(ctx, sender, ts, event.EventMessage, content)
}

// SendReactions sends one reaction event per distinct emoji and reacting
// user. Reactions from unmigrated users are skipped. It returns the number
// of reactions sent.
func (s *Sequencer) SendReactions(ctx context.Context, target id.EventID, ts int64, reactions []archive.Reaction, identities *IdentityMapper) int {
	type pair struct {
		key  string
		user id.UserID
	}
	seen := make(map[pair]struct{})
	sent := 0
	for _, reaction := range reactions {
		key := slackfmt.EmojiFor(reaction.Name)
		for _, sourceID := range reaction.Users {
			userID, ok := identities.ResolveUser(sourceID)
			if !ok {
				s.log.Debug().Str("slack_user", sourceID).Str("reaction", reaction.Name).
					Msg("Skipping reaction from unmigrated user")
				continue
			}
			p := pair{key: key, user: userID}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}

			_, err := s.send(ctx, userID, ts, event.EventReaction, &event.ReactionEventContent{
				RelatesTo: event.RelatesTo{
					Type:    event.RelAnnotation,
					EventID: target,
					Key:     key,
				},
			})
			if err != nil {
				ReactionsSent.WithLabelValues("failed").Inc()
				continue
			}
			ReactionsSent.WithLabelValues("sent").Inc()
			sent++
		}
	}
	return sent
}
