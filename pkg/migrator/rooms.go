// Copyright 2024-2026 Aiku AI

package migrator

import (
	"context"
	"slices"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/aiku/slack2matrix/pkg/migrator/slackfmt"
	"go.mau.fi/util/random"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

const passwordLength = 20

// Room kinds, used in logs and metrics.
const (
	kindChannel = "channel"
	kindGroup   = "group"
	kindDM      = "dm"
	kindMPIM    = "mpim"
)

// migrateUsers creates an account for every human Slack user.
func (m *Migrator) migrateUsers(ctx context.Context, users []archive.User) {
	log := m.log.With().Str("phase", "users").Logger()
	created := 0
	for _, user := range users {
		if user.IsBot || user.ID == archive.SlackbotID {
			log.Debug().Str("slack_user", user.ID).Str("name", user.Name).Msg("Skipping bot user")
			UsersMigrated.WithLabelValues("skipped").Inc()
			continue
		}
		if _, exists := m.identities.ResolveUser(user.ID); exists {
			continue
		}
		userID := MakeUserID(user.Name, m.cfg.Domain)
		displayName := m.cfg.FormatDisplayname(DisplaynameParams{
			Name:        user.Name,
			RealName:    user.Profile.RealName,
			DisplayName: user.Profile.DisplayName,
			Email:       user.Profile.Email,
		})
		password := random.String(passwordLength)
		if err := m.api.RegisterUser(ctx, userID, displayName, password); err != nil {
			LogRemoteError(log.Warn(), err).
				Str("slack_user", user.ID).
				Stringer("user_id", userID).
				Msg("Failed to create user")
			UsersMigrated.WithLabelValues("failed").Inc()
			continue
		}
		m.identities.RegisterUser(user.ID, UserRecord{
			UserID:      userID,
			DisplayName: displayName,
			Name:        user.Name,
			RealName:    user.Profile.RealName,
			Email:       user.Profile.Email,
			Password:    password,
		})
		UsersMigrated.WithLabelValues("created").Inc()
		created++
	}
	log.Info().Int("created", created).Int("total", len(users)).Msg("Migrated users")
}

// mapMembers resolves Slack user IDs, dropping unmigrated users, duplicates
// and exclude.
func (m *Migrator) mapMembers(members []string, exclude id.UserID) []id.UserID {
	var out []id.UserID
	for _, member := range members {
		userID, ok := m.identities.ResolveUser(member)
		if !ok || userID == exclude || slices.Contains(out, userID) {
			continue
		}
		out = append(out, userID)
	}
	return out
}

func (m *Migrator) roomCreator(slackCreator string) id.UserID {
	if !m.cfg.CreateAsAdmin {
		if userID, ok := m.identities.ResolveUser(slackCreator); ok {
			return userID
		}
	}
	return m.AdminID
}

func (m *Migrator) creationContent() map[string]any {
	return map[string]any{"m.federate": m.cfg.FederateRooms}
}

// joinAll joins every invitee to roomID through the application service.
func (m *Migrator) joinAll(ctx context.Context, roomID id.RoomID, invitees []id.UserID) {
	for _, userID := range invitees {
		if err := m.api.JoinRoom(ctx, userID, roomID); err != nil {
			LogRemoteError(m.log.Warn(), err).
				Stringer("room_id", roomID).
				Stringer("user_id", userID).
				Msg("Failed to join user to room")
		}
	}
}

// migrateChannels creates a room for every channel or private group.
func (m *Migrator) migrateChannels(ctx context.Context, channels []archive.Channel, kind string) {
	log := m.log.With().Str("phase", "rooms").Str("kind", kind).Logger()
	private := kind == kindGroup || m.cfg.ImportAsPrivate
	allUsers := m.identities.UserIDs()
	created := 0
	for _, channel := range channels {
		log := log.With().Str("slack_room", channel.Name).Str("slack_room_id", channel.ID).Logger()
		if channel.IsArchived && m.cfg.SkipArchived {
			log.Debug().Msg("Skipping archived channel")
			RoomsMigrated.WithLabelValues(kind, "skipped").Inc()
			continue
		}
		if _, exists := m.identities.ResolveRoom(channel.ID); exists {
			continue
		}
		creator := m.roomCreator(channel.Creator)
		var invitees []id.UserID
		if m.cfg.InviteAll {
			for _, userID := range allUsers {
				if userID != creator {
					invitees = append(invitees, userID)
				}
			}
		} else {
			invitees = m.mapMembers(channel.Members, creator)
		}

		req := &mautrix.ReqCreateRoom{
			Visibility:      "public",
			Preset:          "public_chat",
			RoomAliasName:   channel.Name,
			Name:            channel.Name + m.cfg.RoomSuffix,
			Topic:           slackfmt.PlainText(channel.Topic.Value),
			Invite:          invitees,
			CreationContent: m.creationContent(),
		}
		if private {
			req.Visibility = "private"
			req.Preset = "private_chat"
		}
		roomID, err := m.api.CreateRoom(ctx, creator, req)
		if err != nil {
			LogRemoteError(log.Warn(), err).Msg("Failed to create room")
			RoomsMigrated.WithLabelValues(kind, "failed").Inc()
			continue
		}
		m.identities.RegisterRoom(channel.ID, RoomRecord{RoomID: roomID, Name: channel.Name})
		m.joinAll(ctx, roomID, invitees)
		RoomsMigrated.WithLabelValues(kind, "created").Inc()
		created++
		log.Debug().Stringer("room_id", roomID).Int("members", len(invitees)).Msg("Created room")
	}
	log.Info().Int("created", created).Int("total", len(channels)).Msg("Migrated rooms")
}

// dmFolder returns the archive folder holding a conversation's messages.
func dmFolder(dm archive.DM, kind string) string {
	if kind == kindMPIM && dm.Name != "" {
		return dm.Name
	}
	return dm.ID
}

// migrateDMs creates a direct chat for every DM or MPIM.
func (m *Migrator) migrateDMs(ctx context.Context, dms []archive.DM, kind string) {
	log := m.log.With().Str("phase", "dms").Str("kind", kind).Logger()
	created := 0
	for _, dm := range dms {
		log := log.With().Str("slack_room_id", dm.ID).Logger()
		if slices.Contains(dm.Members, archive.SlackbotID) || dm.User == archive.SlackbotID {
			log.Debug().Msg("Skipping conversation with Slackbot")
			RoomsMigrated.WithLabelValues(kind, "skipped").Inc()
			continue
		}
		if _, exists := m.identities.ResolveRoom(dm.ID); exists {
			continue
		}
		creatorSource := dm.Creator
		if creatorSource == "" {
			creatorSource = dm.User
		}
		if creatorSource == "" && len(dm.Members) > 0 {
			creatorSource = dm.Members[0]
		}
		creator, ok := m.identities.ResolveUser(creatorSource)
		if !ok {
			log.Warn().Str("slack_user", creatorSource).Msg("Skipping conversation, creator was not migrated")
			RoomsMigrated.WithLabelValues(kind, "skipped").Inc()
			continue
		}
		invitees := m.mapMembers(dm.Members, creator)
		roomID, err := m.api.CreateRoom(ctx, creator, &mautrix.ReqCreateRoom{
			Visibility:      "private",
			Preset:          "trusted_private_chat",
			IsDirect:        true,
			Invite:          invitees,
			CreationContent: m.creationContent(),
		})
		if err != nil {
			LogRemoteError(log.Warn(), err).Msg("Failed to create direct chat")
			RoomsMigrated.WithLabelValues(kind, "failed").Inc()
			continue
		}
		m.identities.RegisterDM(dm.ID, RoomRecord{RoomID: roomID, Name: dmFolder(dm, kind)})
		m.joinAll(ctx, roomID, invitees)
		RoomsMigrated.WithLabelValues(kind, "created").Inc()
		created++
	}
	log.Info().Int("created", created).Int("total", len(dms)).Msg("Migrated direct chats")
}

// kickImportedUsers removes every migrated user from every non-DM room.
func (m *Migrator) kickImportedUsers(ctx context.Context) {
	users := m.identities.UserIDs()
	kicked := 0
	for _, room := range m.identities.Rooms() {
		for _, userID := range users {
			if err := m.api.KickUser(ctx, room.RoomID, userID, "Slack migration finished"); err != nil {
				LogRemoteError(m.log.Debug(), err).
					Stringer("room_id", room.RoomID).
					Stringer("user_id", userID).
					Msg("Failed to kick user")
				continue
			}
			kicked++
		}
	}
	m.log.Info().Int("kicked", kicked).Msg("Removed migrated users from rooms")
}
