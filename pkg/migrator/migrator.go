// Copyright 2024-2026 Aiku AI

package migrator

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"maunium.net/go/mautrix/id"
)

// State is the phase a migration run is in.
type State int

const (
	StateInit State = iota
	StateIdentityMigrated
	StateRoomsMigrated
	StateDMsMigrated
	StateReplayingRooms
	StateReplayingDMs
	StatePostCleanup
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIdentityMigrated:
		return "identity_migrated"
	case StateRoomsMigrated:
		return "rooms_migrated"
	case StateDMsMigrated:
		return "dms_migrated"
	case StateReplayingRooms:
		return "replaying_rooms"
	case StateReplayingDMs:
		return "replaying_dms"
	case StatePostCleanup:
		return "post_cleanup"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Migrator runs one migration of a Slack export into a homeserver.
type Migrator struct {
	cfg        *Config
	api        MatrixAPI
	archive    *archive.Reader
	identities *IdentityMapper
	files      *FileProcessor
	log        zerolog.Logger

	stateLock sync.RWMutex
	state     State

	// AdminID creates rooms when the Slack creator is not used.
	AdminID id.UserID
	// HTTPClient downloads shared files. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// New creates a migrator reading from reader and writing through api.
func New(cfg *Config, api MatrixAPI, reader *archive.Reader, log zerolog.Logger) *Migrator {
	return &Migrator{
		cfg:        cfg,
		api:        api,
		archive:    reader,
		identities: NewIdentityMapper(),
		log:        log,
		AdminID:    adminUserID(cfg),
	}
}

func adminUserID(cfg *Config) id.UserID {
	if strings.HasPrefix(cfg.AdminUser, "@") {
		return id.UserID(cfg.AdminUser)
	}
	return MakeUserID(cmp.Or(cfg.AdminUser, "admin"), cfg.Domain)
}

// Identities returns the identity and room mappings of the run.
func (m *Migrator) Identities() *IdentityMapper {
	return m.identities
}

// State returns the current phase.
func (m *Migrator) State() State {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()
	return m.state
}

func (m *Migrator) setState(state State) {
	m.stateLock.Lock()
	m.state = state
	m.stateLock.Unlock()
	m.log.Debug().Stringer("state", state).Msg("Migration state changed")
}

// Run executes every phase in order. Only setup problems are returned as
// errors; failures on individual users, rooms or messages are logged and
// the run continues.
func (m *Migrator) Run(ctx context.Context) error {
	for _, name := range []string{archive.UsersFile, archive.ChannelsFile} {
		if !m.archive.Has(name) {
			return fmt.Errorf("%s: %w", name, archive.ErrMissingEntry)
		}
	}
	loaded, err := m.identities.Load(m.cfg.MappingFile)
	if err != nil {
		return fmt.Errorf("failed to load mapping file: %w", err)
	} else if loaded {
		m.log.Info().Str("path", m.cfg.MappingFile).Msg("Loaded existing mappings")
	}

	if !m.cfg.SkipFiles {
		maxSize, err := m.api.MaxUploadSize(ctx)
		if err != nil {
			LogRemoteError(m.log.Warn(), err).Msg("Failed to fetch media config, not enforcing upload limit")
			maxSize = 0
		}
		m.files = NewFileProcessor(m.api, m.HTTPClient, maxSize, m.cfg.DryRun, m.log)
	}

	if m.identities.UsersLoaded() {
		m.log.Info().Msg("Users already migrated, skipping")
	} else {
		users, err := m.archive.Users()
		if err != nil {
			return fmt.Errorf("failed to read users: %w", err)
		}
		m.migrateUsers(ctx, users)
	}
	m.setState(StateIdentityMigrated)

	if m.identities.RoomsLoaded() {
		m.log.Info().Msg("Rooms already migrated, skipping")
	} else {
		channels, err := m.archive.Channels()
		if err != nil {
			return fmt.Errorf("failed to read channels: %w", err)
		}
		m.migrateChannels(ctx, channels, kindChannel)
		if groups, ok := optionalListingOf(m, archive.GroupsFile, m.archive.Groups); ok {
			m.migrateChannels(ctx, groups, kindGroup)
		}
	}
	m.setState(StateRoomsMigrated)

	if m.identities.DMsLoaded() {
		m.log.Info().Msg("Direct chats already migrated, skipping")
	} else {
		if dms, ok := optionalListingOf(m, archive.DMsFile, m.archive.DMs); ok {
			m.migrateDMs(ctx, dms, kindDM)
		}
		if mpims, ok := optionalListingOf(m, archive.MPIMsFile, m.archive.MPIMs); ok {
			m.migrateDMs(ctx, mpims, kindMPIM)
		}
	}
	m.setState(StateDMsMigrated)

	allLoaded := m.identities.UsersLoaded() && m.identities.RoomsLoaded() && m.identities.DMsLoaded()
	if m.cfg.DryRun {
		m.log.Info().Msg("Dry run, not writing mapping file")
	} else if !allLoaded {
		if err := m.identities.Save(m.cfg.MappingFile); err != nil {
			return fmt.Errorf("failed to save mapping file: %w", err)
		}
		m.log.Info().Str("path", m.cfg.MappingFile).Msg("Saved mappings")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.setState(StateReplayingRooms)
	if err := m.replayAll(ctx, m.identities.Rooms()); err != nil {
		return err
	}
	m.setState(StateReplayingDMs)
	if err := m.replayAll(ctx, m.identities.DMs()); err != nil {
		return err
	}

	m.setState(StatePostCleanup)
	if m.cfg.KickImportedUsers {
		m.kickImportedUsers(ctx)
	}
	m.setState(StateDone)
	m.log.Info().Msg("Migration finished")
	return nil
}

// optionalListingOf decodes a listing that exports may leave out.
func optionalListingOf[T any](m *Migrator, name string, decode func() ([]T, error)) ([]T, bool) {
	if !m.archive.Has(name) {
		m.log.Debug().Str("file", name).Msg("Listing not present in archive")
		return nil, false
	}
	items, err := decode()
	if err != nil {
		m.log.Err(err).Str("file", name).Msg("Failed to read listing")
		return nil, false
	}
	return items, true
}

// replayAll replays rooms concurrently, bounded by the room worker count.
// Only cancellation stops the replay early.
func (m *Migrator) replayAll(ctx context.Context, rooms []RoomMapping) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(m.cfg.RoomWorkers, 1))
	for _, room := range rooms {
		eg.Go(func() error {
			return m.replayRoom(egCtx, room)
		})
	}
	return eg.Wait()
}
