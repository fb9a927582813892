// Copyright 2024-2026 Aiku AI

package migrator

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"
)

// UserRecord is a migrated Slack user. Password is the generated account
// password, kept so operators can hand out credentials.
type UserRecord struct {
	UserID      id.UserID `yaml:"user_id"`
	DisplayName string    `yaml:"display_name"`
	Name        string    `yaml:"name,omitempty"`
	RealName    string    `yaml:"real_name,omitempty"`
	Email       string    `yaml:"email,omitempty"`
	Password    string    `yaml:"password,omitempty"`
}

// RoomRecord is a migrated channel, group, DM or MPIM. Name is the archive
// folder holding its messages.
type RoomRecord struct {
	RoomID id.RoomID `yaml:"room_id"`
	Name   string    `yaml:"name"`
}

// RoomMapping is a RoomRecord together with its Slack conversation ID.
type RoomMapping struct {
	SourceID string
	RoomRecord
}

// mappingFile is the on-disk form of the identity mapper.
type mappingFile struct {
	Users map[string]UserRecord `yaml:"users"`
	Rooms map[string]RoomRecord `yaml:"rooms"`
	DMs   map[string]RoomRecord `yaml:"dms"`
}

// IdentityMapper maps Slack users and conversations to Matrix users and
// rooms. It is the only writer of those mappings; replay only reads them.
type IdentityMapper struct {
	mu    sync.RWMutex
	users map[string]UserRecord
	names map[id.UserID]string
	rooms map[string]RoomRecord
	dms   map[string]RoomRecord

	usersLoaded bool
	roomsLoaded bool
	dmsLoaded   bool
}

func NewIdentityMapper() *IdentityMapper {
	return &IdentityMapper{
		users: make(map[string]UserRecord),
		names: make(map[id.UserID]string),
		rooms: make(map[string]RoomRecord),
		dms:   make(map[string]RoomRecord),
	}
}

// RegisterUser adds a user mapping. It returns false and changes nothing if
// sourceID is already mapped.
func (m *IdentityMapper) RegisterUser(sourceID string, rec UserRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[sourceID]; exists {
		return false
	}
	m.users[sourceID] = rec
	m.names[rec.UserID] = rec.DisplayName
	return true
}

// ResolveUser returns the Matrix user of a Slack user ID.
func (m *IdentityMapper) ResolveUser(sourceID string) (id.UserID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[sourceID]
	return rec.UserID, ok
}

func (m *IdentityMapper) User(sourceID string) (UserRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[sourceID]
	return rec, ok
}

// DisplayName returns the cached display name of a migrated Matrix user.
func (m *IdentityMapper) DisplayName(userID id.UserID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.names[userID]
	return name, ok
}

// UserIDs returns every migrated Matrix user, sorted.
func (m *IdentityMapper) UserIDs() []id.UserID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]id.UserID, 0, len(m.users))
	for _, rec := range m.users {
		ids = append(ids, rec.UserID)
	}
	slices.Sort(ids)
	return ids
}

// RegisterRoom adds a channel or group mapping. It returns false if sourceID
// is already mapped.
func (m *IdentityMapper) RegisterRoom(sourceID string, rec RoomRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rooms[sourceID]; exists {
		return false
	}
	m.rooms[sourceID] = rec
	return true
}

// RegisterDM adds a DM or MPIM mapping. It returns false if sourceID is
// already mapped.
func (m *IdentityMapper) RegisterDM(sourceID string, rec RoomRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.dms[sourceID]; exists {
		return false
	}
	m.dms[sourceID] = rec
	return true
}

func (m *IdentityMapper) ResolveRoom(sourceID string) (id.RoomID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.rooms[sourceID]; ok {
		return rec.RoomID, true
	}
	rec, ok := m.dms[sourceID]
	return rec.RoomID, ok
}

// Rooms returns the channel and group mappings sorted by name.
func (m *IdentityMapper) Rooms() []RoomMapping {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedMappings(m.rooms)
}

// DMs returns the DM and MPIM mappings sorted by name.
func (m *IdentityMapper) DMs() []RoomMapping {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedMappings(m.dms)
}

func sortedMappings(src map[string]RoomRecord) []RoomMapping {
	out := make([]RoomMapping, 0, len(src))
	for sourceID, rec := range src {
		out = append(out, RoomMapping{SourceID: sourceID, RoomRecord: rec})
	}
	slices.SortFunc(out, func(a, b RoomMapping) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.SourceID, b.SourceID))
	})
	return out
}

// UsersLoaded reports whether user mappings came from a mapping file.
func (m *IdentityMapper) UsersLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usersLoaded
}

// RoomsLoaded reports whether channel mappings came from a mapping file.
func (m *IdentityMapper) RoomsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roomsLoaded
}

// DMsLoaded reports whether DM mappings came from a mapping file.
func (m *IdentityMapper) DMsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dmsLoaded
}

// Load reads a mapping file written by Save. A missing file is not an error
// and returns false. Every category present in the file is marked as loaded.
func (m *IdentityMapper) Load(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to read mapping file: %w", err)
	}
	var file mappingFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return false, fmt.Errorf("failed to parse mapping file: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if file.Users != nil {
		m.usersLoaded = true
		for sourceID, rec := range file.Users {
			m.users[sourceID] = rec
			m.names[rec.UserID] = rec.DisplayName
		}
	}
	if file.Rooms != nil {
		m.roomsLoaded = true
		for sourceID, rec := range file.Rooms {
			m.rooms[sourceID] = rec
		}
	}
	if file.DMs != nil {
		m.dmsLoaded = true
		for sourceID, rec := range file.DMs {
			m.dms[sourceID] = rec
		}
	}
	return true, nil
}

// Save writes every mapping to path. The file is replaced atomically and is
// only readable by its owner since it holds account passwords.
func (m *IdentityMapper) Save(path string) error {
	m.mu.RLock()
	data, err := yaml.Marshal(&mappingFile{Users: m.users, Rooms: m.rooms, DMs: m.dms})
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode mapping file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".mapping-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create mapping file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace mapping file: %w", err)
	}
	return nil
}
