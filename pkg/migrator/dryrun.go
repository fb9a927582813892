// Copyright 2024-2026 Aiku AI

package migrator

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// DryRunAPI implements MatrixAPI without touching the network. It returns
// synthetic room, event and media IDs so the rest of the migration runs
// exactly as it would against a homeserver.
type DryRunAPI struct {
	domain string

	users  atomic.Int64
	rooms  atomic.Int64
	events atomic.Int64
}

var _ MatrixAPI = (*DryRunAPI)(nil)

func NewDryRunAPI(domain string) *DryRunAPI {
	return &DryRunAPI{domain: domain}
}

func (d *DryRunAPI) RegisterUser(_ context.Context, _ id.UserID, _, _ string) error {
	d.users.Add(1)
	return nil
}

func (d *DryRunAPI) CreateRoom(_ context.Context, _ id.UserID, _ *mautrix.ReqCreateRoom) (id.RoomID, error) {
	d.rooms.Add(1)
	return id.RoomID("!" + uuid.NewString() + ":" + d.domain), nil
}

func (d *DryRunAPI) JoinRoom(_ context.Context, _ id.UserID, _ id.RoomID) error {
	return nil
}

func (d *DryRunAPI) KickUser(_ context.Context, _ id.RoomID, _ id.UserID, _ string) error {
	return nil
}

func (d *DryRunAPI) SendEvent(_ context.Context, _ id.RoomID, _ id.UserID, _ string, _ int64, _ event.Type, _ any) (id.EventID, error) {
	d.events.Add(1)
	return id.EventID("$" + uuid.NewString()), nil
}

func (d *DryRunAPI) UploadMedia(_ context.Context, _ id.UserID, _ []byte, _, _ string) (id.ContentURIString, error) {
	return id.ContentURIString("mxc://" + d.domain + "/" + uuid.NewString()), nil
}

func (d *DryRunAPI) MaxUploadSize(_ context.Context) (int64, error) {
	return 0, nil
}

// Counts returns how many users, rooms and events would have been created.
func (d *DryRunAPI) Counts() (users, rooms, events int64) {
	return d.users.Load(), d.rooms.Load(), d.events.Load()
}
