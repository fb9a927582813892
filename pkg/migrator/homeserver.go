// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// MatrixAPI is the part of the homeserver the migration talks to. Calls
// acting as a migrated user go through the application service.
type MatrixAPI interface {
	// RegisterUser creates or updates an account through the admin API.
	RegisterUser(ctx context.Context, userID id.UserID, displayName, password string) error
	CreateRoom(ctx context.Context, creator id.UserID, req *mautrix.ReqCreateRoom) (id.RoomID, error)
	JoinRoom(ctx context.Context, userID id.UserID, roomID id.RoomID) error
	KickUser(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error
	// SendEvent sends an event as sender with the given transaction ID and
	// origin timestamp in milliseconds.
	SendEvent(ctx context.Context, roomID id.RoomID, sender id.UserID, txnID string, ts int64, evtType event.Type, content any) (id.EventID, error)
	UploadMedia(ctx context.Context, sender id.UserID, data []byte, fileName, mimeType string) (id.ContentURIString, error)
	// MaxUploadSize returns the homeserver upload limit in bytes, 0 if unknown.
	MaxUploadSize(ctx context.Context) (int64, error)
}

// RemoteError is a failed homeserver call with the error details the
// homeserver returned, when it returned any.
type RemoteError struct {
	Op         string
	StatusCode int
	ErrCode    string
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.ErrCode != "":
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Op, e.ErrCode, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// LogRemoteError adds the fields of a RemoteError to a log event.
func LogRemoteError(evt *zerolog.Event, err error) *zerolog.Event {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		evt = evt.Int("status", remoteErr.StatusCode)
		if remoteErr.ErrCode != "" {
			evt = evt.Str("errcode", remoteErr.ErrCode).Str("remote_error", remoteErr.Message)
		}
	}
	return evt.Err(err)
}

func wrapRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	remoteErr := &RemoteError{Op: op, Err: err}
	var httpErr mautrix.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Response != nil {
			remoteErr.StatusCode = httpErr.Response.StatusCode
		}
		if httpErr.RespError != nil {
			remoteErr.ErrCode = httpErr.RespError.ErrCode
			remoteErr.Message = httpErr.RespError.Err
		}
	}
	return remoteErr
}

// HomeserverClient implements MatrixAPI against a Synapse homeserver.
type HomeserverClient struct {
	homeserver string
	asToken    string
	log        zerolog.Logger
	limiter    *rate.Limiter

	admin   *mautrix.Client
	adminID id.UserID

	clientsLock sync.Mutex
	clients     map[id.UserID]*mautrix.Client
}

var _ MatrixAPI = (*HomeserverClient)(nil)

// NewHomeserverClient creates a client for the configured homeserver. Until
// Login is called, admin calls use the application service token.
func NewHomeserverClient(cfg *Config, log zerolog.Logger) (*HomeserverClient, error) {
	admin, err := mautrix.NewClient(cfg.Homeserver, "", cfg.ASToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create homeserver client: %w", err)
	}
	log = log.With().Str("component", "homeserver").Logger()
	admin.Log = log
	hc := &HomeserverClient{
		homeserver: cfg.Homeserver,
		asToken:    cfg.ASToken,
		log:        log,
		admin:      admin,
		clients:    make(map[id.UserID]*mautrix.Client),
	}
	if cfg.RequestsPerSecond > 0 {
		hc.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond)
	}
	return hc, nil
}

// Login logs in the homeserver admin with a password. The resulting token
// is used for account creation and kicks.
func (c *HomeserverClient) Login(ctx context.Context, user, password string) (id.UserID, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.admin.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: user,
		},
		Password:                 password,
		InitialDeviceDisplayName: "slack2matrix",
		StoreCredentials:         true,
	})
	if err != nil {
		return "", wrapRemote("login", err)
	}
	c.adminID = resp.UserID
	c.log.Info().Stringer("user_id", resp.UserID).Msg("Logged in as homeserver admin")
	return resp.UserID, nil
}

// AdminID returns the logged-in admin, empty before Login.
func (c *HomeserverClient) AdminID() id.UserID {
	return c.adminID
}

func (c *HomeserverClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// clientFor returns the client acting as userID. The admin gets the admin
// client; everyone else is puppeted through the application service.
func (c *HomeserverClient) clientFor(userID id.UserID) (*mautrix.Client, error) {
	if userID == "" || userID == c.adminID {
		return c.admin, nil
	}
	c.clientsLock.Lock()
	defer c.clientsLock.Unlock()
	if cli, ok := c.clients[userID]; ok {
		return cli, nil
	}
	cli, err := mautrix.NewClient(c.homeserver, userID, c.asToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", userID, err)
	}
	cli.SetAppServiceUserID = true
	cli.Log = c.log.With().Stringer("as_user", userID).Logger()
	c.clients[userID] = cli
	return cli, nil
}

type reqAdminUser struct {
	Password    string `json:"password,omitempty"`
	Displayname string `json:"displayname,omitempty"`
	Admin       bool   `json:"admin"`
	Deactivated bool   `json:"deactivated"`
}

func (c *HomeserverClient) RegisterUser(ctx context.Context, userID id.UserID, displayName, password string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	url := c.admin.BuildURL(mautrix.SynapseAdminURLPath{"v2", "users", string(userID)})
	_, err := c.admin.MakeRequest(ctx, http.MethodPut, url, &reqAdminUser{
		Password:    password,
		Displayname: displayName,
	}, nil)
	return wrapRemote("register user", err)
}

func (c *HomeserverClient) CreateRoom(ctx context.Context, creator id.UserID, req *mautrix.ReqCreateRoom) (id.RoomID, error) {
	cli, err := c.clientFor(creator)
	if err != nil {
		return "", err
	}
	if err = c.wait(ctx); err != nil {
		return "", err
	}
	resp, err := cli.CreateRoom(ctx, req)
	if err != nil {
		return "", wrapRemote("create room", err)
	}
	return resp.RoomID, nil
}

func (c *HomeserverClient) JoinRoom(ctx context.Context, userID id.UserID, roomID id.RoomID) error {
	cli, err := c.clientFor(userID)
	if err != nil {
		return err
	}
	if err = c.wait(ctx); err != nil {
		return err
	}
	_, err = cli.JoinRoomByID(ctx, roomID)
	return wrapRemote("join room", err)
}

func (c *HomeserverClient) KickUser(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.admin.KickUser(ctx, roomID, &mautrix.ReqKickUser{UserID: userID, Reason: reason})
	return wrapRemote("kick user", err)
}

func (c *HomeserverClient) SendEvent(ctx context.Context, roomID id.RoomID, sender id.UserID, txnID string, ts int64, evtType event.Type, content any) (id.EventID, error) {
	cli, err := c.clientFor(sender)
	if err != nil {
		return "", err
	}
	if err = c.wait(ctx); err != nil {
		return "", err
	}
	resp, err := cli.SendMessageEvent(ctx, roomID, evtType, content, mautrix.ReqSendEvent{
		TransactionID: txnID,
		Timestamp:     ts,
	})
	if err != nil {
		return "", wrapRemote("send event", err)
	}
	return resp.EventID, nil
}

func (c *HomeserverClient) UploadMedia(ctx context.Context, sender id.UserID, data []byte, fileName, mimeType string) (id.ContentURIString, error) {
	cli, err := c.clientFor(sender)
	if err != nil {
		return "", err
	}
	if err = c.wait(ctx); err != nil {
		return "", err
	}
	resp, err := cli.UploadBytesWithName(ctx, data, mimeType, fileName)
	if err != nil {
		return "", wrapRemote("upload media", err)
	}
	return resp.ContentURI.CUString(), nil
}

func (c *HomeserverClient) MaxUploadSize(ctx context.Context) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	resp, err := c.admin.GetMediaConfig(ctx)
	if err != nil {
		return 0, wrapRemote("get media config", err)
	}
	return resp.UploadSize, nil
}
