// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// sentEvent is one SendEvent call captured by recordingAPI.
type sentEvent struct {
	RoomID  id.RoomID
	Sender  id.UserID
	TxnID   string
	TS      int64
	Type    event.Type
	Content any
	EventID id.EventID
}

// recordingAPI is an in-memory MatrixAPI that records every call.
type recordingAPI struct {
	mu       sync.Mutex
	users    []id.UserID
	rooms    []*mautrix.ReqCreateRoom
	creators []id.UserID
	joins    []string
	kicks    []string
	events   []sentEvent
	uploads  []string
	nextID   int

	// failTxn makes SendEvent fail for the given transaction IDs.
	failTxn map[string]bool
	// failUsers makes RegisterUser fail for the given users.
	failUsers map[id.UserID]bool
	// failRooms makes CreateRoom fail for rooms with the given names.
	failRooms map[string]bool
	uploadMax int64
}

func newRecordingAPI() *recordingAPI {
	return &recordingAPI{
		failTxn:   make(map[string]bool),
		failUsers: make(map[id.UserID]bool),
		failRooms: make(map[string]bool),
	}
}

var errFake = &RemoteError{Op: "fake", StatusCode: http.StatusForbidden, ErrCode: "M_FORBIDDEN", Message: "fake error", Err: errors.New("fake error")}

func (r *recordingAPI) RegisterUser(_ context.Context, userID id.UserID, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUsers[userID] {
		return errFake
	}
	r.users = append(r.users, userID)
	return nil
}

func (r *recordingAPI) CreateRoom(_ context.Context, creator id.UserID, req *mautrix.ReqCreateRoom) (id.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRooms[req.Name] {
		return "", errFake
	}
	r.rooms = append(r.rooms, req)
	r.creators = append(r.creators, creator)
	r.nextID++
	return id.RoomID(fmt.Sprintf("!r%d:example.org", r.nextID)), nil
}

func (r *recordingAPI) JoinRoom(_ context.Context, userID id.UserID, roomID id.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins = append(r.joins, userID.String()+" "+roomID.String())
	return nil
}

func (r *recordingAPI) KickUser(_ context.Context, roomID id.RoomID, userID id.UserID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kicks = append(r.kicks, userID.String()+" "+roomID.String())
	return nil
}

func (r *recordingAPI) SendEvent(_ context.Context, roomID id.RoomID, sender id.UserID, txnID string, ts int64, evtType event.Type, content any) (id.EventID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evt := sentEvent{RoomID: roomID, Sender: sender, TxnID: txnID, TS: ts, Type: evtType, Content: content}
	if r.failTxn[txnID] {
		r.events = append(r.events, evt)
		return "", errFake
	}
	r.nextID++
	evt.EventID = id.EventID(fmt.Sprintf("$e%d", r.nextID))
	r.events = append(r.events, evt)
	return evt.EventID, nil
}

func (r *recordingAPI) UploadMedia(_ context.Context, _ id.UserID, _ []byte, fileName, _ string) (id.ContentURIString, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, fileName)
	return id.ContentURIString("mxc://example.org/" + fileName), nil
}

func (r *recordingAPI) MaxUploadSize(_ context.Context) (int64, error) {
	return r.uploadMax, nil
}

func (r *recordingAPI) Events() []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]sentEvent, len(r.events))
	copy(cp, r.events)
	return cp
}

// RoomEvents returns the events sent to one room, in order.
func (r *recordingAPI) RoomEvents(roomID id.RoomID) []sentEvent {
	var out []sentEvent
	for _, evt := range r.Events() {
		if evt.RoomID == roomID {
			out = append(out, evt)
		}
	}
	return out
}

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

// fakeHS is a test helper that wraps an httptest.Server simulating the
// parts of the Matrix client-server and Synapse admin APIs used by the
// migration. It records calls and provides canned responses.
type fakeHS struct {
	Server *httptest.Server

	mu     sync.Mutex
	calls  []endpointCall
	nextID int

	// UploadSize is returned as m.upload.size.
	UploadSize int64
	// FailEndpoints causes paths containing one of the keys to return 403.
	FailEndpoints map[string]bool
}

func newFakeHS() *fakeHS {
	f := &fakeHS{
		UploadSize:    50 * 1024 * 1024,
		FailEndpoints: make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeHS) Close() {
	f.Server.Close()
}

func (f *fakeHS) record(r *http.Request, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body})
}

func (f *fakeHS) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *fakeHS) CallsTo(fragment string) []endpointCall {
	var out []endpointCall
	for _, c := range f.Calls() {
		if strings.Contains(c.Path, fragment) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeHS) id() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeHS) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.record(r, string(body))

	for fragment := range f.FailEndpoints {
		if strings.Contains(r.URL.Path, fragment) {
			writeJSON(w, http.StatusForbidden, map[string]string{"errcode": "M_FORBIDDEN", "error": "fake error"})
			return
		}
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/login"):
		writeJSON(w, http.StatusOK, map[string]string{
			"user_id":      "@admin:example.org",
			"access_token": "admin_token",
			"device_id":    "DEVICE",
		})
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/_synapse/admin/v2/users/"):
		writeJSON(w, http.StatusOK, map[string]any{"name": strings.TrimPrefix(path, "/_synapse/admin/v2/users/")})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/createRoom"):
		writeJSON(w, http.StatusOK, map[string]string{"room_id": fmt.Sprintf("!r%d:example.org", f.id())})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/join"):
		parts := strings.Split(path, "/")
		writeJSON(w, http.StatusOK, map[string]string{"room_id": parts[len(parts)-2]})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/kick"):
		writeJSON(w, http.StatusOK, map[string]any{})
	case r.Method == http.MethodPut && strings.Contains(path, "/send/"):
		writeJSON(w, http.StatusOK, map[string]string{"event_id": fmt.Sprintf("$e%d", f.id())})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/upload"):
		writeJSON(w, http.StatusOK, map[string]string{"content_uri": fmt.Sprintf("mxc://example.org/m%d", f.id())})
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/config"):
		writeJSON(w, http.StatusOK, map[string]int64{"m.upload.size": f.UploadSize})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"errcode": "M_UNRECOGNIZED", "error": "unknown endpoint"})
	}
}

// testConfig returns a validated config pointing at homeserver.
func testConfig(t *testing.T, homeserver string) *Config {
	t.Helper()
	cfg := &Config{
		Archive:             filepath.Join(t.TempDir(), "export.zip"),
		Homeserver:          homeserver,
		Domain:              "example.org",
		ASToken:             "as_token",
		SkipArchived:        true,
		CreateAsAdmin:       true,
		FederateRooms:       true,
		ThreadPolicy:        ThreadPolicyChain,
		DisplaynameTemplate: "{{if .RealName}}{{.RealName}}{{else}}{{.Name}}{{end}}",
		MappingFile:         filepath.Join(t.TempDir(), "luts.yaml"),
		RoomWorkers:         1,
		DeferredLimit:       100,
	}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	return cfg
}

// writeArchive writes a Slack export to cfg.Archive.
func writeArchive(t *testing.T, cfg *Config, files map[string]any) {
	t.Helper()
	if err := archive.WriteExport(cfg.Archive, files); err != nil {
		t.Fatalf("WriteExport: %v", err)
	}
}

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t))
}
