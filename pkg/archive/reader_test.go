// Copyright 2024-2026 Aiku AI

package archive

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestExport(t *testing.T, files map[string]any) *Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, WriteExport(path, files))
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestReader_Listings(t *testing.T) {
	t.Parallel()
	r := writeTestExport(t, map[string]any{
		UsersFile: []User{
			{ID: "U1", Name: "alice", Profile: Profile{RealName: "Alice A", Email: "alice@example.com"}},
			{ID: "B1", Name: "robot", IsBot: true},
		},
		ChannelsFile: []Channel{
			{ID: "C1", Name: "general", Creator: "U1", Members: []string{"U1"}, Topic: TextValue{Value: "hello"}},
		},
		DMsFile: []DM{{ID: "D1", User: "U1", Members: []string{"U1", "U2"}}},
	})

	assert.True(t, r.Has(UsersFile))
	assert.True(t, r.Has(ChannelsFile))
	assert.False(t, r.Has(GroupsFile))

	users, err := r.Users()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice A", users[0].Profile.RealName)
	assert.True(t, users[1].IsBot)

	channels, err := r.Channels()
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "hello", channels[0].Topic.Value)

	dms, err := r.DMs()
	require.NoError(t, err)
	require.Len(t, dms, 1)
	assert.Equal(t, []string{"U1", "U2"}, dms[0].Members)
}

func TestReader_MissingListing(t *testing.T) {
	t.Parallel()
	r := writeTestExport(t, map[string]any{UsersFile: []User{}})

	_, err := r.Groups()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingEntry))
}

func TestReader_ListFilesSorted(t *testing.T) {
	t.Parallel()
	r := writeTestExport(t, map[string]any{
		"general/2020-01-03.json":    []Message{},
		"general/2020-01-01.json":    []Message{},
		"general/2020-01-02.json":    []Message{},
		"generalist/2020-01-01.json": []Message{},
		"random/2020-01-01.json":     []Message{},
	})

	files := r.ListFiles("general")
	assert.Equal(t, []string{
		"general/2020-01-01.json",
		"general/2020-01-02.json",
		"general/2020-01-03.json",
	}, files)
	assert.Empty(t, r.ListFiles("nope"))
}

func TestReader_Messages(t *testing.T) {
	t.Parallel()
	raw := []byte(`[
		{"type":"message","user":"U1","text":"root","ts":"1.000100","thread_ts":"1.000100",
		 "replies":[{"user":"U2","ts":"2.000100"}],
		 "reactions":[{"name":"+1","users":["U2","U3"],"count":2}]},
		{"type":"message","user":"U2","text":"reply","ts":"2.000100","thread_ts":"1.000100","parent_user_id":"U1"},
		{"type":"message","subtype":"channel_join","user":"U3","text":"joined","ts":"3.000100"}
	]`)
	r := writeTestExport(t, map[string]any{"general/2020-01-01.json": raw})

	msgs, err := r.Messages("general/2020-01-01.json")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.True(t, msgs[0].IsThreadRoot())
	assert.False(t, msgs[0].IsThreadReply())
	assert.Equal(t, []string{"U2", "U3"}, msgs[0].Reactions[0].Users)

	assert.True(t, msgs[1].IsThreadReply())
	assert.Equal(t, "U1", msgs[1].ParentUserID)

	assert.Equal(t, "channel_join", msgs[2].Subtype)
}

func TestMessage_SlackbotReplyIsNotThreadReply(t *testing.T) {
	t.Parallel()
	msg := Message{User: SlackbotID, ThreadTS: "1.0", ParentUserID: "U1"}
	assert.False(t, msg.IsThreadReply())
}

func TestReader_MalformedFile(t *testing.T) {
	t.Parallel()
	r := writeTestExport(t, map[string]any{"general/2020-01-01.json": []byte(`{not json`)})

	_, err := r.Messages("general/2020-01-01.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestReader_ListingsReturnDecodedSlices(t *testing.T) {
	t.Parallel()
	r := writeTestExport(t, map[string]any{
		GroupsFile: []Channel{{ID: "G1", Name: "secret"}, {ID: "G2", Name: "hidden"}},
		MPIMsFile:  []DM{{ID: "M1", Name: "mpdm-a--b-1", Members: []string{"U1", "U2"}}},
		"broken/2020-01-01.json": []byte(`[{"ts": "1.0"}, {"ts": 2}]`),
	})

	groups, err := r.Groups()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "hidden", groups[1].Name)

	mpims, err := r.MPIMs()
	require.NoError(t, err)
	require.Len(t, mpims, 1)
	assert.Equal(t, "mpdm-a--b-1", mpims[0].Name)

	messages, err := r.Messages("broken/2020-01-01.json")
	require.Error(t, err)
	assert.Nil(t, messages)
}
