// Copyright 2024-2026 Aiku AI

package migrator

import (
	"testing"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threadRoot() archive.Message {
	return archive.Message{
		Type: "message",
		User: "UR",
		TS:   "100.000000",
		Replies: []archive.Reply{
			{User: "U1", TS: "101.000000"},
			{User: "U2", TS: "102.000000"},
			{User: "U3", TS: "103.000000"},
		},
	}
}

func TestThreadPolicyValid(t *testing.T) {
	t.Parallel()
	assert.True(t, ThreadPolicyChain.Valid())
	assert.True(t, ThreadPolicyRoot.Valid())
	assert.False(t, ThreadPolicy("").Valid())
	assert.False(t, ThreadPolicy("always-root").Valid())
}

func TestReferenceResolver_ChainPolicy(t *testing.T) {
	t.Parallel()
	r := NewReferenceResolver(ThreadPolicyChain)
	require.Equal(t, 3, r.ScanThread(threadRoot()))

	root := MakeNaturalKey("UR", "100.000000")
	r1 := MakeNaturalKey("U1", "101.000000")
	r2 := MakeNaturalKey("U2", "102.000000")
	r3 := MakeNaturalKey("U3", "103.000000")

	for child, want := range map[NaturalKey]NaturalKey{r1: root, r2: r1, r3: r2} {
		got, ok := r.EdgeFor(child)
		require.True(t, ok, "edge for %s", child)
		assert.Equal(t, want, got, "parent of %s", child)
	}
}

func TestReferenceResolver_RootPolicy(t *testing.T) {
	t.Parallel()
	r := NewReferenceResolver(ThreadPolicyRoot)
	r.ScanThread(threadRoot())

	root := MakeNaturalKey("UR", "100.000000")
	for _, reply := range threadRoot().Replies {
		got, ok := r.EdgeFor(MakeNaturalKey(reply.User, reply.TS))
		require.True(t, ok)
		assert.Equal(t, root, got)
	}
}

func TestReferenceResolver_UnknownEdge(t *testing.T) {
	t.Parallel()
	r := NewReferenceResolver(ThreadPolicyChain)
	_, ok := r.EdgeFor(MakeNaturalKey("U1", "101.000000"))
	assert.False(t, ok)
}

func TestReferenceResolver_IgnoresPlainMessages(t *testing.T) {
	t.Parallel()
	r := NewReferenceResolver(ThreadPolicyChain)
	assert.Zero(t, r.ScanThread(archive.Message{User: "U1", TS: "1.0"}))
	assert.Zero(t, r.Len())
}

func TestReferenceResolver_RescanKeepsEdges(t *testing.T) {
	t.Parallel()
	r := NewReferenceResolver(ThreadPolicyChain)
	r.ScanThread(threadRoot())
	assert.Zero(t, r.ScanThread(threadRoot()))
	assert.Equal(t, 3, r.Len())
}

func TestReferenceResolver_InvalidPolicyFallsBackToChain(t *testing.T) {
	t.Parallel()
	r := NewReferenceResolver("bogus")
	r.ScanThread(threadRoot())
	got, ok := r.EdgeFor(MakeNaturalKey("U2", "102.000000"))
	require.True(t, ok)
	assert.Equal(t, MakeNaturalKey("U1", "101.000000"), got)
}

func TestDeferredQueue(t *testing.T) {
	t.Parallel()
	q := NewDeferredQueue(2)
	assert.True(t, q.Push(archive.Message{TS: "1"}))
	assert.True(t, q.Push(archive.Message{TS: "2"}))
	assert.False(t, q.Push(archive.Message{TS: "3"}), "queue over limit")
	assert.Equal(t, 2, q.Len())

	items := q.Drain()
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].TS)
	assert.Equal(t, "2", items[1].TS)

	assert.Zero(t, q.Len())
	assert.False(t, q.Push(archive.Message{TS: "4"}), "push after drain")
	assert.Empty(t, q.Drain())
}

func TestDeferredQueue_Unbounded(t *testing.T) {
	t.Parallel()
	q := NewDeferredQueue(0)
	for i := 0; i < 100; i++ {
		require.True(t, q.Push(archive.Message{}))
	}
	assert.Len(t, q.Drain(), 100)
}
