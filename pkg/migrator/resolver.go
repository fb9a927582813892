// Copyright 2024-2026 Aiku AI

package migrator

import (
	"github.com/aiku/slack2matrix/pkg/archive"
)

// ThreadPolicy selects how thread replies are linked to earlier messages.
type ThreadPolicy string

const (
	// ThreadPolicyChain links each reply to the reply before it, and the
	// first reply to the thread root.
	ThreadPolicyChain ThreadPolicy = "chain"
	// ThreadPolicyRoot links every reply to the thread root.
	ThreadPolicyRoot ThreadPolicy = "root"
)

func (p ThreadPolicy) Valid() bool {
	return p == ThreadPolicyChain || p == ThreadPolicyRoot
}

// ReferenceResolver holds the reply edges of one room. It is owned by the
// room's replay and discarded with it.
type ReferenceResolver struct {
	policy ThreadPolicy
	edges  map[NaturalKey]NaturalKey
}

func NewReferenceResolver(policy ThreadPolicy) *ReferenceResolver {
	if !policy.Valid() {
		policy = ThreadPolicyChain
	}
	return &ReferenceResolver{
		policy: policy,
		edges:  make(map[NaturalKey]NaturalKey),
	}
}

// ScanThread records reply edges for every entry of root's replies list.
// Messages without replies are ignored. Edges already known are kept, so a
// thread root seen twice does not rewire its replies.
func (r *ReferenceResolver) ScanThread(root archive.Message) int {
	if !root.IsThreadRoot() {
		return 0
	}
	rootKey := MakeNaturalKey(root.User, root.TS)
	prev := rootKey
	added := 0
	for _, reply := range root.Replies {
		child := MakeNaturalKey(reply.User, reply.TS)
		parent := rootKey
		if r.policy == ThreadPolicyChain {
			parent = prev
		}
		if _, exists := r.edges[child]; !exists {
			r.edges[child] = parent
			added++
		}
		prev = child
	}
	return added
}

// EdgeFor returns the parent of child. ok is false when no edge is known
// yet, which means the caller should try again later.
func (r *ReferenceResolver) EdgeFor(child NaturalKey) (parent NaturalKey, ok bool) {
	parent, ok = r.edges[child]
	return
}

// Len returns the number of known edges.
func (r *ReferenceResolver) Len() int {
	return len(r.edges)
}

// DeferredQueue holds messages whose parent could not be resolved on the
// first pass, in encounter order. It is drained exactly once.
type DeferredQueue struct {
	limit   int
	items   []archive.Message
	drained bool
}

// NewDeferredQueue creates a queue holding at most limit messages. A limit
// of zero or less means unbounded.
func NewDeferredQueue(limit int) *DeferredQueue {
	return &DeferredQueue{limit: limit}
}

// Push appends msg. It returns false when the queue is full or was already
// drained; the message is then not retried.
func (q *DeferredQueue) Push(msg archive.Message) bool {
	if q.drained || (q.limit > 0 && len(q.items) >= q.limit) {
		return false
	}
	q.items = append(q.items, msg)
	return true
}

// Drain returns the queued messages and closes the queue.
func (q *DeferredQueue) Drain() []archive.Message {
	items := q.items
	q.items = nil
	q.drained = true
	return items
}

func (q *DeferredQueue) Len() int {
	return len(q.items)
}
