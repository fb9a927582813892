// Copyright 2024-2026 Aiku AI

package migrator

import (
	"errors"
	"fmt"

	"maunium.net/go/mautrix/id"
)

// ErrAlreadyRecorded is returned when a natural key is recorded twice.
var ErrAlreadyRecorded = errors.New("natural key already recorded")

// ThreadContext is what a reply needs to quote its thread root.
type ThreadContext struct {
	Body          string
	FormattedBody string
	Sender        id.UserID
	EventID       id.EventID
}

// EventCorrelator maps the natural keys of one room's messages to the Matrix
// events they produced. It is owned by the room's replay and discarded with it.
type EventCorrelator struct {
	events    map[NaturalKey]id.EventID
	threads   map[NaturalKey]ThreadContext
	attempted map[NaturalKey]struct{}
}

func NewEventCorrelator() *EventCorrelator {
	return &EventCorrelator{
		events:    make(map[NaturalKey]id.EventID),
		threads:   make(map[NaturalKey]ThreadContext),
		attempted: make(map[NaturalKey]struct{}),
	}
}

// Record stores the event produced by key. thread is only stored for thread
// roots and may be nil.
func (c *EventCorrelator) Record(key NaturalKey, eventID id.EventID, thread *ThreadContext) error {
	if _, exists := c.events[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRecorded, key)
	}
	c.events[key] = eventID
	c.attempted[key] = struct{}{}
	if thread != nil {
		ctx := *thread
		ctx.EventID = eventID
		c.threads[key] = ctx
	}
	return nil
}

func (c *EventCorrelator) Lookup(key NaturalKey) (id.EventID, bool) {
	evtID, ok := c.events[key]
	return evtID, ok
}

func (c *EventCorrelator) LookupThreadContext(key NaturalKey) (ThreadContext, bool) {
	ctx, ok := c.threads[key]
	return ctx, ok
}

// MarkAttempted notes that the pipeline has finished with key, whether or
// not an event was produced. A parent that was attempted but has no event
// will never get one.
func (c *EventCorrelator) MarkAttempted(key NaturalKey) {
	c.attempted[key] = struct{}{}
}

func (c *EventCorrelator) Attempted(key NaturalKey) bool {
	_, ok := c.attempted[key]
	return ok
}

// Len returns the number of recorded events.
func (c *EventCorrelator) Len() int {
	return len(c.events)
}
