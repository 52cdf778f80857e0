// Package status tracks the execution state of each displayed operation.
package status

import (
	"fmt"
	"sync"
)

type Status string

const (
	Pending   Status = "pending"
	Executing Status = "executing"
	Success   Status = "success"
	Error     Status = "error"
)

// Key identifies one operation card: the owning message and its position.
type Key struct {
	MessageID string
	Index     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s_%d", k.MessageID, k.Index)
}

type entry struct {
	status Status
	err    string
}

// Tracker owns the per-operation status map for one session.
type Tracker struct {
	mu      sync.RWMutex
	entries map[Key]entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[Key]entry)}
}

// MarkExecuting moves key to executing. It returns false, leaving the entry
// untouched, when key is already executing.
func (t *Tracker) MarkExecuting(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[key].status == Executing {
		return false
	}
	t.entries[key] = entry{status: Executing}
	return true
}

// MarkSuccess completes an executing key. Keys in any other state are ignored.
func (t *Tracker) MarkSuccess(key Key) bool {
	return t.finish(key, entry{status: Success})
}

// MarkError fails an executing key with msg. Keys in any other state are ignored.
func (t *Tracker) MarkError(key Key, msg string) bool {
	return t.finish(key, entry{status: Error, err: msg})
}

func (t *Tracker) finish(key Key, e entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[key].status != Executing {
		return false
	}
	t.entries[key] = e
	return true
}

// StatusOf returns the status for key, Pending if it never ran.
func (t *Tracker) StatusOf(key Key) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[key]; ok {
		return e.status
	}
	return Pending
}

// ErrorOf returns the failure message recorded for key.
func (t *Tracker) ErrorOf(key Key) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[key].err
}

// Reset drops every entry. Called on session teardown.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[Key]entry)
}
