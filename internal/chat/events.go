// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"slices"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ollama"
)

// EventType identifies what changed in the store.
type EventType int

const (
	// EventMessageAdded: Message was appended at Index.
	EventMessageAdded EventType = iota
	// EventFragment: Delta was appended to the message at Index.
	EventFragment
	// EventLoadingChanged: the loading flag became Loading.
	EventLoadingChanged
	// EventGenerationDone: the generation writing to Index finished.
	// Err is nil on success; Stats is always set.
	EventGenerationDone
	// EventTitleChanged: the conversation title became Title.
	EventTitleChanged
)

// String returns the event name used in logs.
func (t EventType) String() string {
	switch t {
	case EventMessageAdded:
		return "message_added"
	case EventFragment:
		return "fragment"
	case EventLoadingChanged:
		return "loading_changed"
	case EventGenerationDone:
		return "generation_done"
	case EventTitleChanged:
		return "title_changed"
	default:
		return "unknown"
	}
}

// Event describes a single store change.
type Event struct {
	Type    EventType
	Index   int
	Message model.Message
	Delta   string
	Loading bool
	Title   string
	Stats   *ollama.StreamStats
	Err     error
}

// Subscribe registers fn to be called for every store change, in order,
// on the goroutine that made the change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// emit delivers ev to the current subscribers. Must not be called with
// s.mu held.
func (s *Store) emit(ev Event) {
	s.mu.Lock()
	if len(s.subscribers) == 0 {
		s.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	fns := make([]func(Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.subscribers[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
