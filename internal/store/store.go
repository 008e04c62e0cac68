// Package store implements the replicated room document: a map of
// last-writer-wins registers plus an append-only chat log. Every peer holds
// a full copy; copies converge by exchanging updates and applying the same
// deterministic merge rules.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"spyroom/internal/domain"
)

// Entry is one last-writer-wins register. A nil Value is a tombstone.
// Merge rule: higher clock wins; equal clocks are resolved by the higher
// actor id, so any two replicas pick the same winner.
type Entry struct {
	Value json.RawMessage `json:"value,omitempty"`
	Clock uint64          `json:"clock"`
	Actor string          `json:"actor"`
}

// ChatRecord wraps a chat message with its replication identity. Records
// are ordered causally by (clock, actor, seq), not by wall clock.
type ChatRecord struct {
	Actor   string             `json:"actor"`
	Seq     uint64             `json:"seq"`
	Clock   uint64             `json:"clock"`
	Message domain.ChatMessage `json:"message"`
}

// Update is the unit of replication: a set of register writes plus zero or
// more chat records. Applying the same update twice is a no-op.
type Update struct {
	Entries map[string]Entry `json:"entries,omitempty"`
	Chat    []ChatRecord     `json:"chat,omitempty"`
}

// Store holds one replica of a room document
type Store struct {
	mu       sync.RWMutex
	actor    string
	clock    uint64
	entries  map[string]Entry
	chat     []ChatRecord
	chatSeq  uint64
	chatSeen map[string]struct{}

	onLocal  []func(Update)
	onChange []func()
}

// New creates an empty replica owned by the given actor id
func New(actor string) *Store {
	return &Store{
		actor:    actor,
		entries:  make(map[string]Entry),
		chatSeen: make(map[string]struct{}),
	}
}

// Actor returns the owning actor id
func (s *Store) Actor() string {
	return s.actor
}

// OnLocalUpdate registers a callback invoked with every locally produced
// update, for broadcasting to remote peers. Remote applies do not trigger
// it, so updates are never echoed back into the mesh.
func (s *Store) OnLocalUpdate(fn func(Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLocal = append(s.onLocal, fn)
}

// OnChange registers a callback invoked after any change, local or remote
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Set writes a register locally and notifies observers
func (s *Store) Set(section, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", section, key, err)
	}
	s.write(section, key, data)
	return nil
}

// Delete tombstones a register locally
func (s *Store) Delete(section, key string) {
	s.write(section, key, nil)
}

func (s *Store) write(section, key string, value json.RawMessage) {
	s.mu.Lock()
	s.clock++
	e := Entry{Value: value, Clock: s.clock, Actor: s.actor}
	s.entries[section+"/"+key] = e
	up := Update{Entries: map[string]Entry{section + "/" + key: e}}
	locals, changed := s.onLocal, s.onChange
	s.mu.Unlock()

	for _, fn := range locals {
		fn(up)
	}
	for _, fn := range changed {
		fn()
	}
}

// Get reads a register into out, returning false for missing or
// tombstoned keys
func (s *Store) Get(section, key string, out any) bool {
	s.mu.RLock()
	e, ok := s.entries[section+"/"+key]
	s.mu.RUnlock()

	if !ok || e.Value == nil {
		return false
	}
	return json.Unmarshal(e.Value, out) == nil
}

// Keys returns the live (non-tombstoned) keys of a section, sorted
func (s *Store) Keys(section string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := section + "/"
	keys := make([]string, 0)
	for k, e := range s.entries {
		if e.Value == nil || len(k) <= len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		keys = append(keys, k[len(prefix):])
	}
	sort.Strings(keys)
	return keys
}

// AppendChat appends a message to the local chat log and notifies observers
func (s *Store) AppendChat(msg domain.ChatMessage) {
	s.mu.Lock()
	s.clock++
	s.chatSeq++
	rec := ChatRecord{Actor: s.actor, Seq: s.chatSeq, Clock: s.clock, Message: msg}
	s.chat = append(s.chat, rec)
	s.chatSeen[chatID(rec)] = struct{}{}
	up := Update{Chat: []ChatRecord{rec}}
	locals, changed := s.onLocal, s.onChange
	s.mu.Unlock()

	for _, fn := range locals {
		fn(up)
	}
	for _, fn := range changed {
		fn()
	}
}

// Chat returns the chat log in causal order
func (s *Store) Chat() []domain.ChatMessage {
	s.mu.RLock()
	records := make([]ChatRecord, len(s.chat))
	copy(records, s.chat)
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].Clock != records[j].Clock {
			return records[i].Clock < records[j].Clock
		}
		if records[i].Actor != records[j].Actor {
			return records[i].Actor < records[j].Actor
		}
		return records[i].Seq < records[j].Seq
	})

	msgs := make([]domain.ChatMessage, len(records))
	for i, r := range records {
		msgs[i] = r.Message
	}
	return msgs
}

// Apply merges a remote update into this replica. Losing writes are
// discarded; applying any update more than once changes nothing.
func (s *Store) Apply(u Update) {
	s.mu.Lock()
	dirty := false

	for k, incoming := range u.Entries {
		if incoming.Clock > s.clock {
			s.clock = incoming.Clock
		}
		existing, ok := s.entries[k]
		if !ok || incoming.Clock > existing.Clock ||
			(incoming.Clock == existing.Clock && incoming.Actor > existing.Actor) {
			s.entries[k] = incoming
			dirty = true
		}
	}

	for _, rec := range u.Chat {
		if rec.Clock > s.clock {
			s.clock = rec.Clock
		}
		if _, seen := s.chatSeen[chatID(rec)]; seen {
			continue
		}
		s.chat = append(s.chat, rec)
		s.chatSeen[chatID(rec)] = struct{}{}
		dirty = true
	}

	changed := s.onChange
	s.mu.Unlock()

	if dirty {
		for _, fn := range changed {
			fn()
		}
	}
}

// Snapshot returns the full replica state as one update, for answering a
// sync request from a newly connected peer
func (s *Store) Snapshot() Update {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make(map[string]Entry, len(s.entries))
	for k, e := range s.entries {
		entries[k] = e
	}
	chat := make([]ChatRecord, len(s.chat))
	copy(chat, s.chat)

	return Update{Entries: entries, Chat: chat}
}

func chatID(r ChatRecord) string {
	return fmt.Sprintf("%s/%d", r.Actor, r.Seq)
}
