// Conversation state management.
//
// Information Hiding:
// - Conversation storage and eviction hidden from the orchestrator loop
// - Each conversation owns its own turn lock; history is append-only and
//   handed out only as snapshot copies

package agent

import (
	"sync"
	"time"

	"github.com/richinex/curator/llm"
)

// conversation holds one append-only message log. turnMu serializes
// turns: a conversation processes at most one turn at a time.
type conversation struct {
	turnMu   sync.Mutex
	messages []llm.ChatMessage

	// lastUsed and active are guarded by the owning set's mu,
	// never by turnMu.
	lastUsed time.Time
	active   int
}

// conversationSet maps conversation ids to their state. Conversations
// are created on first use and evicted after sitting idle past the TTL;
// the sweep runs opportunistically on access.
type conversationSet struct {
	mu         sync.Mutex
	byID       map[string]*conversation
	ttl        time.Duration
	maxHistory int
	now        func() time.Time
}

func newConversationSet(ttl time.Duration, maxHistory int) *conversationSet {
	return &conversationSet{
		byID:       make(map[string]*conversation),
		ttl:        ttl,
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// acquire returns the conversation for id, creating it if absent, and
// marks a turn in flight so a concurrent sweep cannot evict it.
// Callers must pair every acquire with a release.
func (s *conversationSet) acquire(id string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	conv, ok := s.byID[id]
	if !ok {
		conv = &conversation{}
		s.byID[id] = conv
	}
	conv.active++
	conv.lastUsed = s.now()
	return conv
}

// release ends a turn and restarts the idle clock.
func (s *conversationSet) release(conv *conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv.active--
	conv.lastUsed = s.now()
}

// sweepLocked evicts conversations idle past the TTL, skipping any
// with a turn in flight. Caller holds mu.
func (s *conversationSet) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, conv := range s.byID {
		if conv.active == 0 && conv.lastUsed.Before(cutoff) {
			delete(s.byID, id)
		}
	}
}

// clear drops a conversation's history without evicting the conversation.
// turnMu is taken outside mu so a blocked in-flight turn cannot stall
// the whole set.
func (s *conversationSet) clear(id string) {
	s.mu.Lock()
	conv, ok := s.byID[id]
	if ok {
		conv.lastUsed = s.now()
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	conv.turnMu.Lock()
	conv.messages = nil
	conv.turnMu.Unlock()
}

// snapshot returns a copy of a conversation's history. A missing id
// yields an empty snapshot, matching create-on-first-use semantics.
func (s *conversationSet) snapshot(id string) []llm.ChatMessage {
	s.mu.Lock()
	conv, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	conv.turnMu.Lock()
	defer conv.turnMu.Unlock()
	out := make([]llm.ChatMessage, len(conv.messages))
	copy(out, conv.messages)
	return out
}

// trim drops the oldest messages beyond the history cap. Tool messages
// whose parent assistant message was dropped are removed too, so the
// log never starts with an orphaned tool result.
func (c *conversation) trim(maxHistory int) {
	if maxHistory <= 0 || len(c.messages) <= maxHistory {
		return
	}
	messages := c.messages[len(c.messages)-maxHistory:]
	for len(messages) > 0 && messages[0].Role == llm.RoleTool {
		messages = messages[1:]
	}
	c.messages = messages
}
