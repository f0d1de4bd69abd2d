package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"caronachat/models"
)

// Store is the process-wide owner of all chat state the UI reads: messages
// keyed by conversation, unread counters, conversation summaries, and a
// mirror of the transport's connected flag. It performs no I/O.
type Store struct {
	mu            sync.RWMutex
	messages      map[int64][]models.Message
	conversations []models.Conversation
	unread        map[int64]int
	connected     bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		messages: make(map[int64][]models.Message),
		unread:   make(map[int64]int),
	}
}

// AddMessage appends msg to its conversation's list, filling a fallback id
// and timestamp when absent, and refreshes the conversation summary. The
// list stays sorted by timestamp ascending regardless of insertion order.
func (s *Store) AddMessage(msg models.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.messages[msg.ConversationID], msg)
	sortMessages(list)
	s.messages[msg.ConversationID] = list
	s.touchConversationLocked(msg)
}

// GetMessages returns the ordered message list for a conversation. Unknown
// ids yield an empty list, never an error.
func (s *Store) GetMessages(conversationID int64) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.messages[conversationID]
	out := make([]models.Message, len(list))
	copy(out, list)
	return out
}

// SetMessages bulk-replaces a conversation's message list, used when
// loading history. The list is sorted on insert.
func (s *Store) SetMessages(conversationID int64, list []models.Message) {
	copied := make([]models.Message, len(list))
	copy(copied, list)
	sortMessages(copied)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[conversationID] = copied
}

// SetConversations bulk-replaces the summary list and seeds the unread
// counters from it.
func (s *Store) SetConversations(list []models.Conversation) {
	copied := make([]models.Conversation, len(list))
	copy(copied, list)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = copied
	for _, c := range copied {
		if c.UnreadCount > 0 {
			s.unread[c.ID] = c.UnreadCount
		}
	}
	s.sortConversationsLocked()
}

// Conversations returns the summary list, most recent last message first,
// with current unread counts filled in.
func (s *Store) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	for i := range out {
		out[i].UnreadCount = s.unread[out[i].ID]
	}
	return out
}

// SetParticipant records the other party's display name on a conversation
// summary, creating the summary if needed.
func (s *Store) SetParticipant(conversationID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations[i].Participant = name
			return
		}
	}
	s.conversations = append(s.conversations, models.Conversation{
		ID:          conversationID,
		Participant: name,
	})
	s.sortConversationsLocked()
}

// MarkAsRead zeroes the unread counter for a conversation.
func (s *Store) MarkAsRead(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unread, conversationID)
}

// IncrementUnread bumps the unread counter for a conversation by one.
func (s *Store) IncrementUnread(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[conversationID]++
}

// UnreadCount returns the unread counter for a conversation, zero when the
// id is unknown.
func (s *Store) UnreadCount(conversationID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[conversationID]
}

// SetConnected mirrors the connection manager's state for UI consumption.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// IsConnected reports the mirrored connection state.
func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// ClearAll resets every field to empty. Invoked on logout.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make(map[int64][]models.Message)
	s.conversations = nil
	s.unread = make(map[int64]int)
	s.connected = false
}

// touchConversationLocked upserts the summary for the most recently
// appended message. Callers hold s.mu.
func (s *Store) touchConversationLocked(msg models.Message) {
	for i := range s.conversations {
		if s.conversations[i].ID == msg.ConversationID {
			s.conversations[i].LastBody = msg.Body
			s.conversations[i].LastAt = msg.Timestamp
			s.sortConversationsLocked()
			return
		}
	}
	s.conversations = append(s.conversations, models.Conversation{
		ID:       msg.ConversationID,
		LastBody: msg.Body,
		LastAt:   msg.Timestamp,
	})
	s.sortConversationsLocked()
}

func (s *Store) sortConversationsLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastAt.After(s.conversations[j].LastAt)
	})
}

func sortMessages(list []models.Message) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.Before(list[j].Timestamp)
	})
}
