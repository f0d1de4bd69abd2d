package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"caronachat/api"
	"caronachat/auth"
	"caronachat/database"
	"caronachat/models"
	"caronachat/realtime"
	"caronachat/store"
)

// ErrNotConnected is returned by SendMessage while the transport is down.
// Callers should disable the send affordance whenever the store's connected
// flag is false.
var ErrNotConnected = errors.New("session: not connected")

// Session bridges auth state to the connection manager and is the single
// send/receive entry point UI surfaces use. It owns the optimistic local
// echo on send and the unread bookkeeping on receive.
type Session struct {
	manager *realtime.Manager
	store   *store.Store
	auth    *auth.State
	api     *api.Client
	history *database.History // nil disables the local archive

	mu         sync.Mutex
	active     bool
	activeConv int64
	unsubMsg   func()
	unsubState func()
}

// New wires a session to its collaborators and subscribes it to auth
// changes: login activates the realtime connection, logout tears it down
// and wipes local state.
func New(manager *realtime.Manager, st *store.Store, authState *auth.State, apiClient *api.Client, history *database.History) *Session {
	s := &Session{
		manager: manager,
		store:   st,
		auth:    authState,
		api:     apiClient,
		history: history,
	}
	authState.OnChange(func(authenticated bool) {
		if authenticated {
			s.Activate()
		} else {
			s.Deactivate()
		}
	})
	return s
}

// Activate registers the realtime handlers and connects using the current
// credential. Safe to call redundantly from several mounted surfaces: only
// the first call per authenticated session dials.
func (s *Session) Activate() {
	token := s.auth.Token()
	if token == "" {
		return
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.unsubMsg = s.manager.OnMessage(s.handleFrame)
	s.unsubState = s.manager.OnConnectionChange(s.store.SetConnected)
	s.mu.Unlock()

	s.manager.Connect(token)
}

// Deactivate disconnects the transport and clears all local chat state.
// Invoked on logout; safe to call when already inactive.
func (s *Session) Deactivate() {
	s.mu.Lock()
	s.active = false
	s.activeConv = 0
	unsubMsg, unsubState := s.unsubMsg, s.unsubState
	s.unsubMsg, s.unsubState = nil, nil
	s.mu.Unlock()

	if unsubMsg != nil {
		unsubMsg()
	}
	if unsubState != nil {
		unsubState()
	}
	s.manager.Disconnect()
	s.store.ClearAll()
	if s.history != nil {
		if err := s.history.Clear(); err != nil {
			log.Printf("[session] failed to clear archive: %v", err)
		}
	}
}

// SendMessage transmits body within conversationID and appends an
// optimistic local copy with the current user as sender and a temporary id.
// The copy is never reconciled against the later server echo, so the same
// content can appear twice.
func (s *Session) SendMessage(conversationID int64, receiver *int64, body string) error {
	if !s.manager.IsConnected() {
		return ErrNotConnected
	}

	now := time.Now()
	frame := models.ChatFrame{
		Receiver:       receiver,
		ConversationID: conversationID,
		Data:           now.UTC().Format(time.RFC3339),
		Message:        body,
	}
	if err := s.manager.Send(frame); err != nil {
		return err
	}

	msg := models.Message{
		ID:             "local-" + uuid.NewString(),
		SenderID:       s.auth.UserID(),
		ConversationID: conversationID,
		Body:           body,
		Timestamp:      now,
	}
	if receiver != nil {
		msg.ReceiverID = *receiver
	}
	s.store.AddMessage(msg)
	s.archive(msg)
	return nil
}

// SetActiveConversation records which conversation the user is viewing and
// zeroes its unread counter. Inbound messages for other conversations bump
// their counters instead.
func (s *Session) SetActiveConversation(conversationID int64) {
	s.mu.Lock()
	s.activeConv = conversationID
	s.mu.Unlock()

	if conversationID != 0 {
		s.store.MarkAsRead(conversationID)
	}
}

// ActiveConversation returns the conversation currently in view, zero for
// none.
func (s *Session) ActiveConversation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConv
}

// LoadConversations seeds the store's summary list from the REST API.
func (s *Session) LoadConversations(ctx context.Context) error {
	convs, err := s.api.Conversations(ctx)
	if err != nil {
		return err
	}
	s.store.SetConversations(convs)
	return nil
}

// LoadHistory seeds a conversation's message list from the local archive.
// A nil archive leaves the store untouched.
func (s *Session) LoadHistory(conversationID int64) error {
	if s.history == nil {
		return nil
	}
	msgs, err := s.history.Messages(conversationID)
	if err != nil {
		return err
	}
	s.store.SetMessages(conversationID, msgs)
	return nil
}

// ResolveParticipant looks up the other party of a conversation via the
// REST API and denormalizes the display name into the summary list.
func (s *Session) ResolveParticipant(ctx context.Context, conversationID int64) (models.User, error) {
	user, err := s.api.Participant(ctx, conversationID)
	if err != nil {
		return models.User{}, err
	}
	s.store.SetParticipant(conversationID, user.Username)
	return user, nil
}

// handleFrame routes every parsed inbound envelope. Unknown tags are
// ignored.
func (s *Session) handleFrame(env models.Envelope) {
	switch env.Tipo {
	case models.TipoMensagemRecebida:
		if env.Mensagem == nil {
			log.Printf("[session] %s frame without payload", env.Tipo)
			return
		}
		msg := env.Mensagem.ToMessage()
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
		s.store.AddMessage(msg)
		if s.ActiveConversation() != msg.ConversationID {
			s.store.IncrementUnread(msg.ConversationID)
		}
		s.archive(msg)
	case models.TipoMensagemEnviada:
		// Delivery confirmation; nothing to update locally.
	}
}

func (s *Session) archive(msg models.Message) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(msg); err != nil {
		log.Printf("[session] failed to archive message: %v", err)
	}
}
