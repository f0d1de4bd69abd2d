package auth

import "sync"

// State holds the client-side view of the authenticated user: bearer token,
// user id, and change listeners. Changes to it are the sole trigger for the
// chat session's connect/disconnect decisions.
type State struct {
	mu        sync.Mutex
	token     string
	userID    int64
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(authenticated bool)
}

// NewState creates an unauthenticated state.
func NewState() *State {
	return &State{}
}

// Login stores the credential and user id, then notifies listeners.
func (s *State) Login(token string, userID int64) {
	s.mu.Lock()
	s.token = token
	s.userID = userID
	subs := s.snapshotLocked()
	s.mu.Unlock()

	for _, l := range subs {
		l.fn(true)
	}
}

// Logout clears the credential and notifies listeners.
func (s *State) Logout() {
	s.mu.Lock()
	s.token = ""
	s.userID = 0
	subs := s.snapshotLocked()
	s.mu.Unlock()

	for _, l := range subs {
		l.fn(false)
	}
}

// IsAuthenticated reports whether a credential is present.
func (s *State) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Token returns the current bearer credential, empty when logged out.
func (s *State) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// UserID returns the current user id, zero when logged out.
func (s *State) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// OnChange registers a listener for login/logout transitions and returns
// its unregister func.
func (s *State) OnChange(fn func(authenticated bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *State) snapshotLocked() []listener {
	subs := make([]listener, len(s.listeners))
	copy(subs, s.listeners)
	return subs
}
