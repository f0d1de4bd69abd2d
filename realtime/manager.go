package realtime

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"caronachat/models"
)

// ErrNotConnected is returned by Send when no transport is open.
var ErrNotConnected = errors.New("realtime: not connected")

const defaultReconnectDelay = 3 * time.Second

// MessageHandler receives every successfully parsed inbound envelope.
type MessageHandler func(env models.Envelope)

// StateHandler receives connection state transitions.
type StateHandler func(connected bool)

type msgSub struct {
	id int
	fn MessageHandler
}

type stateSub struct {
	id int
	fn StateHandler
}

// Manager owns the single WebSocket transport to the chat backend. It keeps
// at most one connection (or connection attempt) alive, reconnects once per
// abnormal close after a fixed delay, and fans parsed frames out to every
// registered handler.
type Manager struct {
	url    string
	dialer *websocket.Dialer

	writeMu sync.Mutex // serializes data writes on the transport

	mu             sync.Mutex
	conn           *websocket.Conn
	connected      bool
	connecting     bool
	closing        bool
	credential     string
	dialSeq        int
	reconnectTimer *time.Timer
	reconnectDelay time.Duration
	nextSubID      int
	msgSubs        []msgSub
	stateSubs      []stateSub
}

// NewManager creates a manager for the given ws:// or wss:// endpoint.
func NewManager(url string) *Manager {
	return &Manager{
		url:            url,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
	}
}

// Connect opens the transport with the bearer credential carried as the
// WebSocket subprotocol. It is a no-op while a connection is open or an
// attempt is in flight.
func (m *Manager) Connect(credential string) {
	m.mu.Lock()
	if m.connected || m.connecting {
		m.mu.Unlock()
		return
	}
	m.connecting = true
	m.closing = false
	m.credential = credential
	m.dialSeq++
	seq := m.dialSeq
	m.mu.Unlock()

	go m.dial(credential, seq)
}

func (m *Manager) dial(credential string, seq int) {
	dialer := *m.dialer
	dialer.Subprotocols = []string{credential}
	conn, _, err := dialer.Dial(m.url, nil)

	m.mu.Lock()
	if seq != m.dialSeq {
		// A Disconnect (or a newer Connect) superseded this attempt.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	m.connecting = false
	if err != nil {
		log.Printf("[realtime] dial failed: %v", err)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.notifyState(false)
		return
	}
	if m.closing {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.connected = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.mu.Unlock()

	m.notifyState(true)
	go m.readLoop(conn)
}

// Disconnect closes the transport with a normal closure code, cancels any
// pending reconnect, and detaches every registered handler. Safe to call
// repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	m.dialSeq++
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	conn := m.conn
	m.conn = nil
	m.connected = false
	m.connecting = false
	m.msgSubs = nil
	m.stateSubs = nil
	m.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// Send serializes the frame onto the open transport. Delivery is not
// acknowledged; the caller only learns whether the write was attempted.
func (m *Manager) Send(frame models.ChatFrame) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.connected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

// IsConnected reports whether the transport is currently open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnMessage registers a handler for inbound envelopes and returns its
// unregister func. Handlers are invoked in registration order.
func (m *Manager) OnMessage(fn MessageHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubID++
	id := m.nextSubID
	m.msgSubs = append(m.msgSubs, msgSub{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.msgSubs {
			if sub.id == id {
				m.msgSubs = append(m.msgSubs[:i], m.msgSubs[i+1:]...)
				return
			}
		}
	}
}

// OnConnectionChange registers a handler for open/closed transitions and
// returns its unregister func.
func (m *Manager) OnConnectionChange(fn StateHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubID++
	id := m.nextSubID
	m.stateSubs = append(m.stateSubs, stateSub{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.stateSubs {
			if sub.id == id {
				m.stateSubs = append(m.stateSubs[:i], m.stateSubs[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}

		var env models.Envelope
		if jsonErr := json.Unmarshal(data, &env); jsonErr != nil {
			log.Printf("[realtime] dropping malformed frame: %v", jsonErr)
			continue
		}

		for _, sub := range m.messageSubs() {
			sub.fn(env)
		}
	}
}

func (m *Manager) handleClose(conn *websocket.Conn, err error) {
	conn.Close()

	m.mu.Lock()
	if m.conn != conn {
		// Already replaced or torn down by Disconnect.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connected = false
	intentional := m.closing
	normal := websocket.IsCloseError(err, websocket.CloseNormalClosure)
	if !intentional && !normal {
		log.Printf("[realtime] connection lost: %v", err)
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()

	m.notifyState(false)
}

// scheduleReconnectLocked arms the single reconnect timer. Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil || m.closing {
		return
	}
	credential := m.credential
	m.reconnectTimer = time.AfterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		closing := m.closing
		m.mu.Unlock()
		if closing {
			// Disconnect raced the timer firing.
			return
		}
		m.Connect(credential)
	})
}

func (m *Manager) messageSubs() []msgSub {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := make([]msgSub, len(m.msgSubs))
	copy(subs, m.msgSubs)
	return subs
}

func (m *Manager) notifyState(connected bool) {
	m.mu.Lock()
	subs := make([]stateSub, len(m.stateSubs))
	copy(subs, m.stateSubs)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(connected)
	}
}
