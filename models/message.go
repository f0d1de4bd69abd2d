package models

import "time"

// Message represents a chat line inside one ride-request conversation.
// Messages are never mutated after creation; the store only clears them in
// bulk on logout.
type Message struct {
	ID             string    `json:"id"`
	SenderID       int64     `json:"sender_id,omitempty"`
	ReceiverID     int64     `json:"receiver_id,omitempty"`
	ConversationID int64     `json:"id_solicitacao"`
	Body           string    `json:"message"`
	Timestamp      time.Time `json:"data"`
	System         bool      `json:"system,omitempty"` // server-generated notice, no sender
}

// Conversation summarizes one ride-request chat thread.
type Conversation struct {
	ID          int64     `json:"id_solicitacao"`
	LastBody    string    `json:"last_message"`
	LastAt      time.Time `json:"last_message_at"`
	UnreadCount int       `json:"unread_count"`
	Participant string    `json:"participant"` // other party's display name
}

// ChatFrame is the outbound wire frame. Receiver is null when the server
// routes by conversation alone.
type ChatFrame struct {
	Receiver       *int64 `json:"receiver"`
	ConversationID int64  `json:"id_solicitacao"`
	Data           string `json:"data"` // RFC3339
	Message        string `json:"message"`
}

// Inbound envelope tags. Unknown tags must be ignored.
const (
	TipoMensagemRecebida = "mensagem_recebida"
	TipoMensagemEnviada  = "mensagem_enviada"
)

// Envelope is the tagged inbound wire frame.
type Envelope struct {
	Tipo     string          `json:"tipo"`
	Mensagem *InboundMessage `json:"mensagem,omitempty"`
}

// InboundMessage is the payload of a delivered chat message.
type InboundMessage struct {
	ID             string `json:"id,omitempty"`
	Remetente      *int64 `json:"remetente,omitempty"`
	ConversationID int64  `json:"id_solicitacao"`
	Data           string `json:"data,omitempty"`
	Message        string `json:"message"`
}

// ToMessage converts the wire payload into a store Message. A missing
// sender marks a system notice; an unparseable timestamp is left zero for
// the store to fill.
func (m *InboundMessage) ToMessage() Message {
	msg := Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Body:           m.Message,
	}
	if m.Remetente != nil {
		msg.SenderID = *m.Remetente
	} else {
		msg.System = true
	}
	if ts, err := time.Parse(time.RFC3339, m.Data); err == nil {
		msg.Timestamp = ts
	}
	return msg
}
