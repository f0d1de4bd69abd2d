package database

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"caronachat/models"
)

// History is the local sqlite archive of chat messages, so conversations
// are readable between launches while offline.
type History struct {
	db *sql.DB
}

// Open opens (or creates) the archive at path. Use ":memory:" in tests.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// sqlite is single-writer; one pooled connection also keeps ":memory:"
	// databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &History{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		sender_id INTEGER NOT NULL DEFAULT 0,
		receiver_id INTEGER NOT NULL DEFAULT 0,
		conversation_id INTEGER NOT NULL,
		body TEXT NOT NULL,
		system INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`

	_, err := db.Exec(schema)
	return err
}

// Save archives one message. Duplicates are kept as-is; message ids are not
// unique across the optimistic and server-echo paths.
func (h *History) Save(msg models.Message) error {
	_, err := h.db.Exec(
		"INSERT INTO messages (message_id, sender_id, receiver_id, conversation_id, body, system, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.SenderID, msg.ReceiverID, msg.ConversationID, msg.Body, msg.System, msg.Timestamp,
	)
	return err
}

// Messages returns the archived messages for a conversation, oldest first.
func (h *History) Messages(conversationID int64) ([]models.Message, error) {
	rows, err := h.db.Query(
		"SELECT message_id, sender_id, receiver_id, conversation_id, body, system, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC",
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.ConversationID, &msg.Body, &msg.System, &msg.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Clear wipes the archive. Invoked on logout.
func (h *History) Clear() error {
	_, err := h.db.Exec("DELETE FROM messages")
	return err
}

// Close releases the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}
