package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"caronachat/models"
)

// Client talks to the ride-share REST API for the lookups the chat core
// cannot answer from local state: the past conversation list and the other
// participant of a ride request.
type Client struct {
	baseURL string
	token   func() string
	httpc   *http.Client
}

// NewClient creates a client for baseURL. token is called per request so
// the latest credential is always used.
func NewClient(baseURL string, token func() string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Conversations fetches the past conversation list for the current user.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := c.get(ctx, "/chat/conversas", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Participant resolves the other party of a ride-request conversation.
func (c *Client) Participant(ctx context.Context, conversationID int64) (models.User, error) {
	var out models.User
	err := c.get(ctx, fmt.Sprintf("/solicitacoes/%d/participante", conversationID), &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api: GET %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
