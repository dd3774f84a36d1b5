// Package history is the request/response client for the persisted
// message store.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zhouzirui/talkative/internal/model/chat"
)

var (
	ErrFetch = errors.New("failed to load messages")
	ErrSend  = errors.New("failed to send message")
)

// Client talks to the history store over HTTP, passing the identity
// provider's credential as an opaque bearer token on every call.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a history client against a server base URL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch returns the persisted messages for a conversation, oldest
// first.
func (c *Client) Fetch(ctx context.Context, chatID string) ([]chat.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/message/"+chatID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	var messages []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return messages, nil
}

// Send persists a message; the store assigns the authoritative id and
// timestamp carried by the returned copy.
func (c *Client) Send(ctx context.Context, chatID, content string) (chat.Message, error) {
	payload, err := json.Marshal(map[string]string{
		"content": content,
		"chatId":  chatID,
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", ErrSend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message", bytes.NewReader(payload))
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", ErrSend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", ErrSend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return chat.Message{}, fmt.Errorf("%w: status %d", ErrSend, resp.StatusCode)
	}

	var msg chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", ErrSend, err)
	}
	return msg, nil
}

// ListChats returns the conversations the signed-in user participates
// in; convenience for tooling, not part of the sync core itself.
func (c *Client) ListChats(ctx context.Context) ([]chat.Chat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	var chats []chat.Chat
	if err := json.NewDecoder(resp.Body).Decode(&chats); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return chats, nil
}
