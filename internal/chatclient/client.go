// Package chatclient is the client half of the polling protocol: an HTTP API
// client, the visibility-gated poll loop and the typing indicator.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

const requestTimeout = 10 * time.Second

// APIError is a non-2xx response from the chat API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient talks to the API rooted at baseURL (for example
// https://fitchat.app/api) with the given session token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Poll fetches the conversation with friendID after since.
func (c *Client) Poll(ctx context.Context, friendID uuid.UUID, since time.Time) (*models.PollResult, error) {
	path := "/poll/" + friendID.String()
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	var result models.PollResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type sendRequest struct {
	ReceiverID      string `json:"receiverId"`
	Content         string `json:"content"`
	MessageType     string `json:"messageType,omitempty"`
	ClientMessageID string `json:"clientMessageId"`
}

// Send posts a text message with a fresh idempotency key. Use SendWithKey
// to retry a send that may already have been stored.
func (c *Client) Send(ctx context.Context, receiverID uuid.UUID, content string) (*models.Message, error) {
	return c.SendWithKey(ctx, receiverID, content, NewClientMessageID())
}

func (c *Client) SendWithKey(ctx context.Context, receiverID uuid.UUID, content, clientMessageID string) (*models.Message, error) {
	var resp struct {
		Message *models.Message `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/send", sendRequest{
		ReceiverID:      receiverID.String(),
		Content:         content,
		MessageType:     string(models.MessageTypeText),
		ClientMessageID: clientMessageID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Message, nil
}

func (c *Client) MarkRead(ctx context.Context, friendID uuid.UUID) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, "/mark-read", map[string]string{"friendId": friendID.String()}, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (c *Client) SetTyping(ctx context.Context, friendID uuid.UUID, isTyping bool) error {
	body := struct {
		FriendID string `json:"friendId"`
		IsTyping bool   `json:"isTyping"`
	}{FriendID: friendID.String(), IsTyping: isTyping}
	return c.do(ctx, http.MethodPost, "/typing", body, nil)
}

func NewClientMessageID() string {
	return uuid.NewString()
}
