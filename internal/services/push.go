package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/config"
	"github.com/HammerMeetNail/fitchat/internal/logging"
	"github.com/HammerMeetNail/fitchat/internal/queue"
)

const (
	pushWebhookTimeout = 10 * time.Second
	pushTokenMaxLen    = 4096
)

var validPushPlatforms = map[string]bool{"ios": true, "android": true, "web": true}

// PushNotification is what a device shows. Data carries routing hints only.
type PushNotification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type PushSender interface {
	SendToUser(ctx context.Context, userID uuid.UUID, n PushNotification) error
}

type PushService struct {
	db         DBConn
	provider   string
	webhookURL string
	apiKey     string
	httpClient *http.Client
}

func NewPushService(db DBConn, cfg config.PushConfig) *PushService {
	return &PushService{
		db:         db,
		provider:   cfg.Provider,
		webhookURL: cfg.WebhookURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: pushWebhookTimeout},
	}
}

func (s *PushService) RegisterToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "web"
	}
	if token == "" || len(token) > pushTokenMaxLen || !validPushPlatforms[platform] {
		return ErrInvalidPushToken
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO push_tokens (user_id, token, platform)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, token) DO UPDATE SET platform = EXCLUDED.platform, last_seen_at = NOW()`,
		userID, token, platform,
	)
	if err != nil {
		return fmt.Errorf("registering push token: %w", err)
	}
	return nil
}

func (s *PushService) UnregisterToken(ctx context.Context, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidPushToken
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM push_tokens WHERE user_id = $1 AND token = $2`, userID, token); err != nil {
		return fmt.Errorf("removing push token: %w", err)
	}
	return nil
}

func (s *PushService) tokensFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT token FROM push_tokens WHERE user_id = $1 ORDER BY last_seen_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scanning push token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating push tokens: %w", err)
	}
	return tokens, nil
}

// SendToUser delivers n to every device the user registered. Users without
// tokens are skipped silently.
func (s *PushService) SendToUser(ctx context.Context, userID uuid.UUID, n PushNotification) error {
	tokens, err := s.tokensFor(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	if s.provider != "webhook" {
		logging.Info("Push (console provider)", map[string]interface{}{
			"user_id": userID.String(),
			"devices": len(tokens),
			"title":   n.Title,
		})
		return nil
	}
	return s.postWebhook(ctx, tokens, n)
}

type pushWebhookRequest struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

func (s *PushService) postWebhook(ctx context.Context, tokens []string, n PushNotification) error {
	body, err := json.Marshal(pushWebhookRequest{Tokens: tokens, Title: n.Title, Body: n.Body, Data: n.Data})
	if err != nil {
		return fmt.Errorf("encoding push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return downstreamError("push webhook", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return downstreamError("push webhook", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// HandlePushTask is the queue worker for push:new_message.
func (s *PushService) HandlePushTask(ctx context.Context, t queue.Task) error {
	p, err := queue.ParsePushPayload(t)
	if err != nil {
		return err
	}
	data := p.Data
	if data == nil {
		data = map[string]string{}
	}
	data["message_id"] = p.MessageID.String()
	return s.SendToUser(ctx, p.UserID, PushNotification{Title: p.Title, Body: p.Body, Data: data})
}
