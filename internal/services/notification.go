package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/fitchat/internal/logging"
	"github.com/HammerMeetNail/fitchat/internal/models"
	"github.com/HammerMeetNail/fitchat/internal/queue"
)

const (
	DefaultNotificationTTL      = 30 * 24 * time.Hour
	notificationDispatchTimeout = 15 * time.Second
	notificationListDefault     = 50
	notificationListMax         = 100
	pushPreviewMaxLen           = 100
)

type NotificationListParams struct {
	Limit      int
	UnreadOnly bool
}

type NotificationServiceInterface interface {
	List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	NotifyFriendRequestReceived(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error
	NotifyFriendRequestAccepted(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error
	NotifyMessageReceived(ctx context.Context, msg *models.Message) error
	NotifyReadReceipt(ctx context.Context, readerID, senderID uuid.UUID, count int64) error
}

// NotificationService stores notification history and fans events out to
// email, push and the live relay. Fan-out happens off the request path and
// its failures are logged, never returned.
type NotificationService struct {
	db           DB
	emailService EmailServiceInterface
	baseURL      string
	ttl          time.Duration

	relay Relay
	push  PushSender
	jobs  queue.Client

	async    func(func())
	asyncCtx context.Context
}

func NewNotificationService(db DB, emailService EmailServiceInterface, baseURL string) *NotificationService {
	return &NotificationService{
		db:           db,
		emailService: emailService,
		baseURL:      baseURL,
		ttl:          DefaultNotificationTTL,
		async:        func(fn func()) { go fn() },
	}
}

func (s *NotificationService) SetAsync(async func(func())) {
	s.async = async
}

// SetAsyncContext bounds background dispatch by ctx, so shutdown stops it.
func (s *NotificationService) SetAsyncContext(ctx context.Context) {
	s.asyncCtx = ctx
}

func (s *NotificationService) SetRelay(relay Relay) {
	s.relay = relay
}

func (s *NotificationService) SetPushSender(push PushSender) {
	s.push = push
}

// SetQueue routes push delivery through background jobs instead of
// sending inline from the dispatch goroutine.
func (s *NotificationService) SetQueue(jobs queue.Client) {
	s.jobs = jobs
}

func (s *NotificationService) SetRetention(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

func (s *NotificationService) backgroundContext() (context.Context, context.CancelFunc) {
	base := s.asyncCtx
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, notificationDispatchTimeout)
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = notificationListDefault
	}
	if limit > notificationListMax {
		limit = notificationListMax
	}

	query := `SELECT n.id, n.user_id, n.type, n.actor_user_id, a.display_name, n.friend_request_id, n.message_id,
	                 n.email_sent_at, n.read_at, n.created_at
	          FROM notifications n
	          LEFT JOIN users a ON a.id = n.actor_user_id
	          WHERE n.user_id = $1`
	if params.UnreadOnly {
		query += ` AND n.read_at IS NULL`
	}
	query += ` ORDER BY n.created_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.ActorUserID, &n.ActorDisplayName, &n.FriendRequestID, &n.MessageID,
			&n.EmailSentAt, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return count, nil
}

// CleanupOld drops notifications past the retention window.
func (s *NotificationService) CleanupOld(ctx context.Context) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`,
		time.Now().Add(-s.ttl),
	)
	if err != nil {
		return fmt.Errorf("cleaning up notifications: %w", err)
	}
	if n := result.RowsAffected(); n > 0 {
		logging.Info("Removed expired notifications", map[string]interface{}{"count": n})
	}
	return nil
}

func (s *NotificationService) NotifyFriendRequestReceived(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error {
	return s.notifyFriendRequest(ctx, models.NotificationTypeFriendRequestReceived, recipientID, actorID, requestID)
}

func (s *NotificationService) NotifyFriendRequestAccepted(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error {
	return s.notifyFriendRequest(ctx, models.NotificationTypeFriendRequestAccepted, recipientID, actorID, requestID)
}

func (s *NotificationService) notifyFriendRequest(ctx context.Context, kind models.NotificationType, recipientID, actorID, requestID uuid.UUID) error {
	var notificationID uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, actor_user_id, friend_request_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		recipientID, string(kind), actorID, requestID,
	).Scan(&notificationID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already recorded for this request.
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	if s.emailService != nil {
		s.async(func() {
			ctx, cancel := s.backgroundContext()
			defer cancel()
			if err := s.sendNotificationEmail(ctx, notificationID); err != nil {
				logging.Error("Failed to send notification email", map[string]interface{}{
					"error":           err.Error(),
					"notification_id": notificationID.String(),
				})
			}
		})
	}
	return nil
}

func (s *NotificationService) sendNotificationEmail(ctx context.Context, notificationID uuid.UUID) error {
	var kind models.NotificationType
	var toEmail, recipientName string
	var actorName *string
	err := s.db.QueryRow(ctx,
		`SELECT n.type, u.email, u.display_name, a.display_name
		 FROM notifications n
		 JOIN users u ON u.id = n.user_id
		 LEFT JOIN users a ON a.id = n.actor_user_id
		 WHERE n.id = $1 AND n.email_sent_at IS NULL`,
		notificationID,
	).Scan(&kind, &toEmail, &recipientName, &actorName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading notification email: %w", err)
	}

	params := notificationEmailParams{Type: kind, RecipientName: recipientName, BaseURL: s.baseURL}
	if actorName != nil {
		params.ActorName = *actorName
	}
	subject, html, text := buildNotificationEmail(params)
	if err := s.emailService.SendNotificationEmail(ctx, toEmail, subject, html, text); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `UPDATE notifications SET email_sent_at = NOW() WHERE id = $1`, notificationID); err != nil {
		return fmt.Errorf("marking notification email sent: %w", err)
	}
	return nil
}

// NotifyMessageReceived records the notification, publishes a relay hint and
// schedules a push for the receiver. It returns immediately.
func (s *NotificationService) NotifyMessageReceived(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return nil
	}
	m := *msg
	s.async(func() {
		ctx, cancel := s.backgroundContext()
		defer cancel()
		s.dispatchMessage(ctx, &m)
	})
	return nil
}

func (s *NotificationService) dispatchMessage(ctx context.Context, m *models.Message) {
	fields := map[string]interface{}{"message_id": m.ID.String()}

	_, err := s.db.Exec(ctx,
		`INSERT INTO notifications (user_id, type, actor_user_id, message_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		m.ReceiverID, string(models.NotificationTypeMessageReceived), m.SenderID, m.ID,
	)
	if err != nil {
		logging.Error("Failed to record message notification", withError(fields, err))
	}

	if s.relay != nil {
		err := s.relay.Publish(ctx, m.ReceiverID, models.RelayEvent{
			Type:           models.RelayEventNewMessage,
			ConversationID: m.ConversationID,
			FromUserID:     m.SenderID,
			MessageID:      m.ID,
			At:             m.CreatedAt,
		})
		if err != nil {
			logging.Warn("Failed to publish message relay", withError(fields, err))
		}
	}

	payload := queue.PushPayload{
		UserID:    m.ReceiverID,
		MessageID: m.ID,
		Title:     m.SenderDisplayName,
		Body:      pushPreview(m),
		Data: map[string]string{
			"conversation_id": m.ConversationID,
			"sender_id":       m.SenderID.String(),
		},
	}

	if s.jobs != nil {
		task, opt, err := queue.NewPushTask(payload)
		if err == nil {
			_, err = s.jobs.Enqueue(ctx, task, opt)
		}
		if err == nil {
			return
		}
		logging.Warn("Failed to enqueue push, sending inline", withError(fields, err))
	}

	if s.push != nil {
		err := s.push.SendToUser(ctx, payload.UserID, PushNotification{
			Title: payload.Title,
			Body:  payload.Body,
			Data:  payload.Data,
		})
		if err != nil {
			logging.Error("Failed to send push notification", withError(fields, err))
		}
	}
}

// NotifyReadReceipt tells the original sender, over the relay only, that
// count of their messages were read.
func (s *NotificationService) NotifyReadReceipt(ctx context.Context, readerID, senderID uuid.UUID, count int64) error {
	if s.relay == nil || count <= 0 {
		return nil
	}
	event := models.RelayEvent{
		Type:           models.RelayEventReadReceipt,
		ConversationID: models.ConversationID(readerID, senderID),
		FromUserID:     readerID,
		Count:          int(count),
		At:             time.Now(),
	}
	s.async(func() {
		ctx, cancel := s.backgroundContext()
		defer cancel()
		if err := s.relay.Publish(ctx, senderID, event); err != nil {
			logging.Warn("Failed to publish read receipt", map[string]interface{}{
				"error":     err.Error(),
				"reader_id": readerID.String(),
			})
		}
	})
	return nil
}

func pushPreview(m *models.Message) string {
	switch m.MessageType {
	case models.MessageTypeImage:
		return "Sent a photo"
	case models.MessageTypeWorkout:
		return "Shared a workout"
	}
	runes := []rune(m.Content)
	if len(runes) > pushPreviewMaxLen {
		return string(runes[:pushPreviewMaxLen-1]) + "…"
	}
	return m.Content
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
