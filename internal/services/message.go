package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/fitchat/internal/logging"
	"github.com/HammerMeetNail/fitchat/internal/models"
)

const (
	MessageMaxLength        = 2000
	ClientMessageIDMaxLen   = 64
	DefaultConversationPage = 50
	MaxConversationPage     = 100
)

// FriendChecker answers whether two users are currently friends.
type FriendChecker interface {
	IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
}

type SendMessageParams struct {
	SenderID        uuid.UUID
	ReceiverID      uuid.UUID
	Content         string
	MessageType     models.MessageType
	ClientMessageID string
}

type MessageService struct {
	db                  DB
	friends             FriendChecker
	users               UserDirectory
	notificationService NotificationServiceInterface
}

func NewMessageService(db DB, friends FriendChecker, users UserDirectory) *MessageService {
	return &MessageService{db: db, friends: friends, users: users}
}

func (s *MessageService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

const messageSelect = `SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content, m.message_type, m.status,
	       m.client_message_id, m.created_at, m.delivered_at, m.read_at,
	       su.display_name, ru.display_name
	FROM messages m
	JOIN users su ON su.id = m.sender_id
	JOIN users ru ON ru.id = m.receiver_id`

func scanMessage(row Row) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.MessageType, &m.Status,
		&m.ClientMessageID, &m.CreatedAt, &m.DeliveredAt, &m.ReadAt,
		&m.SenderDisplayName, &m.ReceiverDisplayName)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func collectMessages(rows Rows) ([]models.Message, error) {
	defer rows.Close()
	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

func validateSendParams(params *SendMessageParams) error {
	params.Content = strings.TrimSpace(params.Content)
	if params.Content == "" {
		return ErrEmptyMessage
	}
	if len([]rune(params.Content)) > MessageMaxLength {
		return ErrMessageTooLong
	}
	if params.MessageType == "" {
		params.MessageType = models.MessageTypeText
	}
	if !params.MessageType.Valid() {
		return ErrInvalidMessageType
	}
	params.ClientMessageID = strings.TrimSpace(params.ClientMessageID)
	if len(params.ClientMessageID) > ClientMessageIDMaxLen {
		return ErrInvalidClientID
	}
	for _, r := range params.ClientMessageID {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return ErrInvalidClientID
		}
	}
	return nil
}

// SendMessage persists a message between friends with status sent. A repeated
// client message id from the same sender returns the stored message.
// Notification fan-out runs after the insert and never blocks the caller.
func (s *MessageService) SendMessage(ctx context.Context, params SendMessageParams) (*models.Message, error) {
	if err := validateSendParams(&params); err != nil {
		return nil, err
	}

	ok, err := s.friends.IsFriend(ctx, params.SenderID, params.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFriends
	}

	var clientID *string
	if params.ClientMessageID != "" {
		clientID = &params.ClientMessageID
		existing, err := s.findByClientID(ctx, params.SenderID, params.ClientMessageID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	msg := &models.Message{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender_id, receiver_id, content, message_type, status, client_message_id)
		 VALUES ($1, $2, $3, $4, $5, 'sent', $6)
		 RETURNING id, conversation_id, sender_id, receiver_id, content, message_type, status,
		           client_message_id, created_at, delivered_at, read_at`,
		models.ConversationID(params.SenderID, params.ReceiverID), params.SenderID, params.ReceiverID,
		params.Content, string(params.MessageType), clientID,
	).Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.MessageType, &msg.Status,
		&msg.ClientMessageID, &msg.CreatedAt, &msg.DeliveredAt, &msg.ReadAt)
	if isUniqueViolation(err, "messages_sender_client_id") {
		// A concurrent retry with the same key won the insert.
		existing, ferr := s.findByClientID(ctx, params.SenderID, params.ClientMessageID)
		if ferr != nil {
			return nil, ferr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	s.resolveNames(ctx, msg)

	if s.notificationService != nil {
		if err := s.notificationService.NotifyMessageReceived(ctx, msg); err != nil {
			logging.Error("Failed to dispatch message notification", map[string]interface{}{
				"error":      err.Error(),
				"message_id": msg.ID.String(),
			})
		}
	}

	return msg, nil
}

func (s *MessageService) findByClientID(ctx context.Context, senderID uuid.UUID, clientID string) (*models.Message, error) {
	msg, err := scanMessage(s.db.QueryRow(ctx,
		messageSelect+` WHERE m.sender_id = $1 AND m.client_message_id = $2`,
		senderID, clientID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up message by client id: %w", err)
	}
	return msg, nil
}

func (s *MessageService) resolveNames(ctx context.Context, msg *models.Message) {
	if sender, err := s.users.GetByID(ctx, msg.SenderID); err == nil {
		msg.SenderDisplayName = sender.DisplayName
	}
	if receiver, err := s.users.GetByID(ctx, msg.ReceiverID); err == nil {
		msg.ReceiverDisplayName = receiver.DisplayName
	}
}

// GetConversationMessages pages backwards from the newest message: skip drops
// the newest skip messages and limit caps the page. The page is returned
// oldest first.
func (s *MessageService) GetConversationMessages(ctx context.Context, userID, friendID uuid.UUID, limit, skip int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultConversationPage
	}
	if limit > MaxConversationPage {
		limit = MaxConversationPage
	}
	if skip < 0 {
		skip = 0
	}

	rows, err := s.db.Query(ctx,
		messageSelect+`
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT $2 OFFSET $3`,
		models.ConversationID(userID, friendID), limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversation messages: %w", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkMessagesAsRead marks everything friendID sent to userID as read.
// read_at is stamped once; repeated calls change nothing and return 0.
func (s *MessageService) MarkMessagesAsRead(ctx context.Context, userID, friendID uuid.UUID) (int64, error) {
	result, err := s.db.Exec(ctx,
		`UPDATE messages
		 SET status = 'read', read_at = COALESCE(read_at, NOW()), delivered_at = COALESCE(delivered_at, NOW())
		 WHERE conversation_id = $1 AND receiver_id = $2 AND status <> 'read'`,
		models.ConversationID(userID, friendID), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	changed := result.RowsAffected()
	if changed > 0 && s.notificationService != nil {
		if err := s.notificationService.NotifyReadReceipt(ctx, userID, friendID, changed); err != nil {
			logging.Warn("Failed to relay read receipt", map[string]interface{}{
				"error":   err.Error(),
				"user_id": userID.String(),
			})
		}
	}
	return changed, nil
}

// GetUserConversations returns one summary per friend the user has messages
// with, most recent conversation first.
func (s *MessageService) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(ctx,
		`WITH latest AS (
			SELECT DISTINCT ON (m.conversation_id)
			       m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content, m.message_type, m.status,
			       m.client_message_id, m.created_at, m.delivered_at, m.read_at,
			       CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS friend_id
			FROM messages m
			WHERE m.sender_id = $1 OR m.receiver_id = $1
			ORDER BY m.conversation_id, m.created_at DESC, m.id DESC
		 )
		 SELECT l.id, l.conversation_id, l.sender_id, l.receiver_id, l.content, l.message_type, l.status,
		        l.client_message_id, l.created_at, l.delivered_at, l.read_at,
		        l.friend_id, fu.display_name,
		        (SELECT COUNT(*) FROM messages u
		         WHERE u.conversation_id = l.conversation_id AND u.receiver_id = $1 AND u.status <> 'read')
		 FROM latest l
		 JOIN users fu ON fu.id = l.friend_id
		 JOIN friend_edges fe ON fe.user_id = $1 AND fe.friend_id = l.friend_id
		 ORDER BY l.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var c models.ConversationSummary
		m := &c.LastMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.MessageType, &m.Status,
			&m.ClientMessageID, &m.CreatedAt, &m.DeliveredAt, &m.ReadAt,
			&c.FriendID, &c.FriendDisplayName, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.ConversationID = m.ConversationID
		if m.SenderID == c.FriendID {
			m.SenderDisplayName = c.FriendDisplayName
		} else {
			m.ReceiverDisplayName = c.FriendDisplayName
		}
		summaries = append(summaries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return summaries, nil
}

// UnreadTotal counts unread messages addressed to the user across all
// conversations.
func (s *MessageService) UnreadTotal(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND status <> 'read'`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}
