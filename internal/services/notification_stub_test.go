package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

type stubNotificationService struct {
	NotifyFriendRequestReceivedFunc func(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error
	NotifyFriendRequestAcceptedFunc func(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error
	NotifyMessageReceivedFunc       func(ctx context.Context, msg *models.Message) error
	NotifyReadReceiptFunc           func(ctx context.Context, readerID, senderID uuid.UUID, count int64) error
}

func (s *stubNotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	return []models.Notification{}, nil
}

func (s *stubNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func (s *stubNotificationService) NotifyFriendRequestReceived(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error {
	if s.NotifyFriendRequestReceivedFunc != nil {
		return s.NotifyFriendRequestReceivedFunc(ctx, recipientID, actorID, requestID)
	}
	return nil
}

func (s *stubNotificationService) NotifyFriendRequestAccepted(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error {
	if s.NotifyFriendRequestAcceptedFunc != nil {
		return s.NotifyFriendRequestAcceptedFunc(ctx, recipientID, actorID, requestID)
	}
	return nil
}

func (s *stubNotificationService) NotifyMessageReceived(ctx context.Context, msg *models.Message) error {
	if s.NotifyMessageReceivedFunc != nil {
		return s.NotifyMessageReceivedFunc(ctx, msg)
	}
	return nil
}

func (s *stubNotificationService) NotifyReadReceipt(ctx context.Context, readerID, senderID uuid.UUID, count int64) error {
	if s.NotifyReadReceiptFunc != nil {
		return s.NotifyReadReceiptFunc(ctx, readerID, senderID, count)
	}
	return nil
}

type stubUserDirectory struct {
	users map[uuid.UUID]*models.User
}

func newStubUserDirectory(users ...*models.User) *stubUserDirectory {
	d := &stubUserDirectory{users: map[uuid.UUID]*models.User{}}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *stubUserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (d *stubUserDirectory) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *stubUserDirectory) Search(ctx context.Context, requesterID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	return []models.UserSearchResult{}, nil
}
