package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
	"github.com/HammerMeetNail/fitchat/internal/services"
)

var errNotImplemented = errors.New("not implemented")

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (body %s)", status, rr.Code, rr.Body.String())
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error != message {
		t.Fatalf("expected error %q, got %q", message, resp.Error)
	}
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), userContextKey, &models.User{ID: userID}))
}

type mockNotificationService struct {
	ListFunc        func(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error)
	MarkReadFunc    func(ctx context.Context, userID, notificationID uuid.UUID) error
	UnreadCountFunc func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *mockNotificationService) List(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, params)
	}
	return nil, errNotImplemented
}

func (m *mockNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, userID, notificationID)
	}
	return errNotImplemented
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx, userID)
	}
	return 0, errNotImplemented
}

type mockFriendService struct {
	SendFriendRequestFunc   func(ctx context.Context, senderID uuid.UUID, receiverEmail, message string) (*models.FriendRequest, error)
	AcceptFriendRequestFunc func(ctx context.Context, requestID, accepterID uuid.UUID) (*models.FriendRequest, error)
	RejectFriendRequestFunc func(ctx context.Context, requestID, rejecterID uuid.UUID) (*models.FriendRequest, error)
	CancelFriendRequestFunc func(ctx context.Context, requestID, senderID uuid.UUID) error
	RemoveFriendFunc        func(ctx context.Context, userID, friendID uuid.UUID) error
	GetFriendshipStatusFunc func(ctx context.Context, userID, otherID uuid.UUID) (models.FriendshipStatus, error)
	ListFriendsFunc         func(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListRequestsFunc        func(ctx context.Context, userID uuid.UUID) (*models.FriendRequestLists, error)
}

func (m *mockFriendService) SendFriendRequest(ctx context.Context, senderID uuid.UUID, receiverEmail, message string) (*models.FriendRequest, error) {
	if m.SendFriendRequestFunc != nil {
		return m.SendFriendRequestFunc(ctx, senderID, receiverEmail, message)
	}
	return nil, errNotImplemented
}

func (m *mockFriendService) AcceptFriendRequest(ctx context.Context, requestID, accepterID uuid.UUID) (*models.FriendRequest, error) {
	if m.AcceptFriendRequestFunc != nil {
		return m.AcceptFriendRequestFunc(ctx, requestID, accepterID)
	}
	return nil, errNotImplemented
}

func (m *mockFriendService) RejectFriendRequest(ctx context.Context, requestID, rejecterID uuid.UUID) (*models.FriendRequest, error) {
	if m.RejectFriendRequestFunc != nil {
		return m.RejectFriendRequestFunc(ctx, requestID, rejecterID)
	}
	return nil, errNotImplemented
}

func (m *mockFriendService) CancelFriendRequest(ctx context.Context, requestID, senderID uuid.UUID) error {
	if m.CancelFriendRequestFunc != nil {
		return m.CancelFriendRequestFunc(ctx, requestID, senderID)
	}
	return errNotImplemented
}

func (m *mockFriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	if m.RemoveFriendFunc != nil {
		return m.RemoveFriendFunc(ctx, userID, friendID)
	}
	return errNotImplemented
}

func (m *mockFriendService) GetFriendshipStatus(ctx context.Context, userID, otherID uuid.UUID) (models.FriendshipStatus, error) {
	if m.GetFriendshipStatusFunc != nil {
		return m.GetFriendshipStatusFunc(ctx, userID, otherID)
	}
	return "", errNotImplemented
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *mockFriendService) ListRequests(ctx context.Context, userID uuid.UUID) (*models.FriendRequestLists, error) {
	if m.ListRequestsFunc != nil {
		return m.ListRequestsFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

type mockUserSearcher struct {
	SearchFunc func(ctx context.Context, requesterID uuid.UUID, query string) ([]models.UserSearchResult, error)
}

func (m *mockUserSearcher) Search(ctx context.Context, requesterID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, requesterID, query)
	}
	return nil, errNotImplemented
}

type mockChatService struct {
	SendMessageFunc             func(ctx context.Context, params services.SendMessageParams) (*models.Message, error)
	GetConversationMessagesFunc func(ctx context.Context, userID, friendID uuid.UUID, limit, skip int) ([]models.Message, error)
	MarkMessagesAsReadFunc      func(ctx context.Context, userID, friendID uuid.UUID) (int64, error)
	GetUserConversationsFunc    func(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	UnreadTotalFunc             func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *mockChatService) SendMessage(ctx context.Context, params services.SendMessageParams) (*models.Message, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockChatService) GetConversationMessages(ctx context.Context, userID, friendID uuid.UUID, limit, skip int) ([]models.Message, error) {
	if m.GetConversationMessagesFunc != nil {
		return m.GetConversationMessagesFunc(ctx, userID, friendID, limit, skip)
	}
	return nil, errNotImplemented
}

func (m *mockChatService) MarkMessagesAsRead(ctx context.Context, userID, friendID uuid.UUID) (int64, error) {
	if m.MarkMessagesAsReadFunc != nil {
		return m.MarkMessagesAsReadFunc(ctx, userID, friendID)
	}
	return 0, errNotImplemented
}

func (m *mockChatService) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	if m.GetUserConversationsFunc != nil {
		return m.GetUserConversationsFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *mockChatService) UnreadTotal(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.UnreadTotalFunc != nil {
		return m.UnreadTotalFunc(ctx, userID)
	}
	return 0, errNotImplemented
}

type mockPresenceService struct {
	CheckForNewMessagesFunc func(ctx context.Context, userID, friendID uuid.UUID, since time.Time) (*models.PollResult, error)
	SetTypingFunc           func(ctx context.Context, userID, friendID uuid.UUID, isTyping bool) error
}

func (m *mockPresenceService) CheckForNewMessages(ctx context.Context, userID, friendID uuid.UUID, since time.Time) (*models.PollResult, error) {
	if m.CheckForNewMessagesFunc != nil {
		return m.CheckForNewMessagesFunc(ctx, userID, friendID, since)
	}
	return nil, errNotImplemented
}

func (m *mockPresenceService) SetTyping(ctx context.Context, userID, friendID uuid.UUID, isTyping bool) error {
	if m.SetTypingFunc != nil {
		return m.SetTypingFunc(ctx, userID, friendID, isTyping)
	}
	return errNotImplemented
}

type mockPushTokenService struct {
	RegisterTokenFunc   func(ctx context.Context, userID uuid.UUID, token, platform string) error
	UnregisterTokenFunc func(ctx context.Context, userID uuid.UUID, token string) error
}

func (m *mockPushTokenService) RegisterToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	if m.RegisterTokenFunc != nil {
		return m.RegisterTokenFunc(ctx, userID, token, platform)
	}
	return errNotImplemented
}

func (m *mockPushTokenService) UnregisterToken(ctx context.Context, userID uuid.UUID, token string) error {
	if m.UnregisterTokenFunc != nil {
		return m.UnregisterTokenFunc(ctx, userID, token)
	}
	return errNotImplemented
}
