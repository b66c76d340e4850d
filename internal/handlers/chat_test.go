package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
	"github.com/HammerMeetNail/fitchat/internal/services"
)

func TestChatHandler_Send_RequiresAuth(t *testing.T) {
	handler := NewChatHandler(&mockChatService{})
	req := httptest.NewRequest(http.MethodPost, "/api/send", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()

	handler.Send(rr, req)
	assertErrorResponse(t, rr, http.StatusUnauthorized, "Authentication required")
}

func TestChatHandler_Send_InvalidReceiver(t *testing.T) {
	handler := NewChatHandler(&mockChatService{})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/send", bytes.NewBufferString(`{"receiverId":"nope","content":"hi"}`)), uuid.New())
	rr := httptest.NewRecorder()

	handler.Send(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "Invalid receiver ID")
}

func TestChatHandler_Send_Created(t *testing.T) {
	senderID := uuid.New()
	receiverID := uuid.New()
	var got services.SendMessageParams
	handler := NewChatHandler(&mockChatService{
		SendMessageFunc: func(ctx context.Context, params services.SendMessageParams) (*models.Message, error) {
			got = params
			return &models.Message{ID: uuid.New(), SenderID: params.SenderID, ReceiverID: params.ReceiverID, Content: params.Content, Status: models.MessageStatusSent}, nil
		},
	})

	body, _ := json.Marshal(SendMessageRequest{
		ReceiverID:      receiverID.String(),
		Content:         "hello",
		MessageType:     "text",
		ClientMessageID: "c-1",
	})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/send", bytes.NewReader(body)), senderID)
	rr := httptest.NewRecorder()
	handler.Send(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if got.SenderID != senderID || got.ReceiverID != receiverID || got.ClientMessageID != "c-1" || got.MessageType != models.MessageTypeText {
		t.Fatalf("unexpected params %+v", got)
	}
	var resp ChatMessageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message == nil || resp.Message.Status != models.MessageStatusSent {
		t.Fatalf("unexpected message %+v", resp.Message)
	}
}

func TestChatHandler_Send_ServiceErrors(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{services.ErrNotFriends, http.StatusForbidden, "You can only message friends"},
		{services.ErrEmptyMessage, http.StatusBadRequest, "Message content is required"},
		{services.ErrMessageTooLong, http.StatusBadRequest, "Message content is too long"},
		{services.ErrInvalidClientID, http.StatusBadRequest, "Invalid client message ID"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			handler := NewChatHandler(&mockChatService{
				SendMessageFunc: func(ctx context.Context, params services.SendMessageParams) (*models.Message, error) {
					return nil, tt.err
				},
			})
			body := `{"receiverId":"` + uuid.NewString() + `","content":"x"}`
			req := withUser(httptest.NewRequest(http.MethodPost, "/api/send", bytes.NewBufferString(body)), uuid.New())
			rr := httptest.NewRecorder()
			handler.Send(rr, req)
			assertErrorResponse(t, rr, tt.status, tt.message)
		})
	}
}

func TestChatHandler_Messages_Pagination(t *testing.T) {
	friendID := uuid.New()
	var gotLimit, gotSkip int
	handler := NewChatHandler(&mockChatService{
		GetConversationMessagesFunc: func(ctx context.Context, userID, gotFriendID uuid.UUID, limit, skip int) ([]models.Message, error) {
			gotLimit, gotSkip = limit, skip
			return []models.Message{}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/messages/"+friendID.String()+"?limit=20&skip=40", nil)
	req.SetPathValue("friendId", friendID.String())
	req = withUser(req, uuid.New())
	rr := httptest.NewRecorder()
	handler.Messages(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLimit != 20 || gotSkip != 40 {
		t.Fatalf("expected limit 20 skip 40, got %d %d", gotLimit, gotSkip)
	}
}

func TestChatHandler_Messages_Defaults(t *testing.T) {
	friendID := uuid.New()
	var gotLimit int
	handler := NewChatHandler(&mockChatService{
		GetConversationMessagesFunc: func(ctx context.Context, userID, gotFriendID uuid.UUID, limit, skip int) ([]models.Message, error) {
			gotLimit = limit
			return []models.Message{}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/messages/"+friendID.String(), nil)
	req.SetPathValue("friendId", friendID.String())
	req = withUser(req, uuid.New())
	handler.Messages(httptest.NewRecorder(), req)

	if gotLimit != services.DefaultConversationPage {
		t.Fatalf("expected default limit, got %d", gotLimit)
	}
}

func TestChatHandler_Messages_BadParams(t *testing.T) {
	friendID := uuid.New()
	handler := NewChatHandler(&mockChatService{})

	for query, message := range map[string]string{
		"?limit=0":  "Invalid limit",
		"?limit=x":  "Invalid limit",
		"?skip=-1":  "Invalid skip",
		"?skip=bad": "Invalid skip",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/messages/"+friendID.String()+query, nil)
		req.SetPathValue("friendId", friendID.String())
		req = withUser(req, uuid.New())
		rr := httptest.NewRecorder()
		handler.Messages(rr, req)
		assertErrorResponse(t, rr, http.StatusBadRequest, message)
	}
}

func TestChatHandler_MarkRead(t *testing.T) {
	friendID := uuid.New()
	handler := NewChatHandler(&mockChatService{
		MarkMessagesAsReadFunc: func(ctx context.Context, userID, gotFriendID uuid.UUID) (int64, error) {
			if gotFriendID != friendID {
				t.Fatalf("unexpected friend %v", gotFriendID)
			}
			return 3, nil
		},
	})

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/mark-read", bytes.NewBufferString(`{"friendId":"`+friendID.String()+`"}`)), uuid.New())
	rr := httptest.NewRecorder()
	handler.MarkRead(rr, req)

	var resp MarkReadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Updated != 3 {
		t.Fatalf("expected 3 updated, got %d", resp.Updated)
	}
}

func TestChatHandler_ConversationsAndUnread(t *testing.T) {
	handler := NewChatHandler(&mockChatService{
		GetUserConversationsFunc: func(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
			return []models.ConversationSummary{{FriendDisplayName: "Bob", UnreadCount: 2}}, nil
		},
		UnreadTotalFunc: func(ctx context.Context, userID uuid.UUID) (int, error) {
			return 2, nil
		},
	})
	userID := uuid.New()

	rr := httptest.NewRecorder()
	handler.Conversations(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/conversations", nil), userID))
	var convs ConversationListResponse
	if err := json.NewDecoder(rr.Body).Decode(&convs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(convs.Conversations) != 1 || convs.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected conversations %+v", convs)
	}

	rr = httptest.NewRecorder()
	handler.UnreadCount(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/unread-count", nil), userID))
	var count UnreadCountResponse
	if err := json.NewDecoder(rr.Body).Decode(&count); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if count.Count != 2 {
		t.Fatalf("expected 2, got %d", count.Count)
	}
}
