package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
	"github.com/HammerMeetNail/fitchat/internal/services"
)

type ChatService interface {
	SendMessage(ctx context.Context, params services.SendMessageParams) (*models.Message, error)
	GetConversationMessages(ctx context.Context, userID, friendID uuid.UUID, limit, skip int) ([]models.Message, error)
	MarkMessagesAsRead(ctx context.Context, userID, friendID uuid.UUID) (int64, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	UnreadTotal(ctx context.Context, userID uuid.UUID) (int, error)
}

type ChatHandler struct {
	chatService ChatService
}

func NewChatHandler(chatService ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type SendMessageRequest struct {
	ReceiverID      string `json:"receiverId"`
	Content         string `json:"content"`
	MessageType     string `json:"messageType"`
	ClientMessageID string `json:"clientMessageId"`
}

type MarkReadRequest struct {
	FriendID string `json:"friendId"`
}

type ChatMessageResponse struct {
	Message *models.Message `json:"message"`
}

type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

type ConversationListResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

func (h *ChatHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversations, err := h.chatService.GetUserConversations(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "listing conversations")
		return
	}

	writeJSON(w, http.StatusOK, ConversationListResponse{Conversations: conversations})
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friendID, err := uuid.Parse(r.PathValue("friendId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid friend ID")
		return
	}

	limit, ok := queryInt(r, "limit", services.DefaultConversationPage)
	if !ok || limit <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	skip, ok := queryInt(r, "skip", 0)
	if !ok || skip < 0 {
		writeError(w, http.StatusBadRequest, "Invalid skip")
		return
	}

	messages, err := h.chatService.GetConversationMessages(r.Context(), user.ID, friendID, limit, skip)
	if err != nil {
		writeServiceError(w, err, "listing messages")
		return
	}

	writeJSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid receiver ID")
		return
	}

	msg, err := h.chatService.SendMessage(r.Context(), services.SendMessageParams{
		SenderID:        user.ID,
		ReceiverID:      receiverID,
		Content:         req.Content,
		MessageType:     models.MessageType(req.MessageType),
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		writeServiceError(w, err, "sending message")
		return
	}

	writeJSON(w, http.StatusCreated, ChatMessageResponse{Message: msg})
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req MarkReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	friendID, err := uuid.Parse(req.FriendID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid friend ID")
		return
	}

	updated, err := h.chatService.MarkMessagesAsRead(r.Context(), user.ID, friendID)
	if err != nil {
		writeServiceError(w, err, "marking messages read")
		return
	}

	writeJSON(w, http.StatusOK, MarkReadResponse{Updated: updated})
}

func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	count, err := h.chatService.UnreadTotal(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "counting unread messages")
		return
	}

	writeJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
