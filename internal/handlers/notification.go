package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
	"github.com/HammerMeetNail/fitchat/internal/services"
)

const (
	defaultNotificationPage = 50
	maxNotificationPage     = 100
)

// NotificationFeed is the read side of the notification history. Writes
// happen inside the friend and message services.
type NotificationFeed interface {
	List(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type NotificationHandler struct {
	feed NotificationFeed
}

func NewNotificationHandler(feed NotificationFeed) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

type NotificationUnreadCountResponse struct {
	Count int `json:"count"`
}

// List returns the newest notifications. ?unread=1 (or true) hides read ones;
// ?limit is capped at 100.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, ok := queryInt(r, "limit", defaultNotificationPage)
	if !ok || limit <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	limit = min(limit, maxNotificationPage)

	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unread filter")
			return
		}
		unreadOnly = parsed
	}

	notifications, err := h.feed.List(r.Context(), user.ID, services.NotificationListParams{
		Limit:      limit,
		UnreadOnly: unreadOnly,
	})
	if err != nil {
		writeServiceError(w, err, "listing notifications")
		return
	}

	writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: notifications})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	notificationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	if err := h.feed.MarkRead(r.Context(), user.ID, notificationID); err != nil {
		writeServiceError(w, err, "marking notification read")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notification marked as read"})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	count, err := h.feed.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "counting notifications")
		return
	}

	writeJSON(w, http.StatusOK, NotificationUnreadCountResponse{Count: count})
}
