package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

type PresenceService interface {
	CheckForNewMessages(ctx context.Context, userID, friendID uuid.UUID, since time.Time) (*models.PollResult, error)
	SetTyping(ctx context.Context, userID, friendID uuid.UUID, isTyping bool) error
}

type PresenceHandler struct {
	presenceService PresenceService
}

func NewPresenceHandler(presenceService PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

type TypingRequest struct {
	FriendID string `json:"friendId"`
	IsTyping bool   `json:"isTyping"`
}

type TypingResponse struct {
	IsTyping bool `json:"isTyping"`
}

// Poll returns messages newer than ?since= (RFC 3339). An empty since
// returns the conversation from the start, capped by the batch limit.
func (h *PresenceHandler) Poll(w http.ResponseWriter, r *http.Request) {
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

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since timestamp")
			return
		}
	}

	result, err := h.presenceService.CheckForNewMessages(r.Context(), user.ID, friendID, since)
	if err != nil {
		writeServiceError(w, err, "polling messages")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PresenceHandler) Typing(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req TypingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	friendID, err := uuid.Parse(req.FriendID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid friend ID")
		return
	}

	if err := h.presenceService.SetTyping(r.Context(), user.ID, friendID, req.IsTyping); err != nil {
		writeServiceError(w, err, "setting typing state")
		return
	}

	writeJSON(w, http.StatusOK, TypingResponse{IsTyping: req.IsTyping})
}
