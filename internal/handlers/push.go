package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type PushTokenService interface {
	RegisterToken(ctx context.Context, userID uuid.UUID, token, platform string) error
	UnregisterToken(ctx context.Context, userID uuid.UUID, token string) error
}

type PushHandler struct {
	pushService PushTokenService
}

func NewPushHandler(pushService PushTokenService) *PushHandler {
	return &PushHandler{pushService: pushService}
}

type PushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *PushHandler) Register(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.pushService.RegisterToken(r.Context(), user.ID, req.Token, req.Platform); err != nil {
		writeServiceError(w, err, "registering push token")
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Push token registered"})
}

func (h *PushHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.pushService.UnregisterToken(r.Context(), user.ID, req.Token); err != nil {
		writeServiceError(w, err, "removing push token")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Push token removed"})
}
