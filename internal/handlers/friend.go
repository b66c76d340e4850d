package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

type FriendService interface {
	SendFriendRequest(ctx context.Context, senderID uuid.UUID, receiverEmail, message string) (*models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID, accepterID uuid.UUID) (*models.FriendRequest, error)
	RejectFriendRequest(ctx context.Context, requestID, rejecterID uuid.UUID) (*models.FriendRequest, error)
	CancelFriendRequest(ctx context.Context, requestID, senderID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error
	GetFriendshipStatus(ctx context.Context, userID, otherID uuid.UUID) (models.FriendshipStatus, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListRequests(ctx context.Context, userID uuid.UUID) (*models.FriendRequestLists, error)
}

type UserSearcher interface {
	Search(ctx context.Context, requesterID uuid.UUID, query string) ([]models.UserSearchResult, error)
}

type FriendHandler struct {
	friendService FriendService
	users         UserSearcher
}

func NewFriendHandler(friendService FriendService, users UserSearcher) *FriendHandler {
	return &FriendHandler{friendService: friendService, users: users}
}

type SendFriendRequestRequest struct {
	FriendEmail string `json:"friendEmail"`
	Message     string `json:"message"`
}

type FriendRequestResponse struct {
	Request *models.FriendRequest `json:"request"`
}

type FriendListResponse struct {
	Friends []models.Friend `json:"friends"`
}

type FriendshipStatusResponse struct {
	Status models.FriendshipStatus `json:"status"`
}

type UserSearchResponse struct {
	Users []models.UserSearchResult `json:"users"`
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "listing friends")
		return
	}

	writeJSON(w, http.StatusOK, FriendListResponse{Friends: friends})
}

func (h *FriendHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(query)) < 2 {
		writeError(w, http.StatusBadRequest, "Search query must be at least 2 characters")
		return
	}

	results, err := h.users.Search(r.Context(), user.ID, query)
	if err != nil {
		writeServiceError(w, err, "searching users")
		return
	}

	writeJSON(w, http.StatusOK, UserSearchResponse{Users: results})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendFriendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FriendEmail) == "" {
		writeError(w, http.StatusBadRequest, "Friend email is required")
		return
	}

	request, err := h.friendService.SendFriendRequest(r.Context(), user.ID, req.FriendEmail, req.Message)
	if err != nil {
		writeServiceError(w, err, "sending friend request")
		return
	}

	writeJSON(w, http.StatusCreated, FriendRequestResponse{Request: request})
}

func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	lists, err := h.friendService.ListRequests(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "listing friend requests")
		return
	}

	writeJSON(w, http.StatusOK, lists)
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.friendService.AcceptFriendRequest, "accepting friend request")
}

func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.friendService.RejectFriendRequest, "rejecting friend request")
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, uuid.UUID) (*models.FriendRequest, error), action string) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := parseRequestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid friend request ID")
		return
	}

	request, err := fn(r.Context(), requestID, user.ID)
	if err != nil {
		writeServiceError(w, err, action)
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestResponse{Request: request})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := parseRequestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid friend request ID")
		return
	}

	if err := h.friendService.CancelFriendRequest(r.Context(), requestID, user.ID); err != nil {
		writeServiceError(w, err, "cancelling friend request")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend request cancelled"})
}

func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
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

	if err := h.friendService.RemoveFriend(r.Context(), user.ID, friendID); err != nil {
		writeServiceError(w, err, "removing friend")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend removed"})
}

func (h *FriendHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	otherID, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	status, err := h.friendService.GetFriendshipStatus(r.Context(), user.ID, otherID)
	if err != nil {
		writeServiceError(w, err, "reading friendship status")
		return
	}

	writeJSON(w, http.StatusOK, FriendshipStatusResponse{Status: status})
}

func parseRequestID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}
