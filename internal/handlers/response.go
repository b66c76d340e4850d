package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HammerMeetNail/fitchat/internal/logging"
	"github.com/HammerMeetNail/fitchat/internal/models"
	"github.com/HammerMeetNail/fitchat/internal/services"
)

type contextKey string

const userContextKey contextKey = "user"

// maxBodyBytes caps JSON request bodies. The largest legitimate body is a
// chat message of a few kilobytes.
const maxBodyBytes = 64 << 10

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// serviceErrorMessages gives the user-facing text for specific service errors.
// Anything not listed falls back to its kind.
var serviceErrorMessages = []struct {
	err     error
	message string
}{
	{services.ErrUserNotFound, "User not found"},
	{services.ErrCannotFriendSelf, "Cannot send a friend request to yourself"},
	{services.ErrFriendRequestMessageTooLong, "Friend request message is too long"},
	{services.ErrFriendRequestNotFound, "Friend request not found"},
	{services.ErrNotRequestRecipient, "Only the recipient can respond to this request"},
	{services.ErrNotRequestSender, "Only the sender can cancel this request"},
	{services.ErrAlreadyFriends, "Already friends"},
	{services.ErrPendingRequestExists, "A pending friend request already exists"},
	{services.ErrFriendNotFound, "Friend not found"},
	{services.ErrEmptyMessage, "Message content is required"},
	{services.ErrMessageTooLong, "Message content is too long"},
	{services.ErrInvalidMessageType, "Invalid message type"},
	{services.ErrInvalidClientID, "Invalid client message ID"},
	{services.ErrNotificationNotFound, "Notification not found"},
	{services.ErrInvalidPushToken, "Invalid push token"},
	{services.ErrInvalidSession, "Authentication required"},
}

var serviceErrorKinds = []struct {
	kind    error
	status  int
	message string
}{
	{services.ErrValidation, http.StatusBadRequest, "Invalid request"},
	{services.ErrAuthentication, http.StatusUnauthorized, "Authentication required"},
	{services.ErrAuthorization, http.StatusForbidden, "Not authorized"},
	{services.ErrNotFound, http.StatusNotFound, "Not found"},
	{services.ErrConflict, http.StatusConflict, "Conflict"},
	{services.ErrNotFriends, http.StatusForbidden, "You can only message friends"},
}

// writeServiceError maps a service error to a status and a safe message.
// Unknown errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	for _, k := range serviceErrorKinds {
		if !errors.Is(err, k.kind) {
			continue
		}
		message := k.message
		for _, m := range serviceErrorMessages {
			if errors.Is(err, m.err) {
				message = m.message
				break
			}
		}
		writeError(w, k.status, message)
		return
	}

	logging.Error("Error "+action, map[string]interface{}{"error": err.Error()})
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
