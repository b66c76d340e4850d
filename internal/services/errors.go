package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error a service returns to a handler wraps exactly one
// of these, so callers can branch with errors.Is on the kind or on the
// specific error.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication required")
	ErrAuthorization  = errors.New("not authorized")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrNotFriends     = errors.New("users are not friends")
	ErrDownstream     = errors.New("downstream provider failed")
)

func kindError(kind error, msg string) error {
	return fmt.Errorf("%s: %w", msg, kind)
}

var (
	ErrUserNotFound   = kindError(ErrNotFound, "user not found")
	ErrInvalidSession = kindError(ErrAuthentication, "invalid session")

	ErrCannotFriendSelf      = kindError(ErrValidation, "cannot send a friend request to yourself")
	ErrFriendRequestNotFound = kindError(ErrNotFound, "friend request not found")
	ErrNotRequestRecipient   = kindError(ErrAuthorization, "only the recipient can respond to this request")
	ErrNotRequestSender      = kindError(ErrAuthorization, "only the sender can cancel this request")
	ErrAlreadyFriends        = kindError(ErrConflict, "already friends")
	ErrPendingRequestExists  = kindError(ErrConflict, "a pending friend request already exists")
	ErrFriendNotFound        = kindError(ErrNotFound, "friend not found")

	ErrEmptyMessage       = kindError(ErrValidation, "message content is required")
	ErrMessageTooLong     = kindError(ErrValidation, "message content is too long")
	ErrInvalidMessageType = kindError(ErrValidation, "invalid message type")
	ErrInvalidClientID    = kindError(ErrValidation, "invalid client message id")

	ErrNotificationNotFound = kindError(ErrNotFound, "notification not found")
	ErrInvalidPushToken     = kindError(ErrValidation, "invalid push token")
)

// downstreamError marks a failure from an email or push provider.
func downstreamError(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrDownstream, err)
}
