package services

import (
	"errors"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrUserNotFound, ErrNotFound},
		{ErrFriendRequestNotFound, ErrNotFound},
		{ErrCannotFriendSelf, ErrValidation},
		{ErrNotRequestRecipient, ErrAuthorization},
		{ErrAlreadyFriends, ErrConflict},
		{ErrPendingRequestExists, ErrConflict},
		{ErrEmptyMessage, ErrValidation},
		{ErrInvalidSession, ErrAuthentication},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("expected %q to wrap %q", tt.err, tt.kind)
		}
	}
}

func TestDownstreamErrorWrapsBoth(t *testing.T) {
	cause := errors.New("503 from provider")
	err := downstreamError("resend", cause)
	if !errors.Is(err, ErrDownstream) {
		t.Fatal("expected ErrDownstream")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be preserved")
	}
}
