package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

func TestOrderedPair_MatchesConversationOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		a, b := uuid.New(), uuid.New()
		first, second := orderedPair(a, b)
		if got := first.String() + "_" + second.String(); got != models.ConversationID(a, b) {
			t.Fatalf("pair order %q disagrees with conversation id %q", got, models.ConversationID(a, b))
		}
		if f2, s2 := orderedPair(b, a); f2 != first || s2 != second {
			t.Fatal("expected argument order not to matter")
		}
	}
}

func TestLockFriendPair(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

	tests := []struct {
		name     string
		found    int
		queryErr error
		rowsErr  error
		wantErr  error
		wantText string
	}{
		{name: "both users locked", found: 2},
		{name: "missing user", found: 1, wantErr: ErrUserNotFound},
		{name: "query error", queryErr: errors.New("conn reset"), wantText: "locking friend pair"},
		{name: "iteration error", found: 2, rowsErr: errors.New("stream closed"), wantText: "locking friend pair"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIDs []uuid.UUID
			db := &fakeDB{
				QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
					if !strings.Contains(sql, "FROM users") || !strings.Contains(sql, "FOR UPDATE") {
						t.Fatalf("unexpected sql: %q", sql)
					}
					if tt.queryErr != nil {
						return nil, tt.queryErr
					}
					gotIDs = args[0].([]uuid.UUID)
					rows := [][]any{}
					for _, id := range gotIDs[:tt.found] {
						rows = append(rows, []any{id})
					}
					return &fakeRows{rows: rows, err: tt.rowsErr}, nil
				},
			}

			err := lockFriendPair(context.Background(), db, high, low)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.wantText != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantText) {
					t.Fatalf("expected error containing %q, got %v", tt.wantText, err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(gotIDs) != 2 || gotIDs[0] != low || gotIDs[1] != high {
					t.Fatalf("expected ids in pair order, got %v", gotIDs)
				}
			}
		})
	}
}

func TestLockFriendPair_SelfIsRejectedWithoutQuery(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			t.Fatal("no query expected")
			return nil, nil
		},
	}

	if err := lockFriendPair(context.Background(), db, id, id); !errors.Is(err, ErrCannotFriendSelf) {
		t.Fatalf("expected ErrCannotFriendSelf, got %v", err)
	}
}
