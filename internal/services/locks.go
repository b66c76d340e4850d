package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// orderedPair returns the two ids in the same order ConversationID uses, so
// every transaction touching a pair takes its row locks in one global order.
func orderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// lockFriendPair row-locks both users before the pair's friend state is
// read, so concurrent requests between the same two users serialize.
func lockFriendPair(ctx context.Context, q DBConn, a, b uuid.UUID) error {
	if a == b {
		return ErrCannotFriendSelf
	}
	first, second := orderedPair(a, b)

	rows, err := q.Query(ctx,
		`SELECT id FROM users WHERE id = ANY($1) ORDER BY id::text FOR UPDATE`,
		[]uuid.UUID{first, second},
	)
	if err != nil {
		return fmt.Errorf("locking friend pair: %w", err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("locking friend pair: %w", err)
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("locking friend pair: %w", err)
	}
	if locked != 2 {
		return ErrUserNotFound
	}
	return nil
}
