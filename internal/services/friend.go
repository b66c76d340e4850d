package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/fitchat/internal/logging"
	"github.com/HammerMeetNail/fitchat/internal/models"
)

const (
	friendRequestMessageMaxLen = 500

	edgeWriteAttempts = 3
	edgeWriteBackoff  = 50 * time.Millisecond

	// Orphan edges younger than this may belong to an accept still in flight.
	edgeRepairGrace     = time.Minute
	edgeRepairBatchSize = 500
)

// mutualEdgesSQL is the friendship predicate for the pair ($1, $2). A single
// edge is an accept in flight or an orphan, never a friendship.
const mutualEdgesSQL = `EXISTS(SELECT 1 FROM friend_edges WHERE user_id = $1 AND friend_id = $2)
			  AND EXISTS(SELECT 1 FROM friend_edges WHERE user_id = $2 AND friend_id = $1)`

var ErrFriendRequestMessageTooLong = kindError(ErrValidation, "friend request message is too long")

type FriendService struct {
	db                  DB
	users               UserDirectory
	notificationService NotificationServiceInterface

	edgeAttempts int
	edgeBackoff  time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewFriendService(db DB, users UserDirectory) *FriendService {
	return &FriendService{
		db:           db,
		users:        users,
		edgeAttempts: edgeWriteAttempts,
		edgeBackoff:  edgeWriteBackoff,
		sleep:        sleepContext,
	}
}

func (s *FriendService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

func (s *FriendService) SendFriendRequest(ctx context.Context, senderID uuid.UUID, receiverEmail, message string) (*models.FriendRequest, error) {
	message = strings.TrimSpace(message)
	if len([]rune(message)) > friendRequestMessageMaxLen {
		return nil, ErrFriendRequestMessageTooLong
	}

	receiver, err := s.users.GetByEmail(ctx, receiverEmail)
	if err != nil {
		return nil, err
	}
	if receiver.ID == senderID {
		return nil, ErrCannotFriendSelf
	}
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	req := &models.FriendRequest{}
	err = inTx(ctx, s.db, func(tx Tx) error {
		if err := lockFriendPair(ctx, tx, senderID, receiver.ID); err != nil {
			return err
		}

		var friends, hasPending bool
		err := tx.QueryRow(ctx,
			`SELECT
				`+mutualEdgesSQL+`,
				EXISTS(SELECT 1 FROM friend_requests
				       WHERE status = 'pending'
				         AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)))`,
			senderID, receiver.ID,
		).Scan(&friends, &hasPending)
		if err != nil {
			return fmt.Errorf("checking existing relationship: %w", err)
		}
		if friends {
			return ErrAlreadyFriends
		}
		if hasPending {
			return ErrPendingRequestExists
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO friend_requests (sender_id, receiver_id, message, status)
			 VALUES ($1, $2, $3, 'pending')
			 RETURNING id, sender_id, receiver_id, message, status, created_at, responded_at`,
			senderID, receiver.ID, message,
		).Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Message, &req.Status, &req.CreatedAt, &req.RespondedAt)
		if isUniqueViolation(err, "friend_requests_one_pending") {
			return ErrPendingRequestExists
		}
		if err != nil {
			return fmt.Errorf("creating friend request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	req.Sender = searchResult(sender)
	req.Receiver = searchResult(receiver)

	if s.notificationService != nil {
		if err := s.notificationService.NotifyFriendRequestReceived(ctx, receiver.ID, senderID, req.ID); err != nil {
			logging.Error("Failed to create friend request notification", map[string]interface{}{
				"error":      err.Error(),
				"request_id": req.ID.String(),
			})
		}
	}

	return req, nil
}

// AcceptFriendRequest moves a pending request to accepted and then writes
// both friend edges. The second edge is retried; if it still fails the first
// edge is removed and the request goes back to pending.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, requestID, accepterID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.getPendingForRecipient(ctx, requestID, accepterID)
	if err != nil {
		return nil, err
	}

	if err := s.transitionRequest(ctx, req, models.FriendRequestAccepted); err != nil {
		return nil, err
	}

	if err := s.addEdge(ctx, req.ReceiverID, req.SenderID); err != nil {
		s.revertToPending(ctx, req.ID)
		return nil, fmt.Errorf("adding friend edge: %w", err)
	}

	err = s.retry(ctx, func() error {
		return s.addEdge(ctx, req.SenderID, req.ReceiverID)
	})
	if err != nil {
		if cerr := s.deleteEdge(ctx, req.ReceiverID, req.SenderID); cerr != nil {
			logging.Error("Failed to compensate friend edge", map[string]interface{}{
				"error":      cerr.Error(),
				"request_id": req.ID.String(),
			})
		}
		s.revertToPending(ctx, req.ID)
		return nil, fmt.Errorf("adding reverse friend edge: %w", err)
	}

	s.resolveParticipants(ctx, req)

	if s.notificationService != nil {
		if err := s.notificationService.NotifyFriendRequestAccepted(ctx, req.SenderID, accepterID, req.ID); err != nil {
			logging.Error("Failed to create friend accept notification", map[string]interface{}{
				"error":      err.Error(),
				"request_id": req.ID.String(),
			})
		}
	}

	return req, nil
}

func (s *FriendService) RejectFriendRequest(ctx context.Context, requestID, rejecterID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.getPendingForRecipient(ctx, requestID, rejecterID)
	if err != nil {
		return nil, err
	}
	if err := s.transitionRequest(ctx, req, models.FriendRequestRejected); err != nil {
		return nil, err
	}
	s.resolveParticipants(ctx, req)
	return req, nil
}

// CancelFriendRequest lets the sender withdraw a request that is still pending.
func (s *FriendService) CancelFriendRequest(ctx context.Context, requestID, senderID uuid.UUID) error {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.SenderID != senderID {
		return ErrNotRequestSender
	}

	result, err := s.db.Exec(ctx,
		`DELETE FROM friend_requests WHERE id = $1 AND sender_id = $2 AND status = 'pending'`,
		requestID, senderID,
	)
	if err != nil {
		return fmt.Errorf("canceling friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendRequestNotFound
	}
	return nil
}

// RemoveFriend deletes both edges in one statement, so removal never leaves
// an orphan edge behind.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM friend_edges
		 WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`,
		userID, friendID,
	)
	if err != nil {
		return fmt.Errorf("removing friend: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendNotFound
	}
	return nil
}

func (s *FriendService) GetFriendshipStatus(ctx context.Context, userID, otherID uuid.UUID) (models.FriendshipStatus, error) {
	var friends, outgoing, incoming bool
	err := s.db.QueryRow(ctx,
		`SELECT
			`+mutualEdgesSQL+`,
			EXISTS(SELECT 1 FROM friend_requests WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'),
			EXISTS(SELECT 1 FROM friend_requests WHERE sender_id = $2 AND receiver_id = $1 AND status = 'pending')`,
		userID, otherID,
	).Scan(&friends, &outgoing, &incoming)
	if err != nil {
		return models.FriendshipNone, fmt.Errorf("getting friendship status: %w", err)
	}

	switch {
	case friends:
		return models.FriendshipFriends, nil
	case outgoing:
		return models.FriendshipPendingOutgoing, nil
	case incoming:
		return models.FriendshipPendingIncoming, nil
	default:
		return models.FriendshipNone, nil
	}
}

func (s *FriendService) IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	status, err := s.GetFriendshipStatus(ctx, userID, otherID)
	if err != nil {
		return false, err
	}
	return status == models.FriendshipFriends, nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT fe.friend_id, u.display_name, u.email, fe.created_at
		 FROM friend_edges fe
		 JOIN friend_edges back ON back.user_id = fe.friend_id AND back.friend_id = fe.user_id
		 JOIN users u ON u.id = fe.friend_id
		 WHERE fe.user_id = $1
		 ORDER BY u.display_name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	friends := []models.Friend{}
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.UserID, &f.DisplayName, &f.Email, &f.Since); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friends: %w", err)
	}
	return friends, nil
}

// ListRequests returns the pending requests the user has received and sent.
func (s *FriendService) ListRequests(ctx context.Context, userID uuid.UUID) (*models.FriendRequestLists, error) {
	rows, err := s.db.Query(ctx,
		`SELECT fr.id, fr.sender_id, fr.receiver_id, fr.message, fr.status, fr.created_at, fr.responded_at,
		        su.display_name, su.email, ru.display_name, ru.email
		 FROM friend_requests fr
		 JOIN users su ON su.id = fr.sender_id
		 JOIN users ru ON ru.id = fr.receiver_id
		 WHERE fr.status = 'pending' AND (fr.sender_id = $1 OR fr.receiver_id = $1)
		 ORDER BY fr.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}
	defer rows.Close()

	lists := &models.FriendRequestLists{
		Incoming: []models.FriendRequest{},
		Outgoing: []models.FriendRequest{},
	}
	for rows.Next() {
		var r models.FriendRequest
		sender := &models.UserSearchResult{}
		receiver := &models.UserSearchResult{}
		if err := rows.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &r.Message, &r.Status, &r.CreatedAt, &r.RespondedAt,
			&sender.DisplayName, &sender.Email, &receiver.DisplayName, &receiver.Email); err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		sender.ID = r.SenderID
		receiver.ID = r.ReceiverID
		r.Sender = sender
		r.Receiver = receiver

		if r.ReceiverID == userID {
			lists.Incoming = append(lists.Incoming, r)
		} else {
			lists.Outgoing = append(lists.Outgoing, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friend requests: %w", err)
	}
	return lists, nil
}

// RepairAsymmetricEdges heals edges left one-sided by an accept that crashed
// between its two writes. An orphan backed by an accepted request gets its
// reverse edge; any other orphan is removed. Returns how many were fixed.
func (s *FriendService) RepairAsymmetricEdges(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT fe.user_id, fe.friend_id,
		        EXISTS(SELECT 1 FROM friend_requests fr
		               WHERE fr.status = 'accepted'
		                 AND ((fr.sender_id = fe.user_id AND fr.receiver_id = fe.friend_id)
		                   OR (fr.sender_id = fe.friend_id AND fr.receiver_id = fe.user_id)))
		 FROM friend_edges fe
		 WHERE NOT EXISTS (SELECT 1 FROM friend_edges r WHERE r.user_id = fe.friend_id AND r.friend_id = fe.user_id)
		   AND fe.created_at < $1
		 LIMIT $2`,
		time.Now().Add(-edgeRepairGrace), edgeRepairBatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("finding asymmetric edges: %w", err)
	}

	type orphan struct {
		userID, friendID uuid.UUID
		backed           bool
	}
	var orphans []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.userID, &o.friendID, &o.backed); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning asymmetric edge: %w", err)
		}
		orphans = append(orphans, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating asymmetric edges: %w", err)
	}

	repaired := 0
	for _, o := range orphans {
		var err error
		if o.backed {
			err = s.addEdge(ctx, o.friendID, o.userID)
		} else {
			err = s.deleteEdge(ctx, o.userID, o.friendID)
		}
		if err != nil {
			logging.Error("Failed to repair friend edge", map[string]interface{}{
				"error":     err.Error(),
				"user_id":   o.userID.String(),
				"friend_id": o.friendID.String(),
				"backed":    o.backed,
			})
			continue
		}
		repaired++
	}

	if repaired > 0 {
		logging.Info("Repaired asymmetric friend edges", map[string]interface{}{
			"count": repaired,
		})
	}
	return repaired, nil
}

func (s *FriendService) getRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, error) {
	req := &models.FriendRequest{}
	err := s.db.QueryRow(ctx,
		`SELECT id, sender_id, receiver_id, message, status, created_at, responded_at
		 FROM friend_requests WHERE id = $1`,
		requestID,
	).Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Message, &req.Status, &req.CreatedAt, &req.RespondedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting friend request: %w", err)
	}
	return req, nil
}

func (s *FriendService) getPendingForRecipient(ctx context.Context, requestID, userID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != userID {
		return nil, ErrNotRequestRecipient
	}
	if req.Status != models.FriendRequestPending {
		return nil, ErrFriendRequestNotFound
	}
	return req, nil
}

// transitionRequest only matches a pending row, so two racing responses
// cannot both succeed.
func (s *FriendService) transitionRequest(ctx context.Context, req *models.FriendRequest, status models.FriendRequestStatus) error {
	err := s.db.QueryRow(ctx,
		`UPDATE friend_requests SET status = $3, responded_at = NOW()
		 WHERE id = $1 AND receiver_id = $2 AND status = 'pending'
		 RETURNING status, responded_at`,
		req.ID, req.ReceiverID, string(status),
	).Scan(&req.Status, &req.RespondedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrFriendRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("updating friend request: %w", err)
	}
	return nil
}

func (s *FriendService) revertToPending(ctx context.Context, requestID uuid.UUID) {
	_, err := s.db.Exec(ctx,
		`UPDATE friend_requests SET status = 'pending', responded_at = NULL
		 WHERE id = $1 AND status = 'accepted'`,
		requestID,
	)
	if err != nil {
		logging.Error("Failed to revert friend request to pending", map[string]interface{}{
			"error":      err.Error(),
			"request_id": requestID.String(),
		})
	}
}

func (s *FriendService) addEdge(ctx context.Context, userID, friendID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO friend_edges (user_id, friend_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, friend_id) DO NOTHING`,
		userID, friendID,
	)
	if err != nil {
		return fmt.Errorf("insert friend edge: %w", err)
	}
	return nil
}

func (s *FriendService) deleteEdge(ctx context.Context, userID, friendID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM friend_edges WHERE user_id = $1 AND friend_id = $2`,
		userID, friendID,
	)
	if err != nil {
		return fmt.Errorf("delete friend edge: %w", err)
	}
	return nil
}

// retry runs fn up to edgeAttempts times, doubling the pause between tries.
func (s *FriendService) retry(ctx context.Context, fn func() error) error {
	delay := s.edgeBackoff
	var err error
	for attempt := 1; attempt <= s.edgeAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == s.edgeAttempts {
			break
		}
		logging.Warn("Retrying friend edge write", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
		if serr := s.sleep(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
		delay *= 2
	}
	return err
}

func (s *FriendService) resolveParticipants(ctx context.Context, req *models.FriendRequest) {
	if sender, err := s.users.GetByID(ctx, req.SenderID); err == nil {
		req.Sender = searchResult(sender)
	}
	if receiver, err := s.users.GetByID(ctx, req.ReceiverID); err == nil {
		req.Receiver = searchResult(receiver)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
