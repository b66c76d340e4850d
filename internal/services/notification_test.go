package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/fitchat/internal/models"
	"github.com/HammerMeetNail/fitchat/internal/queue"
)

type fakeRelay struct {
	mu     sync.Mutex
	events map[uuid.UUID][]models.RelayEvent
	err    error
}

func (f *fakeRelay) Publish(ctx context.Context, userID uuid.UUID, event models.RelayEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.events == nil {
		f.events = map[uuid.UUID][]models.RelayEvent{}
	}
	f.events[userID] = append(f.events[userID], event)
	return nil
}

type fakeQueueClient struct {
	tasks []queue.Task
	err   error
}

func (f *fakeQueueClient) Enqueue(ctx context.Context, t queue.Task, opts ...queue.EnqueueOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.tasks = append(f.tasks, t)
	return "id", nil
}

func (f *fakeQueueClient) Close() error { return nil }

type fakePushSender struct {
	sent []PushNotification
}

func (f *fakePushSender) SendToUser(ctx context.Context, userID uuid.UUID, n PushNotification) error {
	f.sent = append(f.sent, n)
	return nil
}

func syncNotificationService(db DB, email EmailServiceInterface) *NotificationService {
	svc := NewNotificationService(db, email, "http://example.com")
	svc.SetAsync(func(fn func()) { fn() })
	return svc
}

func TestNotificationService_MarkReadAndUnreadCountAndCleanupOld(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()

	var cutoff time.Time
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			switch {
			case strings.Contains(sql, "UPDATE notifications SET read_at"):
				return fakeCommandTag{rowsAffected: 0}, nil
			case strings.Contains(sql, "DELETE FROM notifications WHERE created_at"):
				cutoff = args[0].(time.Time)
				return fakeCommandTag{rowsAffected: 1}, nil
			default:
				t.Fatalf("unexpected exec sql: %q", sql)
				return fakeCommandTag{}, nil
			}
		},
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if !strings.Contains(sql, "SELECT COUNT(*) FROM notifications") {
				t.Fatalf("unexpected query sql: %q", sql)
			}
			return rowFromValues(7)
		},
	}

	svc := NewNotificationService(db, nil, "http://example.com")

	if err := svc.MarkRead(context.Background(), userID, notificationID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
	count, err := svc.UnreadCount(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected count 7, got %d", count)
	}
	if err := svc.CleanupOld(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if age := time.Since(cutoff); age < DefaultNotificationTTL-time.Minute || age > DefaultNotificationTTL+time.Minute {
		t.Fatalf("expected 30 day cutoff, got %v", age)
	}
}

func TestNotificationService_List_UnreadOnlyFilters(t *testing.T) {
	userID := uuid.New()
	var gotSQL string
	var gotArgs []any
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			gotSQL = sql
			gotArgs = args
			return &fakeRows{rows: [][]any{}}, nil
		},
	}

	svc := NewNotificationService(db, nil, "http://example.com")
	list, err := svc.List(context.Background(), userID, NotificationListParams{Limit: 1000, UnreadOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil {
		t.Fatal("expected empty slice, not nil")
	}
	if !strings.Contains(gotSQL, "read_at IS NULL") {
		t.Fatalf("expected unread filter, got %q", gotSQL)
	}
	if gotArgs[1] != notificationListMax {
		t.Fatalf("expected clamped limit, got %v", gotArgs[1])
	}
}

func TestNotificationService_NotifyFriendRequestReceived_SendsEmail(t *testing.T) {
	recipientID, actorID, requestID := uuid.New(), uuid.New(), uuid.New()
	notificationID := uuid.New()
	actorName := "Alice"

	var insertSQL string
	var markedSent bool
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case strings.Contains(sql, "INSERT INTO notifications"):
				insertSQL = sql
				if args[1] != string(models.NotificationTypeFriendRequestReceived) {
					t.Fatalf("unexpected notification type %v", args[1])
				}
				return rowFromValues(notificationID)
			case strings.Contains(sql, "FROM notifications n"):
				return rowFromValues(string(models.NotificationTypeFriendRequestReceived), "bob@example.com", "Bob", &actorName)
			default:
				t.Fatalf("unexpected query sql: %q", sql)
				return nil
			}
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if !strings.Contains(sql, "UPDATE notifications SET email_sent_at") {
				t.Fatalf("unexpected exec sql: %q", sql)
			}
			markedSent = true
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}

	var sentTo, sentSubject string
	email := stubEmailService{
		SendNotificationEmailFunc: func(ctx context.Context, toEmail, subject, html, text string) error {
			sentTo = toEmail
			sentSubject = subject
			if !strings.Contains(text, "http://example.com/#friends") {
				t.Fatalf("expected friends link, got %q", text)
			}
			return nil
		},
	}

	svc := syncNotificationService(db, email)
	if err := svc.NotifyFriendRequestReceived(context.Background(), recipientID, actorID, requestID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(insertSQL, "ON CONFLICT DO NOTHING") {
		t.Fatalf("expected idempotent insert, got %q", insertSQL)
	}
	if sentTo != "bob@example.com" || sentSubject != "Alice sent you a friend request" {
		t.Fatalf("unexpected email %q / %q", sentTo, sentSubject)
	}
	if !markedSent {
		t.Fatal("expected email_sent_at stamped")
	}
}

func TestNotificationService_NotifyFriendRequest_EmailFailureIsSwallowed(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "INSERT INTO notifications") {
				return rowFromValues(uuid.New())
			}
			return rowFromValues(string(models.NotificationTypeFriendRequestAccepted), "a@example.com", "Alice", nil)
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			t.Fatal("expected email_sent_at untouched after a failed send")
			return nil, nil
		},
	}
	email := stubEmailService{
		SendNotificationEmailFunc: func(ctx context.Context, toEmail, subject, html, text string) error {
			return downstreamError("resend", errors.New("boom"))
		},
	}

	svc := syncNotificationService(db, email)
	if err := svc.NotifyFriendRequestAccepted(context.Background(), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("expected downstream failure to be swallowed, got %v", err)
	}
}

func TestNotificationService_NotifyFriendRequest_DuplicateSkipsEmail(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	email := stubEmailService{
		SendNotificationEmailFunc: func(ctx context.Context, toEmail, subject, html, text string) error {
			t.Fatal("expected no email for a duplicate notification")
			return nil
		},
	}

	if err := syncNotificationService(db, email).NotifyFriendRequestReceived(context.Background(), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func testMessage() *models.Message {
	sender, receiver := uuid.New(), uuid.New()
	return &models.Message{
		ID:                uuid.New(),
		ConversationID:    models.ConversationID(sender, receiver),
		SenderID:          sender,
		ReceiverID:        receiver,
		Content:           "leg day?",
		MessageType:       models.MessageTypeText,
		Status:            models.MessageStatusSent,
		CreatedAt:         time.Now(),
		SenderDisplayName: "Alice",
	}
}

func TestNotificationService_NotifyMessageReceived_FansOut(t *testing.T) {
	msg := testMessage()
	var recorded bool
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if !strings.Contains(sql, "INSERT INTO notifications") || args[0] != msg.ReceiverID {
				t.Fatalf("unexpected exec %q %v", sql, args)
			}
			recorded = true
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
	relay := &fakeRelay{}
	jobs := &fakeQueueClient{}
	push := &fakePushSender{}

	svc := syncNotificationService(db, nil)
	svc.SetRelay(relay)
	svc.SetQueue(jobs)
	svc.SetPushSender(push)

	if err := svc.NotifyMessageReceived(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recorded {
		t.Fatal("expected durable notification")
	}
	events := relay.events[msg.ReceiverID]
	if len(events) != 1 || events[0].Type != models.RelayEventNewMessage || events[0].MessageID != msg.ID {
		t.Fatalf("unexpected relay events %+v", events)
	}
	if len(jobs.tasks) != 1 || jobs.tasks[0].Type != queue.TypePushNewMessage {
		t.Fatalf("expected push task, got %+v", jobs.tasks)
	}
	payload, err := queue.ParsePushPayload(jobs.tasks[0])
	if err != nil {
		t.Fatalf("unexpected payload error: %v", err)
	}
	if payload.UserID != msg.ReceiverID || payload.Title != "Alice" || payload.Body != "leg day?" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(push.sent) != 0 {
		t.Fatal("expected push to go through the queue")
	}
}

func TestNotificationService_NotifyMessageReceived_FallsBackToInlinePush(t *testing.T) {
	msg := testMessage()
	relay := &fakeRelay{err: errors.New("nats down")}
	jobs := &fakeQueueClient{err: errors.New("redis down")}
	push := &fakePushSender{}

	svc := syncNotificationService(&fakeDB{}, nil)
	svc.SetRelay(relay)
	svc.SetQueue(jobs)
	svc.SetPushSender(push)

	if err := svc.NotifyMessageReceived(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(push.sent) != 1 || push.sent[0].Data["conversation_id"] != msg.ConversationID {
		t.Fatalf("expected inline push, got %+v", push.sent)
	}
}

func TestNotificationService_NotifyMessageReceived_DoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			<-release
			close(done)
			return fakeCommandTag{}, nil
		},
	}

	svc := NewNotificationService(db, nil, "http://example.com")
	if err := svc.NotifyMessageReceived(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected background dispatch to run")
	}
}

func TestNotificationService_NotifyReadReceipt(t *testing.T) {
	reader, sender := uuid.New(), uuid.New()
	relay := &fakeRelay{}
	svc := syncNotificationService(&fakeDB{}, nil)

	if err := svc.NotifyReadReceipt(context.Background(), reader, sender, 3); err != nil {
		t.Fatalf("unexpected error without relay: %v", err)
	}

	svc.SetRelay(relay)
	if err := svc.NotifyReadReceipt(context.Background(), reader, sender, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := relay.events[sender]
	if len(events) != 1 || events[0].Type != models.RelayEventReadReceipt || events[0].Count != 3 || events[0].FromUserID != reader {
		t.Fatalf("unexpected receipt %+v", events)
	}
}

func TestBuildNotificationEmail_EscapesNames(t *testing.T) {
	subject, html, text := buildNotificationEmail(notificationEmailParams{
		Type:          models.NotificationTypeFriendRequestAccepted,
		RecipientName: "<b>Bob</b>",
		ActorName:     "Alice",
		BaseURL:       "http://example.com",
	})
	if subject != "Alice accepted your friend request" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if strings.Contains(html, "<b>Bob</b>") || !strings.Contains(html, "&lt;b&gt;Bob&lt;/b&gt;") {
		t.Fatal("expected recipient name escaped in html")
	}
	if !strings.Contains(text, "http://example.com/#messages") {
		t.Fatalf("expected messages link, got %q", text)
	}
}

func TestPushPreview(t *testing.T) {
	long := &models.Message{MessageType: models.MessageTypeText, Content: strings.Repeat("é", pushPreviewMaxLen+10)}
	if got := []rune(pushPreview(long)); len(got) != pushPreviewMaxLen {
		t.Fatalf("expected truncated preview, got %d runes", len(got))
	}
	if got := pushPreview(&models.Message{MessageType: models.MessageTypeImage}); got != "Sent a photo" {
		t.Fatalf("unexpected image preview %q", got)
	}
}
