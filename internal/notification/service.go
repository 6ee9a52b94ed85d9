package notification

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/event"
)

const (
	KindEnrollmentApproved = "enrollment_approved"
	KindEnrollmentRejected = "enrollment_rejected"
	KindDiscussionReply    = "discussion_reply"
	KindMessage            = "message"

	listLimit = 10
)

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

type Service struct {
	eb *event.Bus
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	s := &Service{
		eb: c.EventBus,
		db: c.DB,
	}

	s.eb.Subscribe(domain.EventNameEnrollmentApproved, func(ctx context.Context, e event.Event) error {
		_, err := s.Create(ctx, Approved(e.(domain.EventEnrollmentApproved).Request))
		return err
	})
	s.eb.Subscribe(domain.EventNameEnrollmentRejected, func(ctx context.Context, e event.Event) error {
		_, err := s.Create(ctx, Rejected(e.(domain.EventEnrollmentRejected).Request))
		return err
	})
	s.eb.Subscribe(domain.EventNameDiscussionReplied, func(ctx context.Context, e event.Event) error {
		_, err := s.Create(ctx, Replied(e.(domain.EventDiscussionReplied)))
		return err
	})
	s.eb.Subscribe(domain.EventNameMessageSent, func(ctx context.Context, e event.Event) error {
		_, err := s.Create(ctx, MessageReceived(e.(domain.EventMessageSent)))
		return err
	})

	return s
}

// Approved is the notification a student gets when their payment is verified.
func Approved(r domain.EnrollmentRequest) domain.Notification {
	return domain.Notification{
		UserID:  r.UserID,
		Kind:    KindEnrollmentApproved,
		Message: fmt.Sprintf("Your enrollment in %s has been approved. Happy learning!", r.CourseName),
	}
}

// Rejected is the notification a student gets when their payment could not be verified.
func Rejected(r domain.EnrollmentRequest) domain.Notification {
	return domain.Notification{
		UserID:  r.UserID,
		Kind:    KindEnrollmentRejected,
		Message: fmt.Sprintf("Your enrollment request for %s was rejected. Payment %s could not be verified.", r.CourseName, r.UTRNumber),
	}
}

// Replied tells a discussion author that someone answered.
func Replied(e domain.EventDiscussionReplied) domain.Notification {
	return domain.Notification{
		UserID:  e.Discussion.UserID,
		Kind:    KindDiscussionReply,
		Message: fmt.Sprintf("%s replied to your discussion %q", e.Reply.Author, e.Discussion.Title),
	}
}

func MessageReceived(e domain.EventMessageSent) domain.Notification {
	return domain.Notification{
		UserID:  e.Message.ReceiverID,
		Kind:    KindMessage,
		Message: fmt.Sprintf("You have a new message from %s", e.SenderName),
	}
}

// Create stores n and announces it with notification.created.
func (s *Service) Create(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	n.ID = id
	n.Read = false
	n.CreatedAt = time.Now().UTC()

	if _, err := s.db.Exec(ctx, `
INSERT INTO notifications (id, user_id, kind, message, read, created_at)
VALUES ($1, $2, $3, $4, $5, $6);`,
		n.ID, n.UserID, n.Kind, n.Message, n.Read, n.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	s.eb.Publish(ctx, domain.EventNotificationCreated{
		Notification: n,
	})

	return &n, nil
}

type ListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// List returns the latest notifications of a user and how many of all their notifications
// are unread.
func (s *Service) List(ctx context.Context, userID domain.ID) (*ListResponse, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, user_id, kind, message, read, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;`, userID, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	ns, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Notification, error) {
		var n domain.Notification
		err := r.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}

	res := &ListResponse{Notifications: ns}
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read;`, userID).Scan(&res.Unread); err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	return res, nil
}

// MarkRead marks one notification of the user as read.
func (s *Service) MarkRead(ctx context.Context, userID, id domain.ID) error {
	var found bool
	err := s.db.QueryRow(ctx, `
UPDATE notifications SET read = true
WHERE id = $1 AND user_id = $2
RETURNING true;`, id, userID).Scan(&found)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NotFound("notification not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every notification of the user as read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID domain.ID) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET read = true WHERE user_id = $1 AND NOT read;`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}
