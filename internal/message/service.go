// Package message carries direct messages between students and the instructors of their courses.
package message

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/event"
)

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

type Service struct {
	eb       *event.Bus
	db       *pgxpool.Pool
	validate *validator.Validate
}

func NewService(c Config) *Service {
	return &Service{
		eb:       c.EventBus,
		db:       c.DB,
		validate: validator.New(),
	}
}

type SendRequest struct {
	Sender     domain.User `validate:"-"`
	ReceiverID domain.ID   `validate:"-"`
	CourseID   domain.ID   `validate:"-"`
	Content    string      `validate:"required,max=5000"`
}

// Send delivers a message about a course. Sender and receiver must both take part in it.
func (s *Service) Send(ctx context.Context, req SendRequest) (*domain.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid message: %v", err),
			errors.WithCause(err),
		)
	}
	if req.ReceiverID == req.Sender.ID {
		return nil, errors.InvalidArgument("cannot send a message to yourself")
	}

	m, err := course.MembershipOf(ctx, s.db, req.CourseID, req.Sender.ID)
	if err != nil {
		return nil, err
	}
	if !m.Participant() {
		return nil, errors.New(errors.CodePermissionDenied, errors.WithMessagef("not allowed to send messages in this course"))
	}

	if err := s.userExists(ctx, req.ReceiverID); err != nil {
		return nil, err
	}
	rm, err := course.MembershipOf(ctx, s.db, req.CourseID, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !rm.Participant() {
		return nil, errors.New(errors.CodePermissionDenied, errors.WithMessagef("receiver does not have access to this course"))
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:         id,
		SenderID:   req.Sender.ID,
		ReceiverID: req.ReceiverID,
		CourseID:   req.CourseID,
		Content:    req.Content,
		CreatedAt:  time.Now().UTC(),
	}

	if _, err := s.db.Exec(ctx, `
INSERT INTO messages (id, sender_id, receiver_id, course_id, content, read, created_at)
VALUES ($1, $2, $3, $4, $5, false, $6);`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.CourseID, msg.Content, msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.eb.Publish(ctx, domain.EventMessageSent{
		Message:    *msg,
		SenderName: req.Sender.Name,
	})

	return msg, nil
}

func (s *Service) userExists(ctx context.Context, id domain.ID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1);`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check receiver: %w", err)
	}
	if !exists {
		return errors.NotFound("receiver not found: %s", id)
	}
	return nil
}

// Row is a message as seen by one of its parties.
type Row struct {
	Message     domain.Message
	PartnerName string
	CourseTitle string
}

// Conversations lists the conversations of a user, latest first.
func (s *Service) Conversations(ctx context.Context, userID domain.ID) ([]domain.Conversation, error) {
	rows, err := s.db.Query(ctx, `
SELECT m.id, m.sender_id, m.receiver_id, m.course_id, m.content, m.read, m.created_at, p.name, c.title
FROM messages m
JOIN users p ON p.id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
JOIN courses c ON c.id = m.course_id
WHERE m.sender_id = $1 OR m.receiver_id = $1
ORDER BY m.created_at DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	rs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Row, error) {
		var row Row
		m := &row.Message
		err := r.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.CourseID, &m.Content, &m.Read, &m.CreatedAt, &row.PartnerName, &row.CourseTitle)
		return row, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	return Group(userID, rs), nil
}

// Group folds the messages of userID, newest first, into one conversation per partner and
// course. The result keeps the newest-first order.
func Group(userID domain.ID, rows []Row) []domain.Conversation {
	type key struct{ partner, course domain.ID }

	idx := make(map[key]int)
	out := make([]domain.Conversation, 0)
	for _, r := range rows {
		partner := r.Message.SenderID
		if partner == userID {
			partner = r.Message.ReceiverID
		}
		k := key{partner, r.Message.CourseID}

		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, domain.Conversation{
				PartnerID:   partner,
				PartnerName: r.PartnerName,
				CourseID:    r.Message.CourseID,
				CourseTitle: r.CourseTitle,
				LastMessage: r.Message,
			})
		}
		if r.Message.ReceiverID == userID && !r.Message.Read {
			out[i].Unread++
		}
	}
	return out
}

// Thread returns the messages between u and partner about a course, oldest first, and marks
// the ones u received as read.
func (s *Service) Thread(ctx context.Context, u domain.User, partnerID, courseID domain.ID) ([]domain.Message, error) {
	m, err := course.MembershipOf(ctx, s.db, courseID, u.ID)
	if err != nil {
		return nil, err
	}
	if !m.Participant() {
		return nil, errors.New(errors.CodePermissionDenied, errors.WithMessagef("not allowed to view these messages"))
	}

	var msgs []domain.Message
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT id, sender_id, receiver_id, course_id, content, read, created_at
FROM messages
WHERE course_id = $3
  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
ORDER BY created_at;`, u.ID, partnerID, courseID)
		if err != nil {
			return fmt.Errorf("list thread: %w", err)
		}

		msgs, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Message, error) {
			var m domain.Message
			err := r.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.CourseID, &m.Content, &m.Read, &m.CreatedAt)
			return m, err
		})
		if err != nil {
			return fmt.Errorf("scan thread: %w", err)
		}

		if _, err := tx.Exec(ctx, `
UPDATE messages SET read = true
WHERE course_id = $3 AND sender_id = $2 AND receiver_id = $1 AND NOT read;`, u.ID, partnerID, courseID); err != nil {
			return fmt.Errorf("mark thread read: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return msgs, nil
}
