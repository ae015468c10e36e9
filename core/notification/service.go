package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")
)

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      string     `json:"link"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"` // UTC
}

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		QueryUserNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		MarkNotificationRead(ctx context.Context, id string, at time.Time) error
	}

	Service struct {
		repo    Repository
		usrRepo user.Repository
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, usrRepo user.Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, usrRepo: usrRepo, mailSvc: mailSvc}
}

// Send stores an in-app notification and mirrors it to the user's email.
func (svc *Service) Send(ctx context.Context, userID, kind, title, body, link string) error {
	n := Notification{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Link:      link,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := svc.repo.CreateNotification(ctx, n); err != nil {
		return errors.Wrap(err, "creating notification")
	}

	usr, err := svc.usrRepo.GetUserByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "getting notification recipient")
	}
	if usr.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject: title,
			BodyStr: body,
		})
	}
	return nil
}

func (svc *Service) QueryForUser(ctx context.Context, usr user.User, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryUserNotifications(ctx, usr.ID, unreadOnly)
}

// MarkRead marks a notification read. Only the recipient may do so.
func (svc *Service) MarkRead(ctx context.Context, usr user.User, id string) error {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != usr.ID {
		return ErrNotFound // do not leak other users' notifications
	}
	if n.ReadAt != nil {
		return nil
	}
	return svc.repo.MarkNotificationRead(ctx, id, time.Now().UTC())
}
