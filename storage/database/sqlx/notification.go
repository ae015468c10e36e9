package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/stackschool/academy/core/notification"
)

type notificationRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Kind      string      `db:"kind"`
	Title     string      `db:"title"`
	Body      null.String `db:"body"`
	Link      null.String `db:"link"`
	ReadAt    null.Time   `db:"read_at"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Kind:      r.Kind,
		Title:     r.Title,
		Body:      r.Body.String,
		Link:      r.Link.String,
		ReadAt:    r.ReadAt.Ptr(),
		CreatedAt: r.CreatedAt,
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.New().String()
	row := notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      null.NewString(n.Body, n.Body != ""),
		Link:      null.NewString(n.Link, n.Link != ""),
		CreatedAt: n.CreatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO notification (id, user_id, kind, title, body, link, created_at)
		VALUES (:id, :user_id, :kind, :title, :body, :link, :created_at)`,
		row,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return row.toNotification(), nil
}

func (repo notificationRepository) QueryUserNotifications(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	query := `SELECT * FROM notification WHERE user_id = $1`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.toNotification())
	}
	return notifs, nil
}

func (repo notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM notification WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "finding notification")
	}
	return row.toNotification(), nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE notification SET read_at = $2 WHERE id = $1 AND read_at IS NULL`, id, at.UTC())
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// already read or missing; both are fine for an idempotent mark
		return nil
	}
	return nil
}
