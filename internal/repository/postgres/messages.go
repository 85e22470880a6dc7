package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/service/analytics"
)

// MessageRepo stores sent messages and their outcomes in PostgreSQL. It
// serves the engagement history lookup, the user message reader, the
// analytics record source and the tracking outcome recorder.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a Postgres-backed message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `id, user_id, category, type, COALESCE(channel,''), content, status,
	sent_at, opened, opened_at, clicked, clicked_at, reactivated`

// reactivationExcluded lists engagement types that never count as the
// message that brought a user back.
var reactivationExcluded = []string{string(domain.ToneWelcomeBack)}

func scanMessage(row rowScanner) (*domain.MessageLog, error) {
	m := &domain.MessageLog{}
	var openedAt, clickedAt sql.NullTime
	if err := row.Scan(
		&m.ID, &m.UserID, &m.Category, &m.Type, &m.Channel, &m.Content, &m.Status,
		&m.SentAt, &m.Opened, &openedAt, &m.Clicked, &clickedAt, &m.Reactivated,
	); err != nil {
		return nil, err
	}
	if openedAt.Valid {
		t := openedAt.Time
		m.OpenedAt = &t
	}
	if clickedAt.Valid {
		t := clickedAt.Time
		m.ClickedAt = &t
	}
	return m, nil
}

func (r *MessageRepo) queryMessages(ctx context.Context, q string, args ...interface{}) ([]domain.MessageLog, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MessageLog
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MessageRepo) Log(ctx context.Context, m *domain.MessageLog) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_logs
			(id, user_id, category, type, channel, content, status, sent_at,
			 opened, opened_at, clicked, clicked_at, reactivated)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7, $8, $9, $10, $11, $12, $13)
	`, m.ID, m.UserID, m.Category, m.Type, m.Channel, m.Content, m.Status, m.SentAt,
		m.Opened, m.OpenedAt, m.Clicked, m.ClickedAt, m.Reactivated)
	if err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (*domain.MessageLog, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM message_logs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, analytics.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// HasRecentMessage reports whether any message was sent to the user at or
// after since.
func (r *MessageRepo) HasRecentMessage(ctx context.Context, userID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM message_logs WHERE user_id = $1 AND sent_at >= $2)`,
		userID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("recent message lookup: %w", err)
	}
	return exists, nil
}

// MarkReactivated flags the newest engagement message sent to the user at or
// after since, ignoring welcome back greetings.
func (r *MessageRepo) MarkReactivated(ctx context.Context, userID string, since time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE message_logs SET reactivated = true
		WHERE id = (
			SELECT id FROM message_logs
			WHERE user_id = $1 AND category = $2 AND sent_at >= $3 AND type <> ALL($4)
			ORDER BY sent_at DESC
			LIMIT 1
		)
	`, userID, domain.CategoryFlirty, since, pq.Array(reactivationExcluded))
	if err != nil {
		return false, fmt.Errorf("mark reactivated: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// LastMessage returns nil, nil when the user has no messages.
func (r *MessageRepo) LastMessage(ctx context.Context, userID string) (*domain.MessageLog, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM message_logs
		WHERE user_id = $1 ORDER BY sent_at DESC LIMIT 1
	`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.MessageLog, error) {
	out, err := r.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM message_logs
		WHERE user_id = $1 ORDER BY sent_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user messages: %w", err)
	}
	return out, nil
}

// ListSince returns every message sent at or after since, oldest first.
func (r *MessageRepo) ListSince(ctx context.Context, since time.Time) ([]domain.MessageLog, error) {
	out, err := r.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM message_logs
		WHERE sent_at >= $1 ORDER BY sent_at
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list messages since: %w", err)
	}
	return out, nil
}

// MarkOpened sets the open flag. An existing open time is kept.
func (r *MessageRepo) MarkOpened(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE message_logs
		SET opened = true, opened_at = COALESCE(opened_at, $2)
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark opened: %w", err)
	}
	return expectRow(res, analytics.ErrMessageNotFound)
}

// MarkClicked sets the click flag and the open flag. Existing times are kept.
func (r *MessageRepo) MarkClicked(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE message_logs
		SET opened = true, opened_at = COALESCE(opened_at, $2),
		    clicked = true, clicked_at = COALESCE(clicked_at, $2)
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark clicked: %w", err)
	}
	return expectRow(res, analytics.ErrMessageNotFound)
}
