package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/service/user"
)

// UserRepo implements user.Repository and the engagement user store against
// PostgreSQL.
type UserRepo struct{ db *sql.DB }

// NewUserRepo creates a Postgres-backed user repository.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, email, COALESCE(phone_number,''), created_at, last_active_at,
	utility_opt_out, broadcast_opt_out, last_utility_message_at, churn_risk_score`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var lastUtility sql.NullTime
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.CreatedAt, &u.LastActiveAt,
		&u.UtilityOptOut, &u.BroadcastOptOut, &lastUtility, &u.ChurnRiskScore,
	); err != nil {
		return nil, err
	}
	if lastUtility.Valid {
		t := lastUtility.Time
		u.LastUtilityMessageAt = &t
	}
	return u, nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users
			(id, name, email, phone_number, created_at, last_active_at,
			 utility_opt_out, broadcast_opt_out, churn_risk_score)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, $8, $9)
	`, u.ID, u.Name, u.Email, u.PhoneNumber, u.CreatedAt, u.LastActiveAt,
		u.UtilityOptOut, u.BroadcastOptOut, u.ChurnRiskScore)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return u.ID, nil
}

// TouchActivity marks the user active at the given time and clears their
// churn risk.
func (r *UserRepo) TouchActivity(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_active_at = $2, churn_risk_score = 0 WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return expectRow(res, user.ErrNotFound)
}

func (r *UserRepo) UpdatePreferences(ctx context.Context, id string, p user.Preferences) error {
	sets := []string{}
	args := []interface{}{id}
	idx := 2

	if p.UtilityOptOut != nil {
		sets = append(sets, fmt.Sprintf("utility_opt_out = $%d", idx))
		args = append(args, *p.UtilityOptOut)
		idx++
	}
	if p.BroadcastOptOut != nil {
		sets = append(sets, fmt.Sprintf("broadcast_opt_out = $%d", idx))
		args = append(args, *p.BroadcastOptOut)
	}
	if len(sets) == 0 {
		_, err := r.Get(ctx, id)
		return err
	}

	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return expectRow(res, user.ErrNotFound)
}

func (r *UserRepo) SetLastUtilityMessage(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_utility_message_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("set last utility message: %w", err)
	}
	return expectRow(res, user.ErrNotFound)
}

func expectRow(res sql.Result, notFound error) error {
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound
	}
	return nil
}
