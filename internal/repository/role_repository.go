package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-api/internal/models"
)

// RoleRepository manages the user_roles relation.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository constructs the repository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// ListByUser returns every role row held by the user.
func (r *RoleRepository) ListByUser(ctx context.Context, userID string) ([]models.UserRole, error) {
	const query = `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY created_at ASC`
	var roles []models.UserRole
	if err := r.db.SelectContext(ctx, &roles, query, userID); err != nil {
		return nil, fmt.Errorf("list roles for user: %w", err)
	}
	return roles, nil
}

// Grant inserts a (user, role) pair, ignoring duplicates.
func (r *RoleRepository) Grant(ctx context.Context, userID string, role models.UserRole) error {
	const query = `INSERT INTO user_roles (id, user_id, role, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, role) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, role, time.Now().UTC()); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// Replace swaps the user's role set for the single provided role inside a
// transaction so concurrent readers never observe an empty set.
func (r *RoleRepository) Replace(ctx context.Context, userID string, role models.UserRole) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin role replace: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role <> $2`, userID, role); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}

	const insert = `INSERT INTO user_roles (id, user_id, role, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, role) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), userID, role, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit role replace: %w", err)
	}
	committed = true
	return nil
}
