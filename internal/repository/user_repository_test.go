package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func userRows(users ...models.User) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "active", "last_login", "created_at", "updated_at"})
	for _, u := range users {
		rows.AddRow(u.ID, u.Email, u.PasswordHash, u.FullName, u.Active, u.LastLogin, u.CreatedAt, u.UpdatedAt)
	}
	return rows
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	user := models.User{ID: "user-1", Email: "ani@example.com", FullName: "Ani Wijaya", Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("ani@example.com").
		WillReturnRows(userRows(user))

	result, err := repo.FindByEmail(context.Background(), "ani@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.ID)
}

func TestUserRepositoryFindByEmailNoRows(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestUserRepositoryCreateWithProvisioning(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now().UTC()
	user := &models.User{ID: "user-1", Email: "ani@example.com", PasswordHash: "hash", FullName: "Ani Wijaya", Active: true, CreatedAt: now, UpdatedAt: now}
	profile := &models.Profile{ID: "prof-1", UserID: "user-1", FullName: "Ani Wijaya", Email: "ani@example.com", CreatedAt: now, UpdatedAt: now}
	role := models.RoleAssignment{ID: "role-1", UserID: "user-1", Role: models.RoleUser, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("user-1", "ani@example.com", "hash", "Ani Wijaya", true, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("prof-1", "user-1", "Ani Wijaya", "ani@example.com", nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs("role-1", "user-1", models.RoleUser, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithProvisioning(context.Background(), user, profile, role))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateWithProvisioningDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateWithProvisioning(context.Background(),
		&models.User{ID: "user-1", Email: "taken@example.com", CreatedAt: now, UpdatedAt: now},
		&models.Profile{ID: "prof-1", UserID: "user-1"},
		models.RoleAssignment{ID: "role-1", UserID: "user-1", Role: models.RoleUser, CreatedAt: now},
	)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListWithRoleFilter(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	role := models.RoleAdmin
	user := models.User{ID: "user-1", Email: "ani@example.com", Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}

	mock.ExpectQuery("SELECT (.+) FROM users u WHERE 1=1 AND EXISTS \\(SELECT 1 FROM user_roles ur").
		WithArgs(role).
		WillReturnRows(userRows(user))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users u WHERE 1=1 AND EXISTS").
		WithArgs(role).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 1, total)
}

func TestUserRepositorySetActive(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE users SET active").
		WithArgs("user-1", false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), "user-1", false, now))
	require.NoError(t, mock.ExpectationsWereMet())
}
