package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"festival/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserListMarksAdmins(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	created := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users u")).
		WithArgs(50, 0, models.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "phone", "created_at", "is_admin"}).
			AddRow(2, "gast@example.com", "Jo", "Weber", "+491702222222", created, false).
			AddRow(1, "admin@example.com", "Kim", "Berger", nil, created, true))

	users, err := repo.List(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.False(t, users[0].IsAdmin)
	require.NotNil(t, users[0].Phone)
	assert.True(t, users[1].IsAdmin)
	assert.Nil(t, users[1].Phone)
	assert.Empty(t, users[1].PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRoleReportsMissingRole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_roles WHERE user_id = $1 AND role = $2")).
		WithArgs(int64(2), models.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.RevokeRole(context.Background(), 2, models.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketListFiltersByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTicketRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ($1 = '' OR t.status = $1)")).
		WithArgs(models.TicketUsed, 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "ticket_type_id", "ticket_number", "qr_code", "status", "session_id", "purchased_at", "name", "email",
		}).AddRow(1, 2, 3, "HAF-1-AAAAA", "qr", "used", "cs_1", time.Now(), "3-Tages-Pass", "gast@example.com"))

	tickets, err := repo.List(context.Background(), models.TicketUsed, 50, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "gast@example.com", tickets[0].OwnerEmail)
	assert.Equal(t, "3-Tages-Pass", tickets[0].TicketTypeName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
