package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"festival/internal/cache"
	"festival/internal/database"
	apperrors "festival/internal/errors"
	"festival/internal/models"
	"festival/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockAdmin(t *testing.T) (*AdminService, sqlmock.Sqlmock, *fakeCache) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	c := &fakeCache{}
	return NewAdminService(repository.NewRepositories(database.Wrap(sqlDB)), c, nil), mock, c
}

var projectColumns = []string{"id", "name", "description", "goal", "raised", "created_at"}

func TestUpdateProjectKeepsRaised(t *testing.T) {
	svc, mock, c := newMockAdmin(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM charity_projects")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(projectColumns).AddRow(3, "Trinkwasser", nil, 10000, 4200, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE charity_projects SET name = $2, description = $3, goal = $4 WHERE id = $1")).
		WithArgs(int64(3), "Trinkwasser für Malawi", nil, int64(20000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	name := "Trinkwasser für Malawi"
	goal := int64(20000)
	p, err := svc.UpdateProject(context.Background(), 3, &models.UpdateProjectRequest{Name: &name, Goal: &goal})
	require.NoError(t, err)

	assert.Equal(t, "Trinkwasser für Malawi", p.Name)
	assert.Equal(t, int64(20000), p.Goal)
	assert.Equal(t, int64(4200), p.Raised)
	assert.Contains(t, c.keys, cache.KeyProjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProjectRejectsNonPositiveGoal(t *testing.T) {
	svc, mock, _ := newMockAdmin(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM charity_projects")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(projectColumns).AddRow(3, "Trinkwasser", nil, 10000, 0, time.Now()))

	goal := int64(0)
	_, err := svc.UpdateProject(context.Background(), 3, &models.UpdateProjectRequest{Goal: &goal})
	assert.ErrorIs(t, err, errInvalidGoal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProject(t *testing.T) {
	svc, mock, c := newMockAdmin(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM charity_projects WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM charity_projects WHERE id = $1")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, svc.DeleteProject(context.Background(), 3))
	assert.Contains(t, c.keys, cache.KeyProjects)

	assert.ErrorIs(t, svc.DeleteProject(context.Background(), 4), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDonationsFiltersByProject(t *testing.T) {
	svc, mock, _ := newMockAdmin(t)

	projectID := int64(3)
	mock.ExpectQuery(regexp.QuoteMeta("FROM donations")).
		WithArgs(projectID, defaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "user_id", "amount", "donor_name", "message", "project_label", "session_id", "created_at",
		}).AddRow(1, 3, nil, 2500, nil, nil, "Spende für Trinkwasser", "cs_1", time.Now()))

	donations, err := svc.ListDonations(context.Background(), &projectID, 0, 0)
	require.NoError(t, err)
	require.Len(t, donations, 1)
	assert.Equal(t, "Spende für Trinkwasser", donations[0].ProjectLabel)
	assert.Nil(t, donations[0].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTicketsRejectsUnknownStatus(t *testing.T) {
	svc, mock, _ := newMockAdmin(t)

	_, err := svc.ListTickets(context.Background(), "refunded", 0, 0)
	assert.ErrorIs(t, err, errUnknownTicketStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
