package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"festival/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	admins map[int64]bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users: map[int64]*models.User{
			1: {ID: 1, Email: "admin@example.com", FirstName: "Kim", LastName: "Berger"},
			2: {ID: 2, Email: "gast@example.com", FirstName: "Jo", LastName: "Weber"},
		},
		admins: map[int64]bool{1: true},
	}
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Update(_ context.Context, user *models.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return false, nil
	}
	cp := *user
	f.users[user.ID] = &cp
	return true, nil
}

func (f *fakeUsers) List(_ context.Context, limit, offset int) ([]models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.AdminUser{}
	for id, u := range f.users {
		out = append(out, models.AdminUser{User: *u, IsAdmin: f.admins[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []models.AdminUser{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsers) GrantRole(_ context.Context, userID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins[userID] = true
	return nil
}

func (f *fakeUsers) RevokeRole(_ context.Context, userID int64, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	had := f.admins[userID]
	delete(f.admins, userID)
	return had, nil
}

type fakeSchedule struct {
	mu    sync.Mutex
	items []models.ScheduledNotification
}

func (f *fakeSchedule) Create(_ context.Context, n *models.ScheduledNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = int64(len(f.items) + 1)
	n.Status = models.ScheduledPending
	n.CreatedAt = time.Now()
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeSchedule) List(_ context.Context, status string) ([]models.ScheduledNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ScheduledNotification{}
	for _, n := range f.items {
		if status == "" || n.Status == status {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeSchedule) Get(_ context.Context, id int64) (*models.ScheduledNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id {
			cp := n
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSchedule) Cancel(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].Status == models.ScheduledPending {
			f.items[i].Status = models.ScheduledCancelled
			return true, nil
		}
	}
	return false, nil
}

func TestUpdateMeNormalizesPhone(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPatch, "/api/me", map[string]any{
		"first_name": "Joana",
		"phone":      "0170 1234567",
	}, env.token(t, 2))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "Joana", user.FirstName)
	assert.Equal(t, "Weber", user.LastName, "не переданное поле не меняется")
	require.NotNil(t, user.Phone)
	assert.Equal(t, "+491701234567", *user.Phone)
	assert.Equal(t, "+491701234567", *env.users.users[2].Phone)
}

func TestUpdateMeRejectsInvalidPhone(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPatch, "/api/me", map[string]any{"phone": "12"}, env.token(t, 2))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, env.users.users[2].Phone)
}

func TestUpdateMeRequiresToken(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPatch, "/api/me", map[string]any{"first_name": "X"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminUsersListAndRoles(t *testing.T) {
	env := setupRouter(t)
	adminToken := env.token(t, 1)

	w := env.do(t, http.MethodPut, "/api/admin/users/2/roles/admin", nil, adminToken)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/admin/users?limit=10", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.AdminUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.True(t, users[1].IsAdmin)

	w = env.do(t, http.MethodDelete, "/api/admin/users/2/roles/admin", nil, adminToken)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, env.users.admins[2])

	// себе роль не снять
	w = env.do(t, http.MethodDelete, "/api/admin/users/1/roles/admin", nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, env.users.admins[1])

	w = env.do(t, http.MethodPut, "/api/admin/users/99/roles/admin", nil, adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/admin/users?limit=abc", nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleNotificationAndCancel(t *testing.T) {
	env := setupRouter(t)
	adminToken := env.token(t, 1)

	w := env.do(t, http.MethodPost, "/api/admin/notifications/scheduled", map[string]any{
		"channel":         "whatsapp",
		"recipient_group": "ticket_holders",
		"body":            "Einlass ab 16 Uhr",
		"send_at":         time.Now().Add(time.Hour).Format(time.RFC3339),
	}, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var n models.ScheduledNotification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
	assert.Equal(t, models.ScheduledPending, n.Status)

	w = env.do(t, http.MethodDelete, "/api/admin/notifications/scheduled/1", nil, adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// уже отмененную повторно не отменить
	w = env.do(t, http.MethodDelete, "/api/admin/notifications/scheduled/1", nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/admin/notifications/scheduled/42", nil, adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleNotificationValidation(t *testing.T) {
	env := setupRouter(t)
	adminToken := env.token(t, 1)

	w := env.do(t, http.MethodPost, "/api/admin/notifications/scheduled", map[string]any{
		"channel":         "whatsapp",
		"recipient_group": "all",
		"body":            "zu spät",
		"send_at":         time.Now().Add(-time.Hour).Format(time.RFC3339),
	}, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/notifications/scheduled", map[string]any{
		"channel":         "telegram",
		"recipient_group": "all",
		"body":            "Hallo",
		"send_at":         time.Now().Add(time.Hour).Format(time.RFC3339),
	}, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, env.scheduled.items)
}
