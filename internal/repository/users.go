package repository

import (
	"context"
	"database/sql"
	"fmt"

	"festival/internal/database"
	"festival/internal/models"
)

// Recipient - адресат рассылки
type Recipient struct {
	UserID int64
	Phone  string
}

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const selectUser = `
	SELECT id, email, password_hash, first_name, last_name, phone, created_at
	FROM users`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE lower(email) = lower($1)`, email))
}

// Create вставляет пользователя; при дубликате email возвращает database.IsUniqueViolation ошибку
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
	).Scan(&user.ID, &user.CreatedAt)
}

// Update сохраняет имя и телефон; email и пароль здесь не меняются
func (r *UserRepository) Update(ctx context.Context, user *models.User) (bool, error) {
	query := `UPDATE users SET first_name = $2, last_name = $3, phone = $4 WHERE id = $1`
	return affected(r.db.ExecContext(ctx, query, user.ID, user.FirstName, user.LastName, user.Phone))
}

// List возвращает пользователей для админки вместе с флагом роли admin
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.AdminUser, error) {
	query := `
		SELECT u.id, u.email, u.first_name, u.last_name, u.phone, u.created_at,
		       EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id AND ur.role = $3)
		FROM users u
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryWithRetry(ctx, query, limit, offset, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.AdminUser{}
	for rows.Next() {
		var u models.AdminUser
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.CreatedAt, &u.IsAdmin); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *UserRepository) HasRole(ctx context.Context, userID int64, role string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`
	err := r.db.QueryRowContext(ctx, query, userID, role).Scan(&exists)
	return exists, err
}

func (r *UserRepository) GrantRole(ctx context.Context, userID int64, role string) error {
	query := `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, userID, role)
	return err
}

// RevokeRole возвращает false, если роли не было
func (r *UserRepository) RevokeRole(ctx context.Context, userID int64, role string) (bool, error) {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`
	return affected(r.db.ExecContext(ctx, query, userID, role))
}

var recipientQueries = map[string]string{
	"all": `
		SELECT id, phone FROM users WHERE phone IS NOT NULL AND phone <> ''`,
	"ticket_holders": `
		SELECT DISTINCT u.id, u.phone FROM users u
		JOIN tickets t ON t.user_id = u.id
		WHERE u.phone IS NOT NULL AND u.phone <> ''`,
	"donors": `
		SELECT DISTINCT u.id, u.phone FROM users u
		JOIN donations d ON d.user_id = u.id
		WHERE u.phone IS NOT NULL AND u.phone <> ''`,
	"bidders": `
		SELECT DISTINCT u.id, u.phone FROM users u
		JOIN bids b ON b.user_id = u.id AND b.status = 'completed'
		WHERE u.phone IS NOT NULL AND u.phone <> ''`,
}

// RecipientsForGroup возвращает телефоны пользователей группы рассылки
func (r *UserRepository) RecipientsForGroup(ctx context.Context, group string) ([]Recipient, error) {
	query, ok := recipientQueries[group]
	if !ok {
		return nil, fmt.Errorf("unknown recipient group %q", group)
	}

	rows, err := r.db.QueryWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var rcp Recipient
		if err := rows.Scan(&rcp.UserID, &rcp.Phone); err != nil {
			return nil, err
		}
		recipients = append(recipients, rcp)
	}

	return recipients, rows.Err()
}
