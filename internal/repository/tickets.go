package repository

import (
	"context"

	"festival/internal/database"
	"festival/internal/models"
)

type TicketTypeRepository struct {
	db *database.DB
}

func NewTicketTypeRepository(db *database.DB) *TicketTypeRepository {
	return &TicketTypeRepository{db: db}
}

func (r *TicketTypeRepository) GetByID(ctx context.Context, id int64) (*models.TicketType, error) {
	return getTicketType(ctx, r.db, id)
}

// ListAvailable возвращает типы билетов в продаже, от дешевых к дорогим
func (r *TicketTypeRepository) ListAvailable(ctx context.Context) ([]models.TicketType, error) {
	query := `
		SELECT id, name, description, price, available_quantity, created_at
		FROM ticket_types
		WHERE available_quantity > 0
		ORDER BY price, id`

	rows, err := r.db.QueryWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []models.TicketType{}
	for rows.Next() {
		var t models.TicketType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Price, &t.AvailableQuantity, &t.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	return types, rows.Err()
}

func (r *TicketTypeRepository) Create(ctx context.Context, t *models.TicketType) error {
	query := `
		INSERT INTO ticket_types (name, description, price, available_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		t.Name,
		t.Description,
		t.Price,
		t.AvailableQuantity,
	).Scan(&t.ID, &t.CreatedAt)
}

// Restock - единственное место, где остаток увеличивается
func (r *TicketTypeRepository) Restock(ctx context.Context, id int64, quantity int) (bool, error) {
	query := `UPDATE ticket_types SET available_quantity = available_quantity + $2 WHERE id = $1`
	return affected(r.db.ExecContext(ctx, query, id, quantity))
}

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// ListByUser возвращает билеты пользователя вместе с названием типа
func (r *TicketRepository) ListByUser(ctx context.Context, userID int64) ([]TicketWithType, error) {
	query := `
		SELECT t.id, t.user_id, t.ticket_type_id, t.ticket_number, t.qr_code, t.status,
		       t.session_id, t.purchased_at, tt.name
		FROM tickets t
		JOIN ticket_types tt ON tt.id = t.ticket_type_id
		WHERE t.user_id = $1
		ORDER BY t.purchased_at DESC, t.id`

	rows, err := r.db.QueryWithRetry(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []TicketWithType{}
	for rows.Next() {
		var t TicketWithType
		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.TicketTypeID,
			&t.TicketNumber,
			&t.QRCode,
			&t.Status,
			&t.SessionID,
			&t.PurchasedAt,
			&t.TicketTypeName,
		)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// TicketWithType - билет с названием типа для личного кабинета
type TicketWithType struct {
	models.Ticket
	TicketTypeName string `json:"ticket_type_name"`
}

// SetStatus переключает билет между active и used
func (r *TicketRepository) SetStatus(ctx context.Context, id int64, status string) (bool, error) {
	query := `UPDATE tickets SET status = $2 WHERE id = $1`
	return affected(r.db.ExecContext(ctx, query, id, status))
}

// AdminTicket - билет в списке админки: тип и владелец
type AdminTicket struct {
	TicketWithType
	OwnerEmail string `json:"owner_email"`
}

// List возвращает проданные билеты, новые первыми; status пустой - все статусы
func (r *TicketRepository) List(ctx context.Context, status string, limit, offset int) ([]AdminTicket, error) {
	query := `
		SELECT t.id, t.user_id, t.ticket_type_id, t.ticket_number, t.qr_code, t.status,
		       t.session_id, t.purchased_at, tt.name, u.email
		FROM tickets t
		JOIN ticket_types tt ON tt.id = t.ticket_type_id
		JOIN users u ON u.id = t.user_id
		WHERE ($1 = '' OR t.status = $1)
		ORDER BY t.purchased_at DESC, t.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryWithRetry(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []AdminTicket{}
	for rows.Next() {
		var t AdminTicket
		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.TicketTypeID,
			&t.TicketNumber,
			&t.QRCode,
			&t.Status,
			&t.SessionID,
			&t.PurchasedAt,
			&t.TicketTypeName,
			&t.OwnerEmail,
		)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}
