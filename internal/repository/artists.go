package repository

import (
	"context"
	"database/sql"
	"time"

	"festival/internal/database"
	"festival/internal/models"
)

type ArtistRepository struct {
	db *database.DB
}

func NewArtistRepository(db *database.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

const selectArtist = `
	SELECT id, name, slug, description, genre, image_url, website, created_at
	FROM artists`

func scanArtist(row interface{ Scan(...any) error }) (*models.Artist, error) {
	a := &models.Artist{}
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Slug,
		&a.Description,
		&a.Genre,
		&a.ImageURL,
		&a.Website,
		&a.CreatedAt,
	)
	return a, err
}

func (r *ArtistRepository) GetBySlug(ctx context.Context, slug string) (*models.Artist, error) {
	a, err := scanArtist(r.db.QueryRowContext(ctx, selectArtist+` WHERE slug = $1`, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *ArtistRepository) GetByID(ctx context.Context, id int64) (*models.Artist, error) {
	a, err := scanArtist(r.db.QueryRowContext(ctx, selectArtist+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// List фильтрует по подстроке имени и жанру; используется, когда поиск недоступен
func (r *ArtistRepository) List(ctx context.Context, query, genre string) ([]models.Artist, error) {
	sqlQuery := selectArtist + `
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR genre = $2)
		ORDER BY name`

	rows, err := r.db.QueryWithRetry(ctx, sqlQuery, query, genre)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artists := []models.Artist{}
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, *a)
	}

	return artists, rows.Err()
}

func (r *ArtistRepository) Create(ctx context.Context, a *models.Artist) error {
	query := `
		INSERT INTO artists (name, slug, description, genre, image_url, website)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		a.Name,
		a.Slug,
		a.Description,
		a.Genre,
		a.ImageURL,
		a.Website,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *ArtistRepository) CreatePerformance(ctx context.Context, p *models.Performance) error {
	query := `
		INSERT INTO performances (artist_id, stage, starts_at, ends_at, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		p.ArtistID,
		p.Stage,
		p.StartsAt,
		p.EndsAt,
		p.Description,
	).Scan(&p.ID)
}

// Schedule возвращает выступления в интервале [from, to); нулевые границы - без ограничения
func (r *ArtistRepository) Schedule(ctx context.Context, from, to time.Time, artistID int64) ([]models.Performance, error) {
	query := `
		SELECT p.id, p.artist_id, a.name, a.slug, p.stage, p.starts_at, p.ends_at, p.description
		FROM performances p
		JOIN artists a ON a.id = p.artist_id
		WHERE ($1::timestamptz IS NULL OR p.starts_at >= $1)
		  AND ($2::timestamptz IS NULL OR p.starts_at < $2)
		  AND ($3 = 0 OR p.artist_id = $3)
		ORDER BY p.starts_at, p.stage`

	rows, err := r.db.QueryWithRetry(ctx, query, nullTime(from), nullTime(to), artistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	performances := []models.Performance{}
	for rows.Next() {
		var p models.Performance
		err := rows.Scan(
			&p.ID,
			&p.ArtistID,
			&p.ArtistName,
			&p.ArtistSlug,
			&p.Stage,
			&p.StartsAt,
			&p.EndsAt,
			&p.Description,
		)
		if err != nil {
			return nil, err
		}
		performances = append(performances, p)
	}

	return performances, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
