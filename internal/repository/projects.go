package repository

import (
	"context"

	"festival/internal/database"
	"festival/internal/models"
)

type ProjectRepository struct {
	db *database.DB
}

func NewProjectRepository(db *database.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*models.CharityProject, error) {
	return getProject(ctx, r.db, id)
}

func (r *ProjectRepository) List(ctx context.Context) ([]models.CharityProject, error) {
	query := `
		SELECT id, name, description, goal, raised, created_at
		FROM charity_projects
		ORDER BY created_at, id`

	rows, err := r.db.QueryWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []models.CharityProject{}
	for rows.Next() {
		var p models.CharityProject
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Goal, &p.Raised, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

func (r *ProjectRepository) Create(ctx context.Context, p *models.CharityProject) error {
	query := `
		INSERT INTO charity_projects (name, description, goal)
		VALUES ($1, $2, $3)
		RETURNING id, raised, created_at`

	return r.db.QueryRowContext(ctx, query, p.Name, p.Description, p.Goal).
		Scan(&p.ID, &p.Raised, &p.CreatedAt)
}

// Update меняет описание проекта. Подпись в уже принятых пожертвованиях остается прежней.
func (r *ProjectRepository) Update(ctx context.Context, p *models.CharityProject) (bool, error) {
	query := `UPDATE charity_projects SET name = $2, description = $3, goal = $4 WHERE id = $1`
	return affected(r.db.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.Goal))
}

// Delete удаляет проект; donations.project_id обнуляется внешним ключом, project_label остается
func (r *ProjectRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM charity_projects WHERE id = $1`, id))
}
