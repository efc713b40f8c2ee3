package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"festival/internal/cache"
	"festival/internal/database"
	apperrors "festival/internal/errors"
	"festival/internal/logger"
	"festival/internal/models"
	"festival/internal/repository"
)

var (
	errInvalidPeriod   = errors.New("ends_at must be after starts_at")
	errInvalidPrice    = errors.New("price must be positive")
	errInvalidGoal     = errors.New("goal must be positive")
	errInvalidRestock  = errors.New("restock quantity must be positive")
	errInvalidSlug     = errors.New("slug must contain letters or digits")
	errNegativeInitial = errors.New("available_quantity must not be negative")

	errUnknownTicketStatus = errors.New("status must be active or used")
)

// AdminService - действия бэк-офиса; права проверяет middleware
type AdminService struct {
	repos *repository.Repositories
	cache Invalidator
	index ArtistIndex
	now   func() time.Time
}

func NewAdminService(repos *repository.Repositories, invalidator Invalidator, index ArtistIndex) *AdminService {
	return &AdminService{
		repos: repos,
		cache: invalidator,
		index: index,
		now:   time.Now,
	}
}

func (s *AdminService) Dashboard(ctx context.Context) (*models.DashboardResponse, error) {
	stats, err := s.repos.Dashboard.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	stats.DisplayTotal = models.FormatAmount(stats.DonationsTotal, models.DefaultCurrency)
	return stats, nil
}

func (s *AdminService) CreateAuction(ctx context.Context, req *models.CreateAuctionRequest) (*models.Auction, error) {
	if req.StartingBid <= 0 {
		return nil, apperrors.Invalid(apperrors.ErrInvalidAmount)
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, apperrors.Invalid(errInvalidPeriod)
	}

	status := models.AuctionUpcoming
	if !req.StartsAt.After(s.now()) {
		status = models.AuctionActive
	}

	auction := &models.Auction{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		StartingBid: req.StartingBid,
		Status:      status,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}
	if err := s.repos.Auctions.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	invalidate(ctx, s.cache, cache.KeyAuctions)
	return auction, nil
}

// UpdateAuctionStatus не переоткрывает завершенный аукцион
func (s *AdminService) UpdateAuctionStatus(ctx context.Context, id int64, status string) error {
	ok, err := s.repos.Auctions.UpdateStatus(ctx, id, status)
	if err != nil {
		return fmt.Errorf("failed to update auction status: %w", err)
	}
	if !ok {
		a, err := s.repos.Store.GetAuction(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get auction: %w", err)
		}
		if a == nil {
			return apperrors.ErrNotFound
		}
		return apperrors.Invalid(apperrors.ErrAuctionEnded)
	}

	logger.WithContext(ctx).Info("Auction status changed", "auction_id", id, "status", status)
	invalidate(ctx, s.cache, cache.KeyAuctions)
	return nil
}

func (s *AdminService) CreateTicketType(ctx context.Context, req *models.CreateTicketTypeRequest) (*models.TicketType, error) {
	if req.Price <= 0 {
		return nil, apperrors.Invalid(errInvalidPrice)
	}
	if req.AvailableQuantity < 0 {
		return nil, apperrors.Invalid(errNegativeInitial)
	}

	tt := &models.TicketType{
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price,
		AvailableQuantity: req.AvailableQuantity,
	}
	if err := s.repos.TicketTypes.Create(ctx, tt); err != nil {
		return nil, fmt.Errorf("failed to create ticket type: %w", err)
	}

	invalidate(ctx, s.cache, cache.KeyTicketTypes)
	return tt, nil
}

func (s *AdminService) RestockTicketType(ctx context.Context, id int64, quantity int) (*models.TicketType, error) {
	if quantity <= 0 {
		return nil, apperrors.Invalid(errInvalidRestock)
	}

	ok, err := s.repos.TicketTypes.Restock(ctx, id, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to restock ticket type: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	invalidate(ctx, s.cache, cache.KeyTicketTypes)
	return s.repos.TicketTypes.GetByID(ctx, id)
}

func (s *AdminService) CreateProject(ctx context.Context, req *models.CreateProjectRequest) (*models.CharityProject, error) {
	if req.Goal <= 0 {
		return nil, apperrors.Invalid(errInvalidGoal)
	}

	p := &models.CharityProject{
		Name:        req.Name,
		Description: req.Description,
		Goal:        req.Goal,
	}
	if err := s.repos.Projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	invalidate(ctx, s.cache, cache.KeyProjects)
	return p, nil
}

// UpdateProject правит проект. Уже собранная сумма и подписи пожертвований не меняются.
func (s *AdminService) UpdateProject(ctx context.Context, id int64, req *models.UpdateProjectRequest) (*models.CharityProject, error) {
	p, err := s.repos.Projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if p == nil {
		return nil, apperrors.ErrNotFound
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
		if p.Name == "" {
			return nil, apperrors.Invalid(errEmptyName)
		}
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Goal != nil {
		if *req.Goal <= 0 {
			return nil, apperrors.Invalid(errInvalidGoal)
		}
		p.Goal = *req.Goal
	}

	ok, err := s.repos.Projects.Update(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	invalidate(ctx, s.cache, cache.KeyProjects)
	return p, nil
}

// DeleteProject удаляет проект; принятые пожертвования остаются с прежней подписью
func (s *AdminService) DeleteProject(ctx context.Context, id int64) error {
	ok, err := s.repos.Projects.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if !ok {
		return apperrors.ErrNotFound
	}

	logger.WithContext(ctx).Info("Project deleted", "project_id", id)
	invalidate(ctx, s.cache, cache.KeyProjects)
	return nil
}

func (s *AdminService) ListDonations(ctx context.Context, projectID *int64, limit, offset int) ([]models.Donation, error) {
	limit, offset, err := page(limit, offset)
	if err != nil {
		return nil, err
	}
	donations, err := s.repos.Donations.List(ctx, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

func (s *AdminService) ListTickets(ctx context.Context, status string, limit, offset int) ([]repository.AdminTicket, error) {
	if status != "" && status != models.TicketActive && status != models.TicketUsed {
		return nil, apperrors.Invalid(errUnknownTicketStatus)
	}
	limit, offset, err := page(limit, offset)
	if err != nil {
		return nil, err
	}
	tickets, err := s.repos.Tickets.List(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// CreateArtist сохраняет артиста и индексирует его; сбой индекса не откатывает запись
func (s *AdminService) CreateArtist(ctx context.Context, req *models.CreateArtistRequest) (*models.Artist, error) {
	slug := Slugify(req.Slug)
	if slug == "" {
		slug = Slugify(req.Name)
	}
	if slug == "" {
		return nil, apperrors.Invalid(errInvalidSlug)
	}

	artist := &models.Artist{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Genre:       req.Genre,
		ImageURL:    req.ImageURL,
		Website:     req.Website,
	}
	if err := s.repos.Artists.Create(ctx, artist); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to create artist: %w", err)
	}

	if s.index != nil {
		if err := s.index.IndexArtist(ctx, artist); err != nil {
			logger.WithContext(ctx).Warn("Failed to index artist", "error", err, "artist_id", artist.ID)
		}
	}
	return artist, nil
}

func (s *AdminService) CreatePerformance(ctx context.Context, req *models.CreatePerformanceRequest) (*models.Performance, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return nil, apperrors.Invalid(errInvalidPeriod)
	}

	artist, err := s.repos.Artists.GetByID(ctx, req.ArtistID)
	if err != nil {
		return nil, fmt.Errorf("failed to get artist: %w", err)
	}
	if artist == nil {
		return nil, apperrors.ErrNotFound
	}

	p := &models.Performance{
		ArtistID:    artist.ID,
		ArtistName:  artist.Name,
		ArtistSlug:  artist.Slug,
		Stage:       req.Stage,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Description: req.Description,
	}
	if err := s.repos.Artists.CreatePerformance(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create performance: %w", err)
	}
	return p, nil
}

// SetTicketUsed отмечает билет на входе или снимает отметку
func (s *AdminService) SetTicketUsed(ctx context.Context, ticketID int64, used bool) error {
	status := models.TicketActive
	if used {
		status = models.TicketUsed
	}

	ok, err := s.repos.Tickets.SetStatus(ctx, ticketID, status)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if !ok {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *AdminService) ListIssues(ctx context.Context, onlyOpen bool) ([]models.ReconciliationIssue, error) {
	return s.repos.Issues.List(ctx, onlyOpen)
}

func (s *AdminService) ResolveIssue(ctx context.Context, id int64) error {
	ok, err := s.repos.Issues.Resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to resolve issue: %w", err)
	}
	if !ok {
		return apperrors.ErrNotFound
	}
	return nil
}

var slugReplacer = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// Slugify строит адрес страницы артиста: "Die Ärzte" -> "die-aerzte"
func Slugify(s string) string {
	s = slugReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))

	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
