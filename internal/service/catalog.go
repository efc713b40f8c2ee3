package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"festival/internal/cache"
	apperrors "festival/internal/errors"
	"festival/internal/logger"
	"festival/internal/models"
	"festival/internal/repository"
)

const recentBidsLimit = 50

// ListCache хранит готовые публичные списки
type ListCache interface {
	GetRaw(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any) error
	Invalidator
}

// ArtistIndex - полнотекстовый поиск по лайнапу
type ArtistIndex interface {
	SearchArtists(ctx context.Context, query, genre string) ([]models.Artist, error)
	IndexArtist(ctx context.Context, artist *models.Artist) error
}

// CatalogService - публичные страницы: билеты, аукционы, проекты, лайнап
type CatalogService struct {
	store       repository.Store
	ticketTypes *repository.TicketTypeRepository
	auctions    *repository.AuctionRepository
	projects    *repository.ProjectRepository
	artists     *repository.ArtistRepository
	cache       ListCache
	index       ArtistIndex
	location    *time.Location
}

func NewCatalogService(repos *repository.Repositories, listCache ListCache, index ArtistIndex) *CatalogService {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}

	return &CatalogService{
		store:       repos.Store,
		ticketTypes: repos.TicketTypes,
		auctions:    repos.Auctions,
		projects:    repos.Projects,
		artists:     repos.Artists,
		cache:       listCache,
		index:       index,
		location:    loc,
	}
}

// cachedList читает список из кеша, при промахе загружает и кладет обратно
func cachedList[T any](ctx context.Context, c ListCache, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if c != nil {
		raw, err := c.GetRaw(ctx, key)
		if err == nil {
			var out []T
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.WithContext(ctx).Warn("Cache read failed", "error", err, "key", key)
		}
	}

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if c != nil {
		if err := c.Set(ctx, key, out); err != nil {
			logger.WithContext(ctx).Warn("Cache write failed", "error", err, "key", key)
		}
	}
	return out, nil
}

func (s *CatalogService) ListTicketTypes(ctx context.Context) ([]models.TicketType, error) {
	types, err := cachedList(ctx, s.cache, cache.KeyTicketTypes, s.ticketTypes.ListAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket types: %w", err)
	}
	return types, nil
}

// ListAuctions - все аукционы кешируются, выборка по статусу идет в базу
func (s *CatalogService) ListAuctions(ctx context.Context, status string) ([]models.Auction, error) {
	if status != "" {
		return s.auctions.List(ctx, status)
	}

	auctions, err := cachedList(ctx, s.cache, cache.KeyAuctions, func(ctx context.Context) ([]models.Auction, error) {
		return s.auctions.List(ctx, "")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, nil
}

func (s *CatalogService) GetAuction(ctx context.Context, id int64) (*models.AuctionDetailsResponse, error) {
	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if a == nil {
		return nil, apperrors.ErrNotFound
	}

	return &models.AuctionDetailsResponse{
		Auction:    *a,
		MinimumBid: MinimumBid(a),
	}, nil
}

// ListAuctionBids возвращает оплаченные ставки, старшие первыми
func (s *CatalogService) ListAuctionBids(ctx context.Context, auctionID int64) ([]models.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.auctions.ListCompletedBids(ctx, auctionID, recentBidsLimit)
}

func (s *CatalogService) ListProjects(ctx context.Context) ([]models.ProjectProgress, error) {
	projects, err := cachedList(ctx, s.cache, cache.KeyProjects, s.projects.List)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	result := make([]models.ProjectProgress, len(projects))
	for i, p := range projects {
		result[i] = models.ProjectProgress{
			CharityProject: p,
			Percent:        models.Percent(p.Raised, p.Goal),
		}
	}
	return result, nil
}

// Lineup ищет через Elasticsearch, при недоступности индекса - в базе
func (s *CatalogService) Lineup(ctx context.Context, query, genre string) ([]models.Artist, error) {
	if s.index != nil {
		artists, err := s.index.SearchArtists(ctx, query, genre)
		if err == nil {
			return artists, nil
		}
		logger.WithContext(ctx).Warn("Artist search failed, falling back to database", "error", err)
	}

	artists, err := s.artists.List(ctx, query, genre)
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	return artists, nil
}

func (s *CatalogService) GetArtist(ctx context.Context, slug string) (*models.ArtistDetailsResponse, error) {
	artist, err := s.artists.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get artist: %w", err)
	}
	if artist == nil {
		return nil, apperrors.ErrNotFound
	}

	performances, err := s.artists.Schedule(ctx, time.Time{}, time.Time{}, artist.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get performances: %w", err)
	}

	return &models.ArtistDetailsResponse{Artist: *artist, Performances: performances}, nil
}

// Schedule группирует выступления по дням фестиваля; day в формате 2006-01-02
func (s *CatalogService) Schedule(ctx context.Context, day string) ([]models.ScheduleDay, error) {
	var from, to time.Time
	if day != "" {
		d, err := time.ParseInLocation(time.DateOnly, day, s.location)
		if err != nil {
			return nil, apperrors.Invalid(fmt.Errorf("invalid day %q, expected YYYY-MM-DD", day))
		}
		from, to = d, d.AddDate(0, 0, 1)
	}

	performances, err := s.artists.Schedule(ctx, from, to, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	return groupByDay(performances, s.location), nil
}

func groupByDay(performances []models.Performance, loc *time.Location) []models.ScheduleDay {
	days := []models.ScheduleDay{}
	for _, p := range performances {
		date := p.StartsAt.In(loc).Format(time.DateOnly)
		if n := len(days); n == 0 || days[n-1].Date != date {
			days = append(days, models.ScheduleDay{Date: date})
		}
		last := &days[len(days)-1]
		last.Performances = append(last.Performances, p)
	}
	return days
}
