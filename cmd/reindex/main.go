package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"festival/internal/config"
	"festival/internal/database"
	"festival/internal/logger"
	"festival/internal/models"
	"festival/internal/repository"
	"festival/internal/search"
)

type artistSource interface {
	List(ctx context.Context, query, genre string) ([]models.Artist, error)
}

type artistIndex interface {
	IndexArtist(ctx context.Context, artist *models.Artist) error
	SearchArtists(ctx context.Context, query, genre string) ([]models.Artist, error)
	DeleteArtist(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

func main() {
	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Overall reindex timeout")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	log.Info("Starting lineup reindex", "index", cfg.Elasticsearch.Index)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := reindexArtists(ctx, repository.NewArtistRepository(db), es); err != nil {
		logger.Fatal("Reindex failed", "error", err)
	}
}

// reindexArtists переносит всех артистов из Postgres в поисковый индекс.
// Ошибки отдельных документов логируются, итоговая ошибка возвращается, если не удалось ни одного.
func reindexArtists(ctx context.Context, source artistSource, index artistIndex) error {
	log := logger.Get()
	start := time.Now()

	artists, err := source.List(ctx, "", "")
	if err != nil {
		return fmt.Errorf("failed to list artists: %w", err)
	}
	log.Info("Loaded artists from database", "count", len(artists))

	indexed, failed := 0, 0
	for i := range artists {
		if err := index.IndexArtist(ctx, &artists[i]); err != nil {
			failed++
			log.Error("Failed to index artist", "artist_id", artists[i].ID, "slug", artists[i].Slug, "error", err)
			continue
		}
		indexed++
	}

	if failed > 0 && indexed == 0 {
		return fmt.Errorf("all %d artists failed to index", failed)
	}

	pruned, err := pruneDeleted(ctx, artists, index)
	if err != nil {
		log.Warn("Failed to prune deleted artists", "error", err)
	}

	total, err := index.Count(ctx)
	if err != nil {
		log.Warn("Failed to count indexed documents", "error", err)
	}

	log.Info("Lineup reindex completed",
		"indexed", indexed,
		"failed", failed,
		"pruned", pruned,
		"documents", total,
		"duration", time.Since(start).String())
	return nil
}

// pruneDeleted удаляет из индекса артистов, которых больше нет в базе
func pruneDeleted(ctx context.Context, artists []models.Artist, index artistIndex) (int, error) {
	known := make(map[int64]struct{}, len(artists))
	for _, a := range artists {
		known[a.ID] = struct{}{}
	}

	indexed, err := index.SearchArtists(ctx, "", "")
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed artists: %w", err)
	}

	pruned := 0
	for _, a := range indexed {
		if _, ok := known[a.ID]; ok {
			continue
		}
		if err := index.DeleteArtist(ctx, a.ID); err != nil {
			return pruned, fmt.Errorf("failed to delete artist %d: %w", a.ID, err)
		}
		pruned++
	}
	return pruned, nil
}
