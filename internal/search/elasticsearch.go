package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"festival/internal/config"
	"festival/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient - поисковый индекс артистов для лайнапа
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает клиент и индекс артистов, если его нет
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// artistDocument - документ индекса; расписание не индексируется
type artistDocument struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Website     *string   `json:"website,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDocument(a *models.Artist) artistDocument {
	doc := artistDocument{
		ID:        a.ID,
		Name:      a.Name,
		Slug:      a.Slug,
		ImageURL:  a.ImageURL,
		Website:   a.Website,
		CreatedAt: a.CreatedAt,
	}
	if a.Description != nil {
		doc.Description = *a.Description
	}
	if a.Genre != nil {
		doc.Genre = *a.Genre
	}
	return doc
}

func (d artistDocument) toArtist() models.Artist {
	a := models.Artist{
		ID:        d.ID,
		Name:      d.Name,
		Slug:      d.Slug,
		ImageURL:  d.ImageURL,
		Website:   d.Website,
		CreatedAt: d.CreatedAt,
	}
	if d.Description != "" {
		desc := d.Description
		a.Description = &desc
	}
	if d.Genre != "" {
		genre := d.Genre
		a.Genre = &genre
	}
	return a
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	// Немецкий анализатор для имен и описаний
	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"analysis": map[string]interface{}{
				"normalizer": map[string]interface{}{
					"genre_normalizer": map[string]interface{}{
						"type":   "custom",
						"filter": []string{"lowercase", "asciifolding"},
					},
				},
				"analyzer": map[string]interface{}{
					"festival_analyzer": map[string]interface{}{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "asciifolding", "german_stop", "german_stemmer"},
					},
				},
				"filter": map[string]interface{}{
					"german_stop": map[string]interface{}{
						"type":      "stop",
						"stopwords": "_german_",
					},
					"german_stemmer": map[string]interface{}{
						"type":     "stemmer",
						"language": "light_german",
					},
				},
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type": "long",
				},
				"name": map[string]interface{}{
					"type":     "text",
					"analyzer": "festival_analyzer",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{
							"type":         "keyword",
							"ignore_above": 256,
						},
					},
				},
				"slug": map[string]interface{}{
					"type": "keyword",
				},
				"description": map[string]interface{}{
					"type":     "text",
					"analyzer": "festival_analyzer",
				},
				"genre": map[string]interface{}{
					"type":       "keyword",
					"normalizer": "genre_normalizer",
				},
				"image_url": map[string]interface{}{
					"type":  "keyword",
					"index": false,
				},
				"website": map[string]interface{}{
					"type":  "keyword",
					"index": false,
				},
				"created_at": map[string]interface{}{
					"type": "date",
				},
			},
		},
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// SearchArtists ищет артистов по имени и описанию, genre - точный фильтр
func (c *ElasticsearchClient) SearchArtists(ctx context.Context, query, genre string) ([]models.Artist, error) {
	searchRequest := map[string]interface{}{
		"query": buildSearchQuery(query, genre),
		"sort":  buildSortQuery(query),
		"size":  200,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source artistDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	artists := make([]models.Artist, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		artists[i] = hit.Source.toArtist()
	}

	return artists, nil
}

func buildSearchQuery(query, genre string) map[string]interface{} {
	var must, filter []map[string]interface{}

	if q := strings.TrimSpace(query); q != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q,
				"fields":    []string{"name^3", "description"},
				"fuzziness": "AUTO",
			},
		})
	}

	if g := strings.TrimSpace(genre); g != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{
				"genre": strings.ToLower(g),
			},
		})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{"bool": boolQuery}
}

func buildSortQuery(query string) []map[string]interface{} {
	if strings.TrimSpace(query) != "" {
		return []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"name.keyword": map[string]interface{}{"order": "asc"}},
		}
	}

	return []map[string]interface{}{
		{"name.keyword": map[string]interface{}{"order": "asc"}},
	}
}

// IndexArtist добавляет или заменяет документ артиста
func (c *ElasticsearchClient) IndexArtist(ctx context.Context, artist *models.Artist) error {
	docJSON, err := json.Marshal(toDocument(artist))
	if err != nil {
		return fmt.Errorf("failed to marshal artist: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(artist.ID, 10),
		Body:       bytes.NewReader(docJSON),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index artist: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteArtist удаляет документ; отсутствие документа не ошибка
func (c *ElasticsearchClient) DeleteArtist(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

// Count возвращает количество документов в индексе
func (c *ElasticsearchClient) Count(ctx context.Context) (int64, error) {
	req := esapi.CountRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return 0, fmt.Errorf("failed to execute count: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("count error: %s", res.String())
	}

	var response struct {
		Count int64 `json:"count"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}

	return response.Count, nil
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
