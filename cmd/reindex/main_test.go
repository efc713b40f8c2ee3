package main

import (
	"context"
	"errors"
	"testing"

	"festival/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	artists []models.Artist
	err     error
}

func (s *stubSource) List(context.Context, string, string) ([]models.Artist, error) {
	return s.artists, s.err
}

type stubIndex struct {
	indexed []string
	failFor map[string]bool
	stale   []models.Artist
	deleted []int64
}

func (i *stubIndex) SearchArtists(context.Context, string, string) ([]models.Artist, error) {
	return i.stale, nil
}

func (i *stubIndex) DeleteArtist(_ context.Context, id int64) error {
	i.deleted = append(i.deleted, id)
	return nil
}

func (i *stubIndex) IndexArtist(_ context.Context, a *models.Artist) error {
	if i.failFor[a.Slug] {
		return errors.New("es: 503")
	}
	i.indexed = append(i.indexed, a.Slug)
	return nil
}

func (i *stubIndex) Count(context.Context) (int64, error) {
	return int64(len(i.indexed)), nil
}

func TestReindexArtistsIndexesAll(t *testing.T) {
	source := &stubSource{artists: []models.Artist{{ID: 1, Slug: "kupferblech"}, {ID: 2, Slug: "die-wanderduenen"}}}
	index := &stubIndex{}

	require.NoError(t, reindexArtists(context.Background(), source, index))
	assert.Equal(t, []string{"kupferblech", "die-wanderduenen"}, index.indexed)
}

func TestReindexArtistsToleratesPartialFailure(t *testing.T) {
	source := &stubSource{artists: []models.Artist{{ID: 1, Slug: "a"}, {ID: 2, Slug: "b"}}}
	index := &stubIndex{failFor: map[string]bool{"a": true}}

	require.NoError(t, reindexArtists(context.Background(), source, index))
	assert.Equal(t, []string{"b"}, index.indexed)
}

func TestReindexArtistsFailsWhenNothingIndexed(t *testing.T) {
	source := &stubSource{artists: []models.Artist{{ID: 1, Slug: "a"}}}
	index := &stubIndex{failFor: map[string]bool{"a": true}}

	assert.Error(t, reindexArtists(context.Background(), source, index))
}

func TestReindexArtistsSourceError(t *testing.T) {
	err := reindexArtists(context.Background(), &stubSource{err: errors.New("db down")}, &stubIndex{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list artists")
}

func TestReindexArtistsPrunesDeleted(t *testing.T) {
	source := &stubSource{artists: []models.Artist{{ID: 1, Slug: "a"}}}
	index := &stubIndex{stale: []models.Artist{{ID: 1, Slug: "a"}, {ID: 9, Slug: "weg"}}}

	require.NoError(t, reindexArtists(context.Background(), source, index))
	assert.Equal(t, []int64{9}, index.deleted)
}
