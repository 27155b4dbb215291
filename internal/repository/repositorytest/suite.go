// Package repositorytest holds the behaviour every repository backend must
// show, so each backend's tests can run the same scenarios.
package repositorytest

import (
	"context"
	"testing"

	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository. It is called once per scenario.
type Factory func(t *testing.T) repository.Repository

// BelfastCentre is the search origin of the Belfast scenario.
var BelfastCentre = geo.Coordinates{Lat: 54.098494, Lon: -6.242611}

// BelfastNodes are six nodes at increasing distance from BelfastCentre.
func BelfastNodes() (me, you, him, her, them, us models.Node) {
	me = models.NewNode(geo.Coordinates{Lat: 54.098494, Lon: -6.242611}, "me")
	you = models.NewNode(geo.Coordinates{Lat: 54.103859, Lon: -6.252195}, "you")
	him = models.NewNode(geo.Coordinates{Lat: 54.035867, Lon: -6.307209}, "him")
	her = models.NewNode(geo.Coordinates{Lat: 54.395999, Lon: -6.482304}, "her")
	them = models.NewNode(geo.Coordinates{Lat: 54.387373, Lon: -7.017335}, "them")
	us = models.NewNode(geo.Coordinates{Lat: 52.146571, Lon: -7.408515}, "us")
	return
}

// Run executes every scenario against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("search", func(t *testing.T) { testSearch(t, newRepo(t)) })
	t.Run("upsert replaces in place", func(t *testing.T) { testUpsert(t, newRepo(t)) })
	t.Run("upsert is idempotent", func(t *testing.T) { testUpsertIdempotent(t, newRepo(t)) })
	t.Run("get missing", func(t *testing.T) { testGetMissing(t, newRepo(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
}

// Values returns the carried values of nodes, which is what node equality compares.
func Values(nodes []models.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Value)
	}
	return out
}

func search(t *testing.T, repo repository.Repository, center geo.Coordinates, radius geo.Distance) []models.Node {
	t.Helper()
	ctx := context.Background()
	cur, err := repo.Search(ctx, center, radius)
	require.NoError(t, err)
	nodes, err := repository.Collect(ctx, cur)
	require.NoError(t, err)
	return nodes
}

func testSearch(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	n, err := repo.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	me, you, him, her, them, us := BelfastNodes()
	for _, node := range []models.Node{me, you, him, her, them, us} {
		_, err := repo.Upsert(ctx, node)
		require.NoError(t, err)
	}

	n, err = repo.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, n)

	criteria := map[geo.Distance][]models.Node{
		geo.FromMeters(-100):   {},
		geo.FromMeters(0):      {},
		geo.FromMeters(500):    {me},
		geo.FromMeters(5000):   {me, you},
		geo.FromMeters(10000):  {me, you, him},
		geo.FromMeters(25000):  {me, you, him},
		geo.FromMeters(50000):  {me, you, him, her},
		geo.FromMeters(100000): {me, you, him, her, them},
		geo.FromMeters(250000): {me, you, him, her, them, us},
	}

	for radius, expected := range criteria {
		t.Run(radius.String(), func(t *testing.T) {
			actual := search(t, repo, BelfastCentre, radius)
			assert.ElementsMatch(t, Values(expected), Values(actual))
			for _, node := range actual {
				assert.True(t, node.Persisted(), "search results carry identifiers")
			}
		})
	}
}

func testUpsert(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	inserted, err := repo.Upsert(ctx, models.NewNode(BelfastCentre, "me"))
	require.NoError(t, err)
	require.True(t, inserted.Persisted())

	ok, err := repo.Contains(ctx, inserted.ID)
	require.NoError(t, err)
	require.True(t, ok)

	updated, err := repo.Upsert(ctx, models.Node{ID: inserted.ID, Coordinates: BelfastCentre, Value: "another"})
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, updated.ID)

	got, ok, err := repo.Get(ctx, inserted.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, updated.Equal(got))
	assert.Equal(t, "another", got.Value)
	assert.InDelta(t, BelfastCentre.Lat, got.Coordinates.Lat, 1e-9)
	assert.InDelta(t, BelfastCentre.Lon, got.Coordinates.Lon, 1e-9)

	n, err := repo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testUpsertIdempotent(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	first, err := repo.Upsert(ctx, models.NewNode(BelfastCentre, "me"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		again, err := repo.Upsert(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}

	n, err := repo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "me", got.Value)
}

func testGetMissing(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	stored, err := repo.Upsert(ctx, models.NewNode(BelfastCentre, "me"))
	require.NoError(t, err)
	_, err = repo.Delete(ctx, stored.ID)
	require.NoError(t, err)

	_, ok, err := repo.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Contains(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDelete(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	node, err := repo.Upsert(ctx, models.NewNode(BelfastCentre, "me"))
	require.NoError(t, err)
	other, err := repo.Upsert(ctx, models.NewNode(BelfastCentre, "you"))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, node.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, node.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete finds nothing")

	_, err = repo.Delete(ctx, "")
	assert.ErrorIs(t, err, repository.ErrInvalidIdentifier)

	ok, err := repo.Contains(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, ok, "unrelated nodes survive")

	n, err := repo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
