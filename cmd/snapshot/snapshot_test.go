package main

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"geospatial/internal/keys"
	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/internal/repository/repositorytest"
	"geospatial/internal/storage"
	"geospatial/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps snapshots in memory, one slice of nodes per key.
type memStore struct {
	objects  map[string][]models.Node
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]models.Node)}
}

func (m *memStore) CreateBucket(context.Context, string, string) (bool, error) {
	return true, nil
}

func (m *memStore) WriteSnapshot(_ context.Context, bucket, key string, nodes <-chan models.Node) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	var out []models.Node
	for n := range nodes {
		out = append(out, n)
	}
	m.objects[bucket+"/"+key] = out
	return len(out), nil
}

func (m *memStore) ReadSnapshot(_ context.Context, bucket, key string) (<-chan *models.Node, <-chan error) {
	out := make(chan *models.Node)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(out)
		nodes, ok := m.objects[bucket+"/"+key]
		if !ok {
			errc <- errors.New("NoSuchKey")
			return
		}
		for i := range nodes {
			n := nodes[i]
			out <- &n
		}
	}()
	return out, errc
}

func (m *memStore) LatestSnapshot(_ context.Context, bucket, prefix string) (string, error) {
	var found []string
	for k := range m.objects {
		if rest, ok := strings.CutPrefix(k, bucket+"/"); ok && strings.HasPrefix(rest, prefix) {
			found = append(found, rest)
		}
	}
	if len(found) == 0 {
		return "", storage.ErrNoSnapshot
	}
	sort.Strings(found)
	return found[len(found)-1], nil
}

func seeded(t *testing.T) repository.Repository {
	t.Helper()
	repo := repository.NewInMemory()
	me, you, him, her, them, us := repositorytest.BelfastNodes()
	for _, n := range []models.Node{me, you, him, her, them, us} {
		_, err := repo.Upsert(context.Background(), n)
		require.NoError(t, err)
	}
	return repo
}

func all(t *testing.T, repo repository.Repository) []models.Node {
	t.Helper()
	ctx := context.Background()
	cur, err := repo.Search(ctx, geo.Coordinates{}, geo.Everywhere)
	require.NoError(t, err)
	nodes, err := repository.Collect(ctx, cur)
	require.NoError(t, err)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	src := seeded(t)
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	key, err := export(ctx, src, store, "bucket", "memory", at)
	require.NoError(t, err)
	assert.Equal(t, keys.Snapshot("memory", at), key)
	assert.Len(t, store.objects["bucket/"+key], 6)

	dst := repository.NewInMemory()
	require.NoError(t, importSnapshot(ctx, dst, store, "bucket", "memory", ""))
	assert.Equal(t, all(t, src), all(t, dst), "ids, coordinates and values survive the round trip")
}

func TestImport_PicksNewest(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store.objects["bucket/"+keys.Snapshot("memory", base)] = []models.Node{{ID: "old", Value: "old"}}
	store.objects["bucket/"+keys.Snapshot("memory", base.Add(time.Hour))] = []models.Node{{ID: "new", Value: "new"}}

	dst := repository.NewInMemory()
	require.NoError(t, importSnapshot(ctx, dst, store, "bucket", "memory", ""))

	ok, err := dst.Contains(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = dst.Contains(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImport_DropsInvalidNodes(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.objects["bucket/k.jsonl"] = []models.Node{
		{ID: "ok", Coordinates: geo.Coordinates{Lat: 1, Lon: 1}, Value: "ok"},
		{ID: "bad", Coordinates: geo.Coordinates{Lat: 1, Lon: 500}, Value: "bad"},
	}

	dst := repository.NewInMemory()
	require.NoError(t, importSnapshot(ctx, dst, store, "bucket", "memory", "k.jsonl"))
	n, err := dst.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImport_Errors(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	err := importSnapshot(ctx, repository.NewInMemory(), store, "bucket", "memory", "")
	assert.ErrorIs(t, err, storage.ErrNoSnapshot)

	err = importSnapshot(ctx, repository.NewInMemory(), store, "bucket", "memory", "missing.jsonl")
	assert.Error(t, err)
}

func TestExport_WriteError(t *testing.T) {
	store := newMemStore()
	store.writeErr = errors.New("bucket is read-only")

	_, err := export(context.Background(), seeded(t), store, "bucket", "memory", time.Now())
	assert.ErrorIs(t, err, store.writeErr)
}
