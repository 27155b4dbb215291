package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/internal/repository/repositorytest"
	"geospatial/pkg/geo"
	"geospatial/pkg/location"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGeocoder struct {
	at  geo.Coordinates
	err error
}

func (s stubGeocoder) Geocode(context.Context, string) (geo.Coordinates, error) {
	return s.at, s.err
}

type searchBody struct {
	Unit    string         `json:"unit"`
	Total   int            `json:"total"`
	Count   int            `json:"count"`
	Results []NodeResponse `json:"results"`
}

func newTestRouter(t *testing.T, opts Options, geocoder Geocoder) (*gin.Engine, repository.Repository) {
	t.Helper()
	repo := repository.NewInMemory()
	ctx := context.Background()
	me, you, him, her, them, us := repositorytest.BelfastNodes()
	for _, n := range []models.Node{me, you, him, her, them, us} {
		_, err := repo.Upsert(ctx, n)
		require.NoError(t, err)
	}
	return NewRouter(New(repo, geocoder), opts), repo
}

func do(r http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)
	w := do(r, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestNodeCRUD(t *testing.T) {
	r, repo := newTestRouter(t, Options{}, nil)

	w := do(r, http.MethodPost, "/api/nodes", `{"lat":54.6,"lon":-5.93,"value":"new"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created NodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "new", created.Value)

	w = do(r, http.MethodGet, "/api/nodes/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got NodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created, got)

	w = do(r, http.MethodPut, "/api/nodes/"+created.ID, `{"lat":54.61,"lon":-5.94,"value":"moved"}`)
	require.Equal(t, http.StatusOK, w.Code)
	n, ok, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "moved", n.Value)
	assert.Equal(t, 54.61, n.Coordinates.Lat)

	w = do(r, http.MethodDelete, "/api/nodes/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodDelete, "/api/nodes/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/nodes/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpsert_BadRequest(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)

	cases := map[string]string{
		"missing lon":  `{"lat":1,"value":"x"}`,
		"not json":     `lat=1`,
		"out of range": `{"lat":100,"lon":0,"value":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/nodes", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSearchNodes(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)
	centre := repositorytest.BelfastCentre

	tests := []struct {
		query  string
		values []string
	}{
		{fmt.Sprintf("lat=%v&lon=%v&radius=500", centre.Lat, centre.Lon), []string{"me"}},
		{fmt.Sprintf("lat=%v&lon=%v&radius=5000", centre.Lat, centre.Lon), []string{"me", "you"}},
		{fmt.Sprintf("lat=%v&lon=%v&radius=10&unit=km", centre.Lat, centre.Lon), []string{"me", "you", "him"}},
		{fmt.Sprintf("lat=%v&lon=%v&radius=0", centre.Lat, centre.Lon), []string{}},
		{fmt.Sprintf("lat=%v&lon=%v&radius=-100", centre.Lat, centre.Lon), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(r, http.MethodGet, "/api/nodes/search?"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var body searchBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			values := make([]string, 0, len(body.Results))
			for _, n := range body.Results {
				values = append(values, n.Value)
				require.NotNil(t, n.Distance)
			}
			assert.Equal(t, tt.values, values, "nearest first")
		})
	}
}

func TestSearchNodes_UnitAndLimit(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)
	centre := repositorytest.BelfastCentre

	w := do(r, http.MethodGet, fmt.Sprintf("/api/nodes/search?lat=%v&lon=%v&radius=100&unit=miles&limit=2", centre.Lat, centre.Lon), "")
	require.Equal(t, http.StatusOK, w.Code)
	var body searchBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "MILES", body.Unit)
	assert.Equal(t, 2, body.Count)
	assert.Greater(t, body.Total, 2)
	for _, n := range body.Results {
		coords := geo.Coordinates{Lat: n.Lat, Lon: n.Lon}
		assert.InDelta(t, geo.HaversineMeters(centre, coords)/1609.344, *n.Distance, 1e-9)
	}
}

func TestSearchNodes_BadRequest(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)

	for _, q := range []string{
		"radius=10",
		"lat=1&lon=2",
		"lat=1&lon=2&radius=x",
		"lat=1&lon=2&radius=10&unit=furlongs",
		"lat=1&lon=2&radius=10&limit=0",
		"q=belfast&radius=10",
	} {
		t.Run(q, func(t *testing.T) {
			w := do(r, http.MethodGet, "/api/nodes/search?"+q, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSearchNodes_ByPlace(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, stubGeocoder{at: repositorytest.BelfastCentre})
	w := do(r, http.MethodGet, "/api/nodes/search?q=Belfast&radius=5000", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body searchBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	r, _ = newTestRouter(t, Options{}, stubGeocoder{err: fmt.Errorf("%w for %q", location.ErrNotFound, "x")})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/nodes/search?q=x&radius=1", "").Code)

	r, _ = newTestRouter(t, Options{}, stubGeocoder{err: errors.New("timeout")})
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodGet, "/api/nodes/search?q=x&radius=1", "").Code)
}

type downRepo struct {
	repository.Repository
}

func (downRepo) Get(context.Context, string) (models.Node, bool, error) {
	return models.Node{}, false, fmt.Errorf("%w: get: connection refused", repository.ErrUnavailable)
}

func TestWriteError_Unavailable(t *testing.T) {
	r := NewRouter(New(downRepo{repository.NewInMemory()}, nil), Options{})
	w := do(r, http.MethodGet, "/api/nodes/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("s3cret")
	r, _ := newTestRouter(t, Options{JWTSecret: secret}, nil)
	body := `{"lat":54.6,"lon":-5.93,"value":"new"}`

	valid, err := IssueToken(secret, "tester", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "tester", -time.Hour)
	require.NoError(t, err)
	forged, err := IssueToken([]byte("other"), "tester", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/nodes", body).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/nodes", body, "Authorization", "Bearer "+expired).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/nodes", body, "Authorization", "Bearer "+forged).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/nodes", body, "Authorization", valid).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/nodes", body, "Authorization", "Bearer "+valid).Code)

	// reads stay public
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/nodes/none", "").Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("geo_repository_operations_total 1\n"))
	})
	r, _ := newTestRouter(t, Options{Metrics: metrics}, nil)
	w := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "geo_repository_operations_total")
}
