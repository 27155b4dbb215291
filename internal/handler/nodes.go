package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/pkg/geo"
	"geospatial/pkg/location"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 100
	maxLimit     = 10000
)

// Geocoder resolves a place name for "search near" queries.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geo.Coordinates, error)
}

// Handler serves node CRUD and proximity search.
type Handler struct {
	repo     repository.Repository
	geocoder Geocoder
}

// New returns a Handler over repo. geocoder may be nil, in which case
// searches by place name are rejected.
func New(repo repository.Repository, geocoder Geocoder) *Handler {
	return &Handler{repo: repo, geocoder: geocoder}
}

// NodeRequest is the body of POST and PUT.
type NodeRequest struct {
	Lat   *float64 `json:"lat" binding:"required"`
	Lon   *float64 `json:"lon" binding:"required"`
	Value string   `json:"value"`
}

// NodeResponse is a node as returned by the API. Distance is set on search
// results only, in the unit that was asked for.
type NodeResponse struct {
	ID       string   `json:"id"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Value    string   `json:"value"`
	Distance *float64 `json:"distance,omitempty"`
}

func toResponse(n models.Node) NodeResponse {
	return NodeResponse{ID: n.ID, Lat: n.Coordinates.Lat, Lon: n.Coordinates.Lon, Value: n.Value}
}

func (h *Handler) CreateNode(c *gin.Context) {
	h.upsert(c, "", http.StatusCreated)
}

func (h *Handler) PutNode(c *gin.Context) {
	h.upsert(c, c.Param("id"), http.StatusOK)
}

func (h *Handler) upsert(c *gin.Context, id string, status int) {
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	coords := geo.Coordinates{Lat: *req.Lat, Lon: *req.Lon}
	if err := coords.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := h.repo.Upsert(c.Request.Context(), models.Node{ID: id, Coordinates: coords, Value: req.Value})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, toResponse(node))
}

func (h *Handler) GetNode(c *gin.Context) {
	node, ok, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	c.JSON(http.StatusOK, toResponse(node))
}

func (h *Handler) DeleteNode(c *gin.Context) {
	ok, err := h.repo.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchNodes answers GET /api/nodes/search. The centre is either lat and lon
// or a place name in q. Results are ordered nearest first.
func (h *Handler) SearchNodes(c *gin.Context) {
	ctx := c.Request.Context()

	center, ok := h.searchCenter(c)
	if !ok {
		return
	}

	unit := geo.Meters
	if raw := c.Query("unit"); raw != "" {
		var err error
		if unit, err = geo.ParseUnit(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	radiusValue, err := strconv.ParseFloat(c.Query("radius"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a number"})
		return
	}
	radius, err := geo.From(radiusValue, unit)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cur, err := h.repo.Search(ctx, center, radius)
	if err != nil {
		writeError(c, err)
		return
	}
	nodes, err := repository.Collect(ctx, cur)
	if err != nil {
		writeError(c, err)
		return
	}

	results := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		d, err := geo.Haversine(center, n.Coordinates, unit)
		if err != nil {
			writeError(c, err)
			return
		}
		r := toResponse(n)
		r.Distance = &d
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return *results[i].Distance < *results[j].Distance })
	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"center":  center,
		"radius":  radiusValue,
		"unit":    unit.String(),
		"total":   total,
		"count":   len(results),
		"results": results,
	})
}

func (h *Handler) searchCenter(c *gin.Context) (geo.Coordinates, bool) {
	if q := c.Query("q"); q != "" {
		if h.geocoder == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "place search is not enabled"})
			return geo.Coordinates{}, false
		}
		center, err := h.geocoder.Geocode(c.Request.Context(), q)
		switch {
		case errors.Is(err, location.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return geo.Coordinates{}, false
		case err != nil:
			c.JSON(http.StatusBadGateway, gin.H{"error": "geocoder: " + err.Error()})
			return geo.Coordinates{}, false
		}
		return center, true
	}

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon, or q, are required"})
		return geo.Coordinates{}, false
	}
	center := geo.Coordinates{Lat: lat, Lon: lon}
	if err := center.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return geo.Coordinates{}, false
	}
	return center, true
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxLimit {
		return 0, errors.New("limit must be between 1 and " + strconv.Itoa(maxLimit))
	}
	return limit, nil
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrInvalidIdentifier), errors.Is(err, geo.ErrInvalidUnit):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
