// Package elasticstore keeps nodes in an Elasticsearch index with a geo_point
// mapping and delegates radius search to a geo_distance filter.
package elasticstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/pkg/geo"

	"github.com/olivere/elastic/v7"
)

const mapping = `{
	"mappings": {
		"properties": {
			"value":    {"type": "keyword", "index": false},
			"location": {"type": "geo_point"}
		}
	}
}`

const (
	defaultPageSize  = 500
	defaultKeepAlive = "1m"
)

// document stores location as a [lon, lat] array, the GeoJSON order
// Elasticsearch expects for array-form geo points.
type document struct {
	Value    string    `json:"value"`
	Location []float64 `json:"location"`
}

func toDocument(n models.Node) document {
	return document{Value: n.Value, Location: n.Coordinates.LonLat()}
}

func decode(id string, source json.RawMessage) (models.Node, error) {
	var doc document
	if err := json.Unmarshal(source, &doc); err != nil {
		return models.Node{}, fmt.Errorf("decode node %s: %w", id, err)
	}
	c, err := geo.FromLonLat(doc.Location)
	if err != nil {
		return models.Node{}, fmt.Errorf("decode node %s: %w", id, err)
	}
	return models.Node{ID: id, Coordinates: c, Value: doc.Value}, nil
}

// distanceQuery is the filter for nodes within meters of center.
func distanceQuery(center geo.Coordinates, meters float64) elastic.Query {
	return elastic.NewBoolQuery().Filter(
		elastic.NewGeoDistanceQuery("location").
			Lat(center.Lat).
			Lon(center.Lon).
			Distance(strconv.FormatFloat(meters, 'f', -1, 64) + "m").
			DistanceType("arc"),
	)
}

type Config struct {
	URL   string
	Index string
	// PageSize is the number of hits fetched per scroll round trip.
	PageSize int
	// Refresh is passed on writes; "wait_for" makes them visible to the next search.
	Refresh string
}

// Store is a repository.Repository over an Elasticsearch index. Nodes without
// an ID are given one by Elasticsearch.
type Store struct {
	client   *elastic.Client
	index    string
	pageSize int
	refresh  string
}

var _ repository.Repository = (*Store)(nil)

// Open connects to the cluster and creates the index with its geo_point
// mapping when it does not exist yet.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create elastic client: %w", repository.ErrUnavailable, err)
	}
	s := New(client, cfg)
	if err := s.ensureIndex(ctx); err != nil {
		client.Stop()
		return nil, err
	}
	return s, nil
}

// New wraps an existing client without touching the cluster.
func New(client *elastic.Client, cfg Config) *Store {
	s := &Store{client: client, index: cfg.Index, pageSize: cfg.PageSize, refresh: cfg.Refresh}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.refresh == "" {
		s.refresh = "wait_for"
	}
	return s
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", repository.ErrUnavailable, op, err)
}

func (s *Store) ensureIndex(ctx context.Context) error {
	exists, err := s.client.IndexExists(s.index).Do(ctx)
	if err != nil {
		return unavailable("check index", err)
	}
	if exists {
		log.Printf("Index %s already exists.", s.index)
		return nil
	}
	res, err := s.client.CreateIndex(s.index).BodyString(mapping).Do(ctx)
	if err != nil {
		return unavailable("create index", err)
	}
	if !res.Acknowledged {
		log.Printf("CreateIndex %s was not acknowledged.", s.index)
	}
	log.Printf("Index %s created with geo_point mapping.", s.index)
	return nil
}

func (s *Store) Search(ctx context.Context, center geo.Coordinates, radius geo.Distance) (repository.Cursor, error) {
	if radius.Meters() <= 0 {
		return repository.NewSliceCursor(nil), nil
	}
	scroll := s.client.Scroll(s.index).
		Query(distanceQuery(center, radius.Meters())).
		Size(s.pageSize).
		KeepAlive(defaultKeepAlive)
	return &scrollCursor{scroll: scroll}, nil
}

func (s *Store) Upsert(ctx context.Context, node models.Node) (models.Node, error) {
	svc := s.client.Index().Index(s.index).BodyJson(toDocument(node)).Refresh(s.refresh)
	if node.Persisted() {
		svc = svc.Id(node.ID)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return models.Node{}, unavailable("index", err)
	}
	return node.WithID(res.Id), nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Node, bool, error) {
	if id == "" {
		return models.Node{}, false, nil
	}
	res, err := s.client.Get().Index(s.index).Id(id).Do(ctx)
	if elastic.IsNotFound(err) {
		return models.Node{}, false, nil
	}
	if err != nil {
		return models.Node{}, false, unavailable("get", err)
	}
	if !res.Found {
		return models.Node{}, false, nil
	}
	n, err := decode(res.Id, res.Source)
	if err != nil {
		return models.Node{}, false, err
	}
	return n, true, nil
}

func (s *Store) Contains(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.Get(ctx, id)
	return ok, err
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, repository.ErrInvalidIdentifier
	}
	res, err := s.client.Delete().Index(s.index).Id(id).Refresh(s.refresh).Do(ctx)
	if elastic.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("delete", err)
	}
	return res.Result == "deleted", nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.client.Count(s.index).Do(ctx)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return int(n), nil
}

func (s *Store) Close(context.Context) error {
	s.client.Stop()
	return nil
}

// scrollCursor pulls one page of hits per scroll round trip and hands them
// out one by one; nothing is fetched until the first Next.
type scrollCursor struct {
	scroll *elastic.ScrollService
	page   []*elastic.SearchHit
	node   models.Node
	done   bool
	err    error
}

func (c *scrollCursor) Next(ctx context.Context) bool {
	for len(c.page) == 0 {
		if c.done || c.err != nil {
			return false
		}
		res, err := c.scroll.Do(ctx)
		if errors.Is(err, io.EOF) {
			c.done = true
			return false
		}
		if err != nil {
			c.err = unavailable("scroll", err)
			return false
		}
		if res.Hits == nil || len(res.Hits.Hits) == 0 {
			c.done = true
			return false
		}
		c.page = res.Hits.Hits
	}

	hit := c.page[0]
	c.page = c.page[1:]
	n, err := decode(hit.Id, hit.Source)
	if err != nil {
		c.err = err
		return false
	}
	c.node = n
	return true
}

func (c *scrollCursor) Node() models.Node { return c.node }

func (c *scrollCursor) Err() error { return c.err }

func (c *scrollCursor) Close(ctx context.Context) error {
	c.page = nil
	c.done = true
	if err := c.scroll.Clear(ctx); err != nil {
		return unavailable("clear scroll", err)
	}
	return nil
}
