// Package pgstore keeps nodes in PostgreSQL with PostGIS and delegates radius
// search to ST_DWithin over a geography column.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/pkg/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createTable = `CREATE TABLE IF NOT EXISTS geo_nodes(
		id text PRIMARY KEY,
		value text NOT NULL,
		location geography(Point, 4326) NOT NULL
	);`

	createLocationIndex = `CREATE INDEX IF NOT EXISTS idx_geo_nodes_location ON geo_nodes USING gist(location);`

	// PostGIS points take longitude first. Searches measure on the sphere
	// (use_spheroid = false) to agree with the in-memory backend.
	upsertNode = `INSERT INTO geo_nodes(id, value, location)
		VALUES($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value, location = EXCLUDED.location;`

	selectNode = `SELECT id, value, ST_Y(location::geometry), ST_X(location::geometry) FROM geo_nodes WHERE id = $1;`

	searchNodes = `SELECT id, value, ST_Y(location::geometry), ST_X(location::geometry) FROM geo_nodes
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false);`

	deleteNode = `DELETE FROM geo_nodes WHERE id = $1;`

	countNodes = `SELECT count(*) FROM geo_nodes;`
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a repository.Repository over a PostGIS table. New identifiers are
// random UUIDs.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

var _ repository.Repository = (*Store)(nil)

// Open connects to dsn and creates the table and its GiST index if needed.
// The postgis extension must already be installed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to postgres: %w", repository.ErrUnavailable, err)
	}
	s, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	log.Println("Connected to PostgreSQL, table geo_nodes ready")
	return s, nil
}

// New prepares the schema on db and returns a store using it.
func New(ctx context.Context, db DB) (*Store, error) {
	if _, err := db.Exec(ctx, createTable); err != nil {
		return nil, unavailable("create table", err)
	}
	if _, err := db.Exec(ctx, createLocationIndex); err != nil {
		return nil, unavailable("create index", err)
	}
	return &Store{db: db}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", repository.ErrUnavailable, op, err)
}

func (s *Store) Search(ctx context.Context, center geo.Coordinates, radius geo.Distance) (repository.Cursor, error) {
	if radius.Meters() <= 0 {
		return repository.NewSliceCursor(nil), nil
	}
	rows, err := s.db.Query(ctx, searchNodes, center.Lon, center.Lat, radius.Meters())
	if err != nil {
		return nil, unavailable("search", err)
	}
	return &rowsCursor{rows: rows}, nil
}

func (s *Store) Upsert(ctx context.Context, node models.Node) (models.Node, error) {
	if !node.Persisted() {
		node.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, upsertNode, node.ID, node.Value, node.Coordinates.Lon, node.Coordinates.Lat)
	if err != nil {
		return models.Node{}, unavailable("upsert", err)
	}
	return node, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Node, bool, error) {
	if id == "" {
		return models.Node{}, false, nil
	}
	var n models.Node
	err := s.db.QueryRow(ctx, selectNode, id).Scan(&n.ID, &n.Value, &n.Coordinates.Lat, &n.Coordinates.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Node{}, false, nil
	}
	if err != nil {
		return models.Node{}, false, unavailable("get", err)
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
	tag, err := s.db.Exec(ctx, deleteNode, id)
	if err != nil {
		return false, unavailable("delete", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.QueryRow(ctx, countNodes).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return int(n), nil
}

func (s *Store) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// rowsCursor scans one row per Next; rows stream from the server.
type rowsCursor struct {
	rows pgx.Rows
	node models.Node
	err  error
}

func (c *rowsCursor) Next(context.Context) bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var n models.Node
	if err := c.rows.Scan(&n.ID, &n.Value, &n.Coordinates.Lat, &n.Coordinates.Lon); err != nil {
		c.err = fmt.Errorf("scan node: %w", err)
		c.rows.Close()
		return false
	}
	c.node = n
	return true
}

func (c *rowsCursor) Node() models.Node { return c.node }

func (c *rowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		return unavailable("rows", err)
	}
	return nil
}

func (c *rowsCursor) Close(context.Context) error {
	c.rows.Close()
	return nil
}
