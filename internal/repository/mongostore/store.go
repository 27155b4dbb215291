// Package mongostore keeps nodes in a MongoDB collection with a 2dsphere
// index and delegates radius search to $near.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/pkg/geo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the subset of *mongo.Collection the store uses.
type Collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// Store is a repository.Repository over a MongoDB collection.
//
// Identifiers are hex ObjectIDs. Get, Contains and Delete treat an id that is
// not valid hex as absent; Upsert rejects it with ErrInvalidIdentifier.
type Store struct {
	client *mongo.Client
	coll   Collection
}

var _ repository.Repository = (*Store)(nil)

type Config struct {
	URI        string
	Database   string
	Collection string
}

// Open connects to MongoDB and makes sure the 2dsphere index exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: connect to mongo: %w", repository.ErrUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping mongo: %w", repository.ErrUnavailable, err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: create 2dsphere index: %w", repository.ErrUnavailable, err)
	}

	log.Printf("Connected to MongoDB collection %s.%s", cfg.Database, cfg.Collection)
	return &Store{client: client, coll: coll}, nil
}

// New wraps an existing collection. The caller owns the collection's client.
func New(coll Collection) *Store {
	return &Store{coll: coll}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", repository.ErrUnavailable, op, err)
}

func (s *Store) Search(ctx context.Context, center geo.Coordinates, radius geo.Distance) (repository.Cursor, error) {
	if radius.Meters() <= 0 {
		return repository.NewSliceCursor(nil), nil
	}
	cur, err := s.coll.Find(ctx, nearFilter(center, radius.Meters()))
	if err != nil {
		return nil, unavailable("find near", err)
	}
	return &nodeCursor{cur: cur}, nil
}

func (s *Store) Upsert(ctx context.Context, node models.Node) (models.Node, error) {
	id := primitive.NewObjectID()
	if node.Persisted() {
		parsed, err := primitive.ObjectIDFromHex(node.ID)
		if err != nil {
			return models.Node{}, fmt.Errorf("%w: %q is not an ObjectID", repository.ErrInvalidIdentifier, node.ID)
		}
		id = parsed
	}

	_, err := s.coll.ReplaceOne(ctx, idFilter(id), toDocument(id, node), options.Replace().SetUpsert(true))
	if err != nil {
		return models.Node{}, unavailable("replace", err)
	}
	return node.WithID(id.Hex()), nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Node, bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Node{}, false, nil
	}

	var doc document
	err = s.coll.FindOne(ctx, idFilter(oid)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Node{}, false, nil
	}
	if err != nil {
		return models.Node{}, false, unavailable("find one", err)
	}

	n, err := doc.node()
	if err != nil {
		return models.Node{}, false, fmt.Errorf("decode node %s: %w", id, err)
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
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := s.coll.DeleteOne(ctx, idFilter(oid))
	if err != nil {
		return false, unavailable("delete", err)
	}
	return res.DeletedCount == 1, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, unavailable("count", err)
	}
	return int(n), nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// nodeCursor decodes documents from a driver cursor one at a time.
type nodeCursor struct {
	cur  *mongo.Cursor
	node models.Node
	err  error
}

func (c *nodeCursor) Next(ctx context.Context) bool {
	if c.err != nil || !c.cur.Next(ctx) {
		return false
	}
	var doc document
	if err := c.cur.Decode(&doc); err != nil {
		c.err = fmt.Errorf("decode document: %w", err)
		return false
	}
	n, err := doc.node()
	if err != nil {
		c.err = fmt.Errorf("decode document %s: %w", doc.ID.Hex(), err)
		return false
	}
	c.node = n
	return true
}

func (c *nodeCursor) Node() models.Node { return c.node }

func (c *nodeCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.cur.Err(); err != nil {
		return unavailable("cursor", err)
	}
	return nil
}

func (c *nodeCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
