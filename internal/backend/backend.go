// Package backend picks the repository implementation named in the configuration.
package backend

import (
	"context"
	"fmt"
	"log"

	"geospatial/internal/env"
	"geospatial/internal/repository"
	"geospatial/internal/repository/elasticstore"
	"geospatial/internal/repository/mongostore"
	"geospatial/internal/repository/pgstore"
)

// Open returns the repository selected by cfg.Backend. The caller closes it.
func Open(ctx context.Context, cfg env.Config) (repository.Repository, error) {
	log.Printf("Opening %s repository backend", cfg.Backend)

	var (
		repo repository.Repository
		err  error
	)
	switch cfg.Backend {
	case env.BackendMemory, "":
		return repository.NewInMemory(), nil
	case env.BackendMongo:
		var s *mongostore.Store
		s, err = mongostore.Open(ctx, mongostore.Config{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		repo = s
	case env.BackendPostgres:
		var s *pgstore.Store
		s, err = pgstore.Open(ctx, cfg.PostgresDSN)
		repo = s
	case env.BackendElastic:
		var s *elasticstore.Store
		s, err = elasticstore.Open(ctx, elasticstore.Config{
			URL:   cfg.ElasticURL,
			Index: cfg.ElasticIndex,
		})
		repo = s
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}
