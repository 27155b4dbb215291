package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"geospatial/internal/keys"
	"geospatial/internal/models"
	"geospatial/internal/pipeline"
	"geospatial/internal/repository"
	"geospatial/pkg/geo"
)

type snapshotStore interface {
	CreateBucket(ctx context.Context, bucketName string, location string) (bool, error)
	WriteSnapshot(ctx context.Context, bucketName, key string, nodes <-chan models.Node) (int, error)
	ReadSnapshot(ctx context.Context, bucketName, key string) (<-chan *models.Node, <-chan error)
	LatestSnapshot(ctx context.Context, bucketName, prefix string) (string, error)
}

// export writes every node of repo to a new snapshot and returns its key.
func export(ctx context.Context, repo repository.Repository, store snapshotStore, bucket, source string, at time.Time) (string, error) {
	if _, err := store.CreateBucket(ctx, bucket, ""); err != nil {
		return "", err
	}

	cur, err := repo.Search(ctx, geo.Coordinates{}, geo.Everywhere)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	nodes := make(chan models.Node)
	scanErr := make(chan error, 1)
	go func() {
		defer close(nodes)
		scanErr <- repository.Each(ctx, cur, func(n models.Node) error {
			select {
			case nodes <- n:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	key := keys.Snapshot(source, at)
	count, err := store.WriteSnapshot(ctx, bucket, key, nodes)
	if err != nil {
		cancel()
		<-scanErr
		return "", err
	}
	if err := <-scanErr; err != nil {
		return "", fmt.Errorf("scan repository: %w", err)
	}
	log.Printf("Wrote %d nodes", count)
	return key, nil
}

// importSnapshot loads the snapshot at key, or the newest one of source when
// key is empty, into repo through the import pipeline.
func importSnapshot(ctx context.Context, repo repository.Repository, store snapshotStore, bucket, source, key string) error {
	if key == "" {
		latest, err := store.LatestSnapshot(ctx, bucket, keys.SnapshotPrefix(source))
		if err != nil {
			return err
		}
		key = latest
	}
	log.Printf("Importing %s/%s", bucket, key)

	nodes, errc := store.ReadSnapshot(ctx, bucket, key)
	stats := pipeline.Import(repo).Process(ctx, nodes)
	// Process may return early on cancel; drain so the reader can exit.
	for range nodes {
	}
	if err := <-errc; err != nil {
		return err
	}
	log.Printf("Imported %d nodes, dropped %d, failed %d", stats.Processed, stats.Dropped, stats.Failed)
	if stats.Failed > 0 {
		return fmt.Errorf("%d nodes failed to import", stats.Failed)
	}
	return nil
}
