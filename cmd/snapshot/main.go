// Command snapshot copies a repository to and from object storage.
//
//	snapshot export
//	snapshot import [-key snapshots/mongo/20240501T000000Z.jsonl]
//
// Without -key, import reads the newest snapshot of the configured backend.
// The exit status is non-zero when the command fails.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"geospatial/internal/backend"
	"geospatial/internal/env"
	"geospatial/internal/storage"
	"geospatial/pkg/graceful"
)

const usage = "usage: snapshot export|import [-key KEY] [-source NAME]"

var errUsage = errors.New(usage)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		log.Printf("snapshot failed: %v", err)
		os.Exit(1)
	}
}

// run executes one command. Every resource it opens is closed before it
// returns, so main can exit on the result.
func run(args []string) (err error) {
	if len(args) < 1 {
		return errUsage
	}
	command := args[0]
	if command != "export" && command != "import" {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	env.LoadEnv()
	cfg, err := env.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	key := fs.String("key", "", "object key to import; defaults to the newest snapshot")
	source := fs.String("source", cfg.Backend, "name the snapshots are grouped under")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	s3Service, err := storage.NewS3Service(storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return err
	}

	repo, err := backend.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	defer func() {
		if closeErr := graceful.Shutdown(10*time.Second, repo.Close); closeErr != nil {
			log.Printf("Failed to close repository: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}()

	start := time.Now()
	switch command {
	case "export":
		written, err := export(ctx, repo, s3Service, cfg.SnapshotBucket, *source, start)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		log.Printf("Exported to %s/%s", cfg.SnapshotBucket, written)
	case "import":
		if err := importSnapshot(ctx, repo, s3Service, cfg.SnapshotBucket, *source, *key); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	log.Printf("Finished %s, took %s", command, time.Since(start))
	return nil
}
