package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"geospatial/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNoSnapshot is returned when a prefix holds no snapshot objects.
var ErrNoSnapshot = errors.New("storage: no snapshot found")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// S3Service stores repository snapshots in S3-compatible storage. A snapshot
// is one object holding a JSON document per line, one line per node.
type S3Service struct {
	client *minio.Client
}

func NewS3Service(cfg Config) (*S3Service, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("missing one or more required settings: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Println("Successfully connected to MinIO endpoint:", cfg.Endpoint)
	return &S3Service{client: minioClient}, nil
}

// CreateBucket makes bucketName unless it already exists.
func (s *S3Service) CreateBucket(ctx context.Context, bucketName string, location string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		err = s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return false, err
		}
		log.Printf("Created bucket '%s'", bucketName)
	}
	return true, nil
}

// WriteSnapshot drains nodes into a single object at key and returns how many
// nodes were written. Nothing is uploaded if ctx is canceled first.
func (s *S3Service) WriteSnapshot(ctx context.Context, bucketName, key string, nodes <-chan models.Node) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case node, ok := <-nodes:
			if !ok {
				return count, s.put(ctx, bucketName, key, &buf, count)
			}
			if err := enc.Encode(node); err != nil {
				return 0, fmt.Errorf("failed to encode node %s: %w", node.ID, err)
			}
			count++
		}
	}
}

func (s *S3Service) put(ctx context.Context, bucketName, key string, buf *bytes.Buffer, count int) error {
	_, err := s.client.PutObject(
		ctx,
		bucketName,
		key,
		bytes.NewReader(buf.Bytes()),
		int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"},
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot in S3: %w", err)
	}
	log.Printf("Stored snapshot of %d nodes in bucket '%s' with key '%s'", count, bucketName, key)
	return nil
}

// ReadSnapshot streams the nodes of the snapshot at key. The node channel is
// closed when the object is exhausted or reading fails; the error channel then
// yields at most one error and is closed.
func (s *S3Service) ReadSnapshot(ctx context.Context, bucketName, key string) (<-chan *models.Node, <-chan error) {
	out := make(chan *models.Node)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(out)

		object, err := s.client.GetObject(ctx, bucketName, key, minio.GetObjectOptions{})
		if err != nil {
			errc <- fmt.Errorf("failed to get object from S3: %w", err)
			return
		}
		defer object.Close()

		scanner := bufio.NewScanner(object)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			var node models.Node
			if err := json.Unmarshal(text, &node); err != nil {
				errc <- fmt.Errorf("snapshot %s line %d: %w", key, line, err)
				return
			}
			select {
			case out <- &node:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errc <- fmt.Errorf("failed to read snapshot %s: %w", key, err)
		}
	}()
	return out, errc
}

// LatestSnapshot returns the greatest key under prefix.
func (s *S3Service) LatestSnapshot(ctx context.Context, bucketName, prefix string) (string, error) {
	latest := ""
	for obj := range s.client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return "", fmt.Errorf("failed to list snapshots: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, ".jsonl") && obj.Key > latest {
			latest = obj.Key
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w under %s/%s", ErrNoSnapshot, bucketName, prefix)
	}
	return latest, nil
}
