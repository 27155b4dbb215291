package env

import (
	"fmt"
	"strings"
)

// Backend names accepted in GEO_BACKEND.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendElastic  = "elastic"
)

// Config is everything the binaries read from the environment.
type Config struct {
	Backend string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	PostgresDSN string

	ElasticURL   string
	ElasticIndex string

	KafkaBroker  string
	KafkaTopic   string
	KafkaGroupID string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	SnapshotBucket string

	HTTPAddr     string
	JWTSecret    string
	NominatimURL string
}

// Load builds a Config from the environment, filling defaults that suit a
// local development setup.
func Load() (Config, error) {
	cfg := Config{
		Backend: strings.ToLower(GetEnvOrDefault("GEO_BACKEND", BackendMemory)),

		MongoURI:        GetEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   GetEnvOrDefault("MONGO_DATABASE", "geospatial"),
		MongoCollection: GetEnvOrDefault("MONGO_COLLECTION", "coordinates"),

		PostgresDSN: GetEnvOrDefault("POSTGRES_DSN", "postgres://localhost:5432/geospatial?sslmode=disable"),

		ElasticURL:   GetEnvOrDefault("ELASTIC_URL", "http://localhost:9200"),
		ElasticIndex: GetEnvOrDefault("ELASTIC_INDEX", "nodes"),

		KafkaBroker:  GetEnvOrDefault("KAFKA_BROKER", ""),
		KafkaTopic:   GetEnvOrDefault("KAFKA_TOPIC", "geo-node-events"),
		KafkaGroupID: GetEnvOrDefault("KAFKA_GROUP_ID", "geo-replicator"),

		MinioEndpoint:  GetEnvOrDefault("MINIO_ENDPOINT", ""),
		MinioAccessKey: GetEnvOrDefault("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: GetEnvOrDefault("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    GetBool("MINIO_USE_SSL"),
		SnapshotBucket: GetEnvOrDefault("SNAPSHOT_BUCKET", "geo-snapshots"),

		HTTPAddr:     GetEnvOrDefault("HTTP_ADDR", ":8080"),
		JWTSecret:    GetEnvOrDefault("JWT_SECRET", ""),
		NominatimURL: GetEnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
	}

	switch cfg.Backend {
	case BackendMemory, BackendMongo, BackendPostgres, BackendElastic:
	default:
		return Config{}, fmt.Errorf("GEO_BACKEND %q is not one of %s, %s, %s, %s",
			cfg.Backend, BackendMemory, BackendMongo, BackendPostgres, BackendElastic)
	}
	return cfg, nil
}

// KafkaEnabled reports whether a broker is configured.
func (c Config) KafkaEnabled() bool {
	return c.KafkaBroker != ""
}
