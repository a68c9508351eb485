package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"debtster_installments/internal/config/connections/mongo"
	"debtster_installments/internal/config/connections/postgres"
	"debtster_installments/internal/config/connections/s3"

	"github.com/joho/godotenv"
)

const (
	StoreREST     = "rest"
	StorePostgres = "postgres"
)

var ErrUnknownStore = errors.New("unknown debt store")

type Backend struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Installments struct {
	MaxRows           int
	Atomic            bool
	SubmitConcurrency int
	RequestTimeout    time.Duration
}

type Settings struct {
	Port         string
	DebtStore    string
	AWSRegion    string
	PresignTTL   time.Duration
	ImportHosts  []string
	Backend      Backend
	Installments Installments

	Postgres postgres.ConnectionInfo
	Mongo    mongo.ConnectionInfo
	S3       s3.ConnectionInfo
}

type Config struct {
	Settings
	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
}

// Load reads settings from the environment after applying .env, without connecting.
func Load() (Settings, error) {
	_ = godotenv.Load()

	s := Settings{
		Port:       getenv("SERVER_PORT", "8070"),
		DebtStore:  strings.ToLower(getenv("DEBT_STORE", StoreREST)),
		AWSRegion:  getenv("AWS_DEFAULT_REGION", "us-east-1"),
		PresignTTL: getduration("EXPORT_URL_TTL", 15*time.Minute),
		// http(s) schedule sources; empty allows none
		ImportHosts: getlist("IMPORT_ALLOWED_HOSTS"),
		Backend: Backend{
			BaseURL: getenv("BACKEND_URL", "http://localhost:8000/api"),
			Token:   getenv("BACKEND_TOKEN", ""),
			Timeout: getduration("BACKEND_TIMEOUT", 15*time.Second),
		},
		Installments: Installments{
			MaxRows:           getint("INSTALLMENTS_MAX_ROWS", 120),
			Atomic:            getbool("INSTALLMENTS_ATOMIC", false),
			SubmitConcurrency: getint("INSTALLMENTS_SUBMIT_CONCURRENCY", 8),
			RequestTimeout:    getduration("INSTALLMENTS_REQUEST_TIMEOUT", 20*time.Second),
		},
		S3: s3.ConnectionInfo{
			Endpoint:  getenv("AWS_ENDPOINT", "http://localhost:9000"),
			AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
			SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
			Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
			Bucket:    getenv("AWS_BUCKET", "installments"),
			UseSSL:    getbool("AWS_USE_SSL", false),
		},
		Mongo: mongo.ConnectionInfo{
			Scheme:     getenv("MONGO_SCHEME", "mongodb"),
			User:       getenv("MONGO_USER", "root"),
			Password:   getenv("MONGO_PASSWORD", "secret"),
			Host:       getenv("MONGO_HOST", "127.0.0.1"),
			Port:       getenv("MONGO_PORT", "27017"),
			DB:         getenv("MONGO_DB", "installments_db"),
			AuthSource: getenv("MONGO_AUTH_SOURCE", "admin"),
		},
		Postgres: postgres.ConnectionInfo{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", "hello-world"),
			DB:       getenv("PG_DB", "debtster"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
			MaxConns: int32(getint("PG_MAX_CONNS", 0)),
		},
	}

	switch s.DebtStore {
	case StoreREST, StorePostgres:
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownStore, s.DebtStore)
	}
	if s.Installments.MaxRows <= 0 {
		s.Installments.MaxRows = 120
	}
	if s.Installments.SubmitConcurrency <= 0 {
		s.Installments.SubmitConcurrency = 8
	}
	return s, nil
}

func Init(ctx context.Context) *Config {
	settings, err := Load()
	if err != nil {
		log.Fatal("config error:", err)
	}

	s3c, err := s3.NewConnection(settings.S3)
	if err != nil {
		log.Fatal("S3 connect error:", err)
	}
	if err := s3c.EnsureBucket(ctx, settings.AWSRegion); err != nil {
		log.Println("[CONFIG][WARN] ensure bucket:", err)
	}

	mg, err := mongo.NewConnection(ctx, settings.Mongo)
	if err != nil {
		log.Fatal("Mongo connect error:", err)
	}

	pg, err := postgres.NewConnection(ctx, settings.Postgres)
	if err != nil {
		log.Fatal("Postgres connect error:", err)
	}

	return &Config{
		Settings: settings,
		S3:       s3c,
		Mongo:    mg,
		Postgres: pg,
	}
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.Postgres == nil || c.Postgres.Pool == nil {
		errs = append(errs, errors.New("postgres not initialized"))
	} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
	}

	if c.Mongo == nil || c.Mongo.Client == nil {
		errs = append(errs, errors.New("mongo not initialized"))
	} else if err := c.Mongo.Client.Ping(ctx, nil); err != nil {
		errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
	}

	if c.S3 == nil || c.S3.Client == nil {
		errs = append(errs, errors.New("s3 not initialized"))
	} else if ok, err := c.S3.Client.BucketExists(ctx, c.S3.Bucket); err != nil {
		errs = append(errs, fmt.Errorf("s3 bucket check failed: %w", err))
	} else if !ok {
		errs = append(errs, fmt.Errorf("s3 bucket %q not found", c.S3.Bucket))
	}

	return errors.Join(errs...)
}

func (c *Config) Close(ctx context.Context) {
	c.Postgres.Close()
	if err := c.Mongo.Close(ctx); err != nil {
		log.Println("[CONFIG][WARN] mongo disconnect:", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v, err := strconv.Atoi(getenv(k, ""))
	if err != nil {
		return def
	}
	return v
}

func getbool(k string, def bool) bool {
	v, err := strconv.ParseBool(getenv(k, ""))
	if err != nil {
		return def
	}
	return v
}

func getlist(k string) []string {
	var out []string
	for _, v := range strings.Split(getenv(k, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getduration accepts Go durations ("20s") or whole seconds ("20").
func getduration(k string, def time.Duration) time.Duration {
	raw := getenv(k, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
