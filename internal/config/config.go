// Package config loads the runtime configuration of the publisher.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/yaml"
)

// Store backends
const (
	BackendArtifactory = "artifactory"
	BackendS3          = "s3"
)

// Config holds runtime configuration for every surface of the publisher
type Config struct {
	Environment string        `env:"ENVIRONMENT,default=development"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT,default=0s"`

	JenkinsHost string `env:"JENKINS_HOST,default=https://ci.jenkins.io/"`
	JenkinsAuth string `env:"JENKINS_AUTH"`

	GitHubAPIURL string `env:"GITHUB_API_URL,default=https://api.github.com"`
	GitHubToken  string `env:"GITHUB_TOKEN"`

	IncrementalURL string `env:"INCREMENTAL_URL,default=https://repo.jenkins-ci.org/incrementals/"`
	ArtifactoryKey string `env:"ARTIFACTORY_KEY"`

	PermissionsURL  string `env:"PERMISSIONS_URL,default=https://ci.jenkins.io/job/Infra/job/repository-permissions-updater/job/master/lastSuccessfulBuild/artifact/json/github-index.json"`
	PermissionsFile string `env:"PERMISSIONS_FILE"`

	BuildMetadataURL  string `env:"BUILD_METADATA_URL"`
	FolderMetadataURL string `env:"FOLDER_METADATA_URL"`
	ArchiveURL        string `env:"ARCHIVE_URL"`

	StrictCommitHash bool          `env:"STRICT_COMMIT_HASH,default=false"`
	CommitKeyring    string        `env:"COMMIT_KEYRING"`
	LockTTL          time.Duration `env:"LOCK_TTL,default=10m"`

	StoreBackend string `env:"STORE_BACKEND,default=artifactory"`
	S3           S3Config

	RedisURL string `env:"REDIS_URL"`
	NATSURL  string `env:"NATS_URL"`

	Addr      string `env:"ADDR,default=:8080"`
	RateLimit int    `env:"RATE_LIMIT,default=60"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// S3Config configures the S3 artifact store backend
type S3Config struct {
	Endpoint        string `env:"S3_ENDPOINT"`
	Region          string `env:"S3_REGION,default=us-east-1"`
	Bucket          string `env:"S3_BUCKET"`
	Prefix          string `env:"S3_PREFIX"`
	PublicURL       string `env:"S3_PUBLIC_URL"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE,default=false"`
}

// Load returns a Config populated from environment variables, falling back to the
// YAML file at path when one is given
func Load(ctx context.Context, path string) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper(), path)
}

// LoadWith is Load with an explicit primary lookuper
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper, path string) (Config, error) {
	if path != "" {
		values, err := yaml.NewConfigParser().ParseFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to load config file: %w", err)
		}
		lookuper = envconfig.MultiLookuper(lookuper, envconfig.MapLookuper(values))
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendArtifactory:
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORE_BACKEND=%s", BackendS3)
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT must not be negative")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative")
	}
	return nil
}

// Production reports whether diagnostic detail must be withheld from result bodies
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}
