// Package yaml provides YAML-based configuration parsing and a file-backed permission repository.
package yaml

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlConfig represents the raw YAML structure of a configuration file
type yamlConfig struct {
	Environment string   `yaml:"environment"`
	HTTPTimeout duration `yaml:"http_timeout"`

	Jenkins struct {
		Host string `yaml:"host"`
		Auth string `yaml:"auth"`
	} `yaml:"jenkins"`

	GitHub struct {
		APIURL string `yaml:"api_url"`
		Token  string `yaml:"token"`
	} `yaml:"github"`

	Artifactory struct {
		URL string `yaml:"url"`
		Key string `yaml:"key"`
	} `yaml:"artifactory"`

	Permissions struct {
		URL  string `yaml:"url"`
		File string `yaml:"file"`
	} `yaml:"permissions"`

	Overrides struct {
		BuildMetadataURL  string `yaml:"build_metadata_url"`
		FolderMetadataURL string `yaml:"folder_metadata_url"`
		ArchiveURL        string `yaml:"archive_url"`
	} `yaml:"overrides"`

	Publish struct {
		StrictCommitHash *bool    `yaml:"strict_commit_hash"`
		CommitKeyring    string   `yaml:"commit_keyring"`
		LockTTL          duration `yaml:"lock_ttl"`
	} `yaml:"publish"`

	Store struct {
		Backend string `yaml:"backend"`
		S3      struct {
			Endpoint        string `yaml:"endpoint"`
			Region          string `yaml:"region"`
			Bucket          string `yaml:"bucket"`
			Prefix          string `yaml:"prefix"`
			PublicURL       string `yaml:"public_url"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			UsePathStyle    *bool  `yaml:"use_path_style"`
		} `yaml:"s3"`
	} `yaml:"store"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Server struct {
		Addr      string `yaml:"addr"`
		RateLimit int    `yaml:"rate_limit"`
	} `yaml:"server"`

	Telemetry struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// duration accepts Go duration strings ("30s", "2m")
type duration struct {
	time.Duration
	set bool
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	d.set = true
	return nil
}

// ConfigParser parses YAML configuration files
type ConfigParser struct{}

// NewConfigParser creates a new YAML config parser
func NewConfigParser() *ConfigParser {
	return &ConfigParser{}
}

// ParseFile parses a YAML configuration file into environment-style key/value pairs
func (p *ConfigParser) ParseFile(filePath string) (map[string]string, error) {
	//nolint:gosec // G304: filePath is the operator-supplied --config flag
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into environment-style key/value pairs.
// Only keys present in the document are returned.
func (p *ConfigParser) Parse(data []byte) (map[string]string, error) {
	var c yamlConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	values := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			values[key] = value
		}
	}
	setBool := func(key string, value *bool) {
		if value != nil {
			values[key] = strconv.FormatBool(*value)
		}
	}
	setDuration := func(key string, value duration) {
		if value.set {
			values[key] = value.Duration.String()
		}
	}

	set("ENVIRONMENT", c.Environment)
	setDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	set("JENKINS_HOST", c.Jenkins.Host)
	set("JENKINS_AUTH", c.Jenkins.Auth)
	set("GITHUB_API_URL", c.GitHub.APIURL)
	set("GITHUB_TOKEN", c.GitHub.Token)
	set("INCREMENTAL_URL", c.Artifactory.URL)
	set("ARTIFACTORY_KEY", c.Artifactory.Key)
	set("PERMISSIONS_URL", c.Permissions.URL)
	set("PERMISSIONS_FILE", c.Permissions.File)
	set("BUILD_METADATA_URL", c.Overrides.BuildMetadataURL)
	set("FOLDER_METADATA_URL", c.Overrides.FolderMetadataURL)
	set("ARCHIVE_URL", c.Overrides.ArchiveURL)
	setBool("STRICT_COMMIT_HASH", c.Publish.StrictCommitHash)
	set("COMMIT_KEYRING", c.Publish.CommitKeyring)
	setDuration("LOCK_TTL", c.Publish.LockTTL)
	set("STORE_BACKEND", c.Store.Backend)
	set("S3_ENDPOINT", c.Store.S3.Endpoint)
	set("S3_REGION", c.Store.S3.Region)
	set("S3_BUCKET", c.Store.S3.Bucket)
	set("S3_PREFIX", c.Store.S3.Prefix)
	set("S3_PUBLIC_URL", c.Store.S3.PublicURL)
	set("S3_ACCESS_KEY_ID", c.Store.S3.AccessKeyID)
	set("S3_SECRET_ACCESS_KEY", c.Store.S3.SecretAccessKey)
	setBool("S3_USE_PATH_STYLE", c.Store.S3.UsePathStyle)
	set("REDIS_URL", c.Redis.URL)
	set("NATS_URL", c.NATS.URL)
	set("ADDR", c.Server.Addr)
	if c.Server.RateLimit > 0 {
		values["RATE_LIMIT"] = strconv.Itoa(c.Server.RateLimit)
	}
	set("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	set("LOG_LEVEL", c.Log.Level)
	set("LOG_FORMAT", c.Log.Format)

	return values, nil
}
