package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jenkins-infra/incrementals-publisher/internal/config"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain-adapters/gateways"
	orchestrators "github.com/jenkins-infra/incrementals-publisher/internal/domain-orchestrators"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	gatewayifaces "github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/gateways"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/repositories"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/gpg"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/httpapi"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/logging"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/metrics"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/redislock"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/registry"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/s3"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/schema"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/telemetry"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/yaml"
)

// app is the fully wired publisher shared by every command
type app struct {
	cfg       config.Config
	logger    *logging.Logger
	validator *schema.Validator
	registry  *prometheus.Registry
	pipeline  *orchestrators.PublishOrchestrator
	checks    map[string]httpapi.ReadinessCheck
	closers   []func() error
	telemetry telemetry.Shutdown
}

// newApp builds every collaborator of the pipeline from cfg
func newApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	a := &app{
		cfg:       cfg,
		validator: schema.MustNewValidator(),
		registry:  prometheus.NewRegistry(),
		checks:    map[string]httpapi.ReadinessCheck{},
		logger: logging.New(logging.Options{
			Level:  logging.ParseLevel(cfg.LogLevel),
			Format: cfg.LogFormat,
			Out:    os.Stderr,
		}),
	}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := metrics.NewProm(a.registry)
	if err != nil {
		return nil, err
	}

	a.telemetry, err = telemetry.Init(ctx, telemetry.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	client := telemetry.NewHTTPClient(cfg.HTTPTimeout)
	auth := gateways.BasicAuth(cfg.JenkinsAuth)

	deps := orchestrators.PublishDependencies{
		Jenkins:     gateways.NewHTTPJenkinsGateway(client, auth, a.logger),
		GitHub:      gateways.NewHTTPGitHubGateway(client, cfg.GitHubAPIURL, cfg.GitHubToken, a.logger),
		Fetcher:     gateways.NewDownloader(client, auth, a.logger),
		Reader:      gateways.NewZipArchiveReader(),
		Permissions: a.permissions(client),
		Metrics:     prom,
		Logger:      a.logger,
		Tracer:      telemetry.Tracer(),
	}

	if deps.Store, err = a.store(ctx, client); err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		lock, err := redislock.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, lock.Close)
		a.checks["redis"] = lock.Ping
		deps.Lock = lock
	}

	if cfg.CommitKeyring != "" {
		verifier, err := gateways.NewGPGVerifier(ctx, gpg.NewVerifier(client), cfg.CommitKeyring)
		if err != nil {
			return nil, err
		}
		deps.Signatures = verifier
	}

	a.pipeline = orchestrators.NewPublishOrchestrator(deps, orchestrators.PublishConfig{
		CIHost:            cfg.JenkinsHost,
		BuildMetadataURL:  cfg.BuildMetadataURL,
		FolderMetadataURL: cfg.FolderMetadataURL,
		ArchiveURL:        cfg.ArchiveURL,
		StrictCommitHash:  cfg.StrictCommitHash,
		Production:        cfg.Production(),
		LockTTL:           cfg.LockTTL,
	})

	a.logger.Info("publisher configured",
		interfaces.F("environment", cfg.Environment),
		interfaces.F("ci_host", cfg.JenkinsHost),
		interfaces.F("store", deps.Store.Name()),
		interfaces.F("lock", deps.Lock != nil),
		interfaces.F("signatures", deps.Signatures != nil))
	return a, nil
}

func (a *app) permissions(client *http.Client) repositories.PermissionRepository {
	if a.cfg.PermissionsFile != "" {
		return yaml.NewPermissionRepository(a.cfg.PermissionsFile, a.validator)
	}
	return registry.NewHTTPPermissionRepository(client, a.cfg.PermissionsURL, a.validator, a.logger)
}

func (a *app) store(ctx context.Context, client *http.Client) (gatewayifaces.ArtifactStore, error) {
	switch a.cfg.StoreBackend {
	case config.BackendS3:
		opts := s3.Options{
			Endpoint:        a.cfg.S3.Endpoint,
			Region:          a.cfg.S3.Region,
			Bucket:          a.cfg.S3.Bucket,
			Prefix:          a.cfg.S3.Prefix,
			PublicURL:       a.cfg.S3.PublicURL,
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
			UsePathStyle:    a.cfg.S3.UsePathStyle,
		}
		api, err := s3.NewClient(ctx, opts, client)
		if err != nil {
			return nil, err
		}
		store, err := s3.NewStore(api, opts, a.logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendArtifactory:
		return gateways.NewArtifactoryGateway(client, a.cfg.IncrementalURL, a.cfg.ArtifactoryKey, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
	}
}

// close releases backing connections and flushes pending spans
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.telemetry != nil {
		if err := a.telemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
		}
		a.telemetry = nil
	}
	return errors.Join(errs...)
}
