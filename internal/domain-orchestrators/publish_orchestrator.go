// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/gateways"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/repositories"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/services"
	domainservices "github.com/jenkins-infra/incrementals-publisher/internal/domain/services"
)

// Pipeline stages, used as span names and metric labels
const (
	StageValidateURL     = "validate_url"
	StageBuildMetadata   = "resolve_build_metadata"
	StageFolderMetadata  = "resolve_folder_metadata"
	StageVerifyCommit    = "verify_commit"
	StageFetchArchive    = "fetch_archive"
	StageFetchPerms      = "fetch_permissions"
	StageVerifyArchive   = "verify_archive"
	StageIdempotency     = "check_idempotency"
	StageUpload          = "upload"
	StageNotifySCM       = "notify_source_control"
	outcomePublished     = "published"
	invalidArchivePrefix = "Invalid archive retrieved from Jenkins, perhaps the plugin is not properly incrementalized?\n"
)

// Result bodies of the metadata and commit stages
const (
	MsgNoCommitHash = "Did not find a Git commit hash associated with this build. " +
		"Some plugins on %s may not yet have been updated with JENKINS-50777 REST API enhancements. Skipping deployment.\n"
	MsgNoOwnerRepo      = "Unable to retrieve both owner and repo from %s"
	MsgCommitNotFound   = "Could not find commit %s in %s/%s"
	MsgCommitUnverified = "Unable to look up commit %s in %s/%s: %s"
	MsgAlreadyDeployed  = "Already deployed, not attempting to redeploy: %s"
	MsgPublishInFlight  = "Another invocation is already publishing %s"
)

// PublishDependencies are the collaborators of the pipeline. Lock and Signatures are optional.
type PublishDependencies struct {
	Jenkins     gateways.JenkinsGateway
	GitHub      gateways.SourceControlGateway
	Fetcher     gateways.ArchiveFetcher
	Reader      gateways.ArchiveReader
	Permissions repositories.PermissionRepository
	Store       gateways.ArtifactStore
	Integrity   services.IntegrityService
	Lock        gateways.PublishLock
	Signatures  gateways.SignatureVerifier
	Metrics     interfaces.Metrics
	Logger      interfaces.Logger
	Tracer      trace.Tracer
}

// PublishConfig holds configuration for the orchestrator
type PublishConfig struct {
	// CIHost is the only host build URLs may point at
	CIHost string

	// BuildMetadataURL, FolderMetadataURL and ArchiveURL replace the derived URLs when set
	BuildMetadataURL  string
	FolderMetadataURL string
	ArchiveURL        string

	// StrictCommitHash turns a missing commit hash into a hard failure
	StrictCommitHash bool

	// Production withholds diagnostic detail from hard-failure bodies
	Production bool

	// LockTTL bounds how long an upload may hold the publish lock
	LockTTL time.Duration

	// TempDir is the parent of per-invocation directories (default os.TempDir)
	TempDir string
}

// PublishOrchestrator coordinates the complete publication workflow for one build
type PublishOrchestrator struct {
	deps    PublishDependencies
	release *domainservices.ReleaseService
	config  PublishConfig
}

// NewPublishOrchestrator creates a new publish orchestrator
func NewPublishOrchestrator(deps PublishDependencies, config PublishConfig) *PublishOrchestrator {
	if deps.Integrity == nil {
		deps.Integrity = domainservices.NewIntegrityService()
	}
	if deps.Metrics == nil {
		deps.Metrics = interfaces.NoOpMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = &interfaces.NoOpLogger{}
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 10 * time.Minute
	}

	return &PublishOrchestrator{
		deps:    deps,
		release: domainservices.NewReleaseService(),
		config:  config,
	}
}

// invocation carries the state resolved so far by one run of the pipeline
type invocation struct {
	id         string
	logger     interfaces.Logger
	build      entities.BuildReference
	metadata   entities.BuildMetadata
	folder     entities.FolderMetadata
	archiveURL string
	archive    *gateways.DownloadedArchive
	perms      entities.PermissionSet
	validation *domainservices.ReleaseValidation
}

// Publish runs the pipeline for a trigger and always yields exactly one result
func (o *PublishOrchestrator) Publish(ctx context.Context, trigger entities.Trigger) (result entities.PipelineResult) {
	ctx, span := o.deps.Tracer.Start(ctx, "publish", trace.WithAttributes(attribute.String("build_url", trigger.BuildURL)))
	defer span.End()

	inv := &invocation{id: uuid.NewString()}
	inv.logger = o.deps.Logger.With(interfaces.F("invocation", inv.id), interfaces.F("build_url", trigger.BuildURL))
	if sc := span.SpanContext(); sc.IsValid() {
		inv.logger = inv.logger.With(interfaces.F("trace_id", sc.TraceID().String()))
	}

	start := time.Now()
	outcome := outcomePublished
	defer func() {
		if r := recover(); r != nil {
			inv.logger.Error("pipeline panicked", interfaces.F("panic", fmt.Sprint(r)))
			result = o.unclassified(fmt.Sprint(r), string(debug.Stack()))
			outcome = entities.HardFailure.String()
		}

		span.SetAttributes(attribute.Int("status_code", result.StatusCode), attribute.String("outcome", outcome))
		o.deps.Metrics.ObserveResult(outcome, result.StatusCode)
		inv.logger.Info("pipeline finished",
			interfaces.F("status", result.StatusCode),
			interfaces.F("outcome", outcome),
			interfaces.F("duration", time.Since(start)))
	}()

	result, err := o.run(ctx, inv, trigger)
	if err == nil {
		return result
	}

	var classified *entities.Outcome
	if errors.As(err, &classified) {
		outcome = classified.Kind.String()
		if classified.Kind == entities.HardFailure {
			span.SetStatus(codes.Error, classified.Message)
			inv.logger.Warn("pipeline failed", interfaces.F("message", classified.Message), interfaces.Err(classified.Cause))
		} else {
			inv.logger.Info("pipeline skipped", interfaces.F("message", classified.Message))
		}
		return classified.Result()
	}

	outcome = entities.HardFailure.String()
	span.SetStatus(codes.Error, err.Error())
	inv.logger.Error("pipeline error", interfaces.Err(err))

	var panicked *panicError
	if errors.As(err, &panicked) {
		return o.unclassified(panicked.Error(), panicked.stack)
	}
	return o.unclassified(err.Error(), errorChain(err))
}

func (o *PublishOrchestrator) run(ctx context.Context, inv *invocation, trigger entities.Trigger) (entities.PipelineResult, error) {
	if err := o.stage(ctx, StageValidateURL, func(context.Context) error {
		return o.validateURL(inv, trigger)
	}); err != nil {
		return entities.PipelineResult{}, err
	}

	if err := o.stage(ctx, StageBuildMetadata, func(ctx context.Context) error {
		return o.resolveBuildMetadata(ctx, inv)
	}); err != nil {
		return entities.PipelineResult{}, err
	}

	if err := o.stage(ctx, StageFolderMetadata, func(ctx context.Context) error {
		return o.resolveFolderMetadata(ctx, inv)
	}); err != nil {
		return entities.PipelineResult{}, err
	}

	if err := o.stage(ctx, StageVerifyCommit, func(ctx context.Context) error {
		return o.verifyCommit(ctx, inv)
	}); err != nil {
		return entities.PipelineResult{}, err
	}

	dir, err := os.MkdirTemp(o.config.TempDir, "incrementals-")
	if err != nil {
		return entities.PipelineResult{}, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			inv.logger.Warn("failed to remove work directory", interfaces.F("dir", dir), interfaces.Err(err))
		}
	}()

	if err := o.fetch(ctx, inv, dir); err != nil {
		return entities.PipelineResult{}, err
	}

	if err := o.stage(ctx, StageVerifyArchive, func(context.Context) error {
		return o.verifyArchive(inv)
	}); err != nil {
		return entities.PipelineResult{}, err
	}

	if err := o.stage(ctx, StageIdempotency, func(ctx context.Context) error {
		return o.checkPublished(ctx, inv)
	}); err != nil {
		return entities.PipelineResult{}, err
	}

	var result entities.PipelineResult
	if err := o.stage(ctx, StageUpload, func(ctx context.Context) error {
		var err error
		result, err = o.upload(ctx, inv)
		return err
	}); err != nil {
		return entities.PipelineResult{}, err
	}

	_ = o.stage(ctx, StageNotifySCM, func(ctx context.Context) error {
		return o.notify(ctx, inv)
	})

	return result, nil
}

// stage runs fn in its own span and records its duration
func (o *PublishOrchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.deps.Tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.deps.Metrics.ObserveStage(name, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *PublishOrchestrator) validateURL(inv *invocation, trigger entities.Trigger) error {
	build, err := domainservices.ValidateBuildURL(trigger.BuildURL, o.config.CIHost)
	if err != nil {
		var violation *entities.Violation
		if errors.As(err, &violation) {
			return entities.Fail("%s", violation.Message).Wrap(violation)
		}
		return err
	}
	inv.build = build
	return nil
}

func (o *PublishOrchestrator) resolveBuildMetadata(ctx context.Context, inv *invocation) error {
	url := override(o.config.BuildMetadataURL, domainservices.BuildAPIURL(inv.build))
	doc, err := o.deps.Jenkins.FetchJSON(ctx, url)
	if err != nil {
		return entities.Fail("Unable to retrieve build metadata: %s", err).Wrap(err)
	}

	inv.metadata = domainservices.ProcessBuildMetadata(doc)
	if inv.metadata.CommitHash == "" {
		inv.logger.Warn("no revision action in build metadata", interfaces.F("url", url))
		if o.config.StrictCommitHash {
			return entities.Fail(MsgNoCommitHash, o.config.CIHost)
		}
		return entities.Skip(MsgNoCommitHash, o.config.CIHost)
	}

	inv.logger = inv.logger.With(interfaces.F("commit", inv.metadata.CommitHash))
	return nil
}

func (o *PublishOrchestrator) resolveFolderMetadata(ctx context.Context, inv *invocation) error {
	url := override(o.config.FolderMetadataURL, domainservices.FolderAPIURL(inv.build))
	doc, err := o.deps.Jenkins.FetchJSON(ctx, url)
	if err != nil {
		return entities.Fail("Unable to retrieve folder metadata: %s", err).Wrap(err)
	}

	inv.folder = domainservices.ProcessFolderMetadata(doc)
	if !inv.folder.Complete() {
		return entities.Fail(MsgNoOwnerRepo, url)
	}

	inv.logger = inv.logger.With(interfaces.F("repo", inv.folder.RepoPath()))
	return nil
}

func (o *PublishOrchestrator) verifyCommit(ctx context.Context, inv *invocation) error {
	owner, repo, sha := inv.folder.Owner, inv.folder.Repo, inv.metadata.CommitHash
	exists, err := o.deps.GitHub.CommitExists(ctx, owner, repo, sha)
	if err != nil {
		return entities.Fail(MsgCommitUnverified, sha, owner, repo, err).Wrap(err)
	}
	if !exists {
		return entities.Fail(MsgCommitNotFound, sha, owner, repo)
	}

	if o.deps.Signatures == nil {
		return nil
	}

	sig, err := o.deps.GitHub.CommitSignature(ctx, owner, repo, sha)
	if err != nil {
		return entities.Fail("Unable to retrieve the signature of commit %s: %s", sha, err).Wrap(err)
	}
	if sig.Signature == "" {
		return entities.Fail("Commit %s in %s/%s is not signed", sha, owner, repo)
	}
	signer, err := o.deps.Signatures.VerifyDetached(sig.Payload, sig.Signature)
	if err != nil {
		return entities.Fail("Commit %s in %s/%s is not signed by a trusted key", sha, owner, repo).Wrap(err)
	}

	inv.logger.Info("commit signature verified", interfaces.F("signer", signer))
	return nil
}

// fetch downloads the archive and the permission registry concurrently
func (o *PublishOrchestrator) fetch(ctx context.Context, inv *invocation, dir string) error {
	inv.archiveURL = override(o.config.ArchiveURL, domainservices.ArchiveURL(inv.build, inv.metadata))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(func() error {
		return o.stage(gctx, StageFetchPerms, func(ctx context.Context) error {
			perms, err := o.deps.Permissions.FetchPermissions(ctx)
			if err != nil {
				return entities.Fail("Unable to retrieve permissions: %s", err).Wrap(err)
			}
			inv.perms = perms
			return nil
		})
	}))
	g.Go(guard(func() error {
		return o.stage(gctx, StageFetchArchive, func(ctx context.Context) error {
			archive, err := o.deps.Fetcher.DownloadArchive(ctx, inv.archiveURL, dir)
			if err != nil {
				return entities.Fail("Unable to download archive from %s: %s", inv.archiveURL, err).Wrap(err)
			}
			inv.archive = archive
			return nil
		})
	}))

	return g.Wait()
}

func (o *PublishOrchestrator) verifyArchive(inv *invocation) error {
	entries, err := o.deps.Reader.Entries(inv.archive.Path)
	if err != nil {
		return o.invalidArchive(inv, err)
	}
	o.deps.Metrics.ObserveArchiveEntries(len(entries))

	expected := entities.Expectation{
		Owner:      inv.folder.Owner,
		Repo:       inv.folder.Repo,
		CommitHash: inv.metadata.CommitHash,
	}
	verification, err := o.deps.Integrity.Verify(inv.perms, entries, expected)
	if err != nil {
		return o.invalidArchive(inv, err)
	}

	inv.validation = o.release.ValidateRelease(verification, o.deps.Store.URL)
	if !inv.validation.IsReady() {
		if inv.validation.Status == domainservices.StatusNoArtifacts {
			return entities.Skip("%s", inv.validation.ErrorMessage(inv.archiveURL))
		}
		return entities.Fail("%s", inv.validation.ErrorMessage(inv.archiveURL))
	}

	inv.logger.Info("archive verified",
		interfaces.F("entries", inv.validation.EntryCount),
		interfaces.F("descriptor", inv.validation.DescriptorPath))
	return nil
}

func (o *PublishOrchestrator) invalidArchive(inv *invocation, err error) error {
	return entities.Fail("%s%s from %s", invalidArchivePrefix, err, inv.archiveURL).Wrap(err)
}

func (o *PublishOrchestrator) checkPublished(ctx context.Context, inv *invocation) error {
	exists, err := o.deps.Store.Exists(ctx, inv.validation.DescriptorPath)
	if err != nil {
		return entities.Fail("Unable to check %s for %s: %s", o.deps.Store.Name(), inv.validation.DescriptorURL, err).Wrap(err)
	}
	if exists {
		return entities.Skip(MsgAlreadyDeployed, inv.validation.DescriptorURL)
	}
	return nil
}

func (o *PublishOrchestrator) upload(ctx context.Context, inv *invocation) (entities.PipelineResult, error) {
	if o.deps.Lock != nil {
		release, err := o.acquire(ctx, inv)
		if err != nil {
			return entities.PipelineResult{}, err
		}
		defer release()
	}

	resp, err := o.deps.Store.Publish(ctx, inv.archive)
	if err != nil {
		return entities.PipelineResult{}, entities.Fail("Unable to publish to %s: %s", o.deps.Store.Name(), err).Wrap(err)
	}

	body := fmt.Sprintf("Response from %s: %s\n", o.deps.Store.Name(), resp.StatusText)
	result := entities.PipelineResult{StatusCode: resp.StatusCode, Body: body}
	if !result.Succeeded() {
		return entities.PipelineResult{}, &entities.Outcome{
			Kind:       entities.HardFailure,
			StatusCode: resp.StatusCode,
			Message:    body,
		}
	}

	inv.logger.Info("archive published", interfaces.F("status", resp.StatusCode), interfaces.F("url", inv.validation.DescriptorURL))
	return result, nil
}

// acquire takes the publish lock for the primary descriptor and re-probes the store,
// since a holder that just finished may have published it
func (o *PublishOrchestrator) acquire(ctx context.Context, inv *invocation) (func(), error) {
	resource := inv.validation.DescriptorPath
	ok, err := o.deps.Lock.Acquire(ctx, resource, inv.id, o.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire publish lock: %w", err)
	}
	if !ok {
		return nil, entities.FailWithStatus(http.StatusConflict, MsgPublishInFlight, resource)
	}

	release := func() {
		if err := o.deps.Lock.Release(context.WithoutCancel(ctx), resource, inv.id); err != nil {
			inv.logger.Warn("failed to release publish lock", interfaces.Err(err))
		}
	}

	if err := o.checkPublished(ctx, inv); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// notify is best effort; its failure is logged and never changes the result
func (o *PublishOrchestrator) notify(ctx context.Context, inv *invocation) error {
	err := o.deps.GitHub.CreateStatus(ctx, inv.folder.Owner, inv.folder.Repo, inv.metadata.CommitHash, inv.validation.StatusTargetURL)
	if err != nil {
		inv.logger.Warn("failed to create commit status", interfaces.Err(err))
		return err
	}
	return nil
}

// unclassified builds the catch-all hard failure; detail is only shown outside production
func (o *PublishOrchestrator) unclassified(message, detail string) entities.PipelineResult {
	body := message
	if !o.config.Production && detail != "" {
		body = message + "\n" + detail
	}
	return entities.PipelineResult{StatusCode: http.StatusBadRequest, Body: body}
}

// panicError carries a panic recovered on a worker goroutine back to the caller
type panicError struct {
	value interface{}
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprint(e.value)
}

// guard turns a panic in fn into a panicError
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{value: r, stack: string(debug.Stack())}
			}
		}()
		return fn()
	}
}

// errorChain renders every wrapped error on its own line
func errorChain(err error) string {
	var lines []string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("caused by: %s", e))
	}
	return strings.Join(lines, "\n")
}

func override(configured, derived string) string {
	if configured != "" {
		return configured
	}
	return derived
}
