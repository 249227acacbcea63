package orchestrators

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/gateways"
)

const (
	testHost      = "https://ci.jenkins.io/"
	testBuildURL  = "https://ci.jenkins.io/job/Plugins/job/gitlab-branch-source-plugin/view/change-requests/job/PR-7/4/"
	testHash      = "b56548afdc8b4b1c9d1e2f3a4b5c6d7e8f9a0b1c"
	testPom       = "io/jenkins/plugins/gitlab-branch-source/0.0.4-rc287.b56548afdc8b/gitlab-branch-source-0.0.4-rc287.b56548afdc8b.pom"
	testHpi       = "io/jenkins/plugins/gitlab-branch-source/0.0.4-rc287.b56548afdc8b/gitlab-branch-source-0.0.4-rc287.b56548afdc8b.hpi"
	testArchive   = testBuildURL + "artifact/**/*-rc*.b56548afdc8b/*-rc*.b56548afdc8b*/*zip*/archive.zip"
	testStoreBase = "https://repo.jenkins-ci.org/incrementals/"
)

// Mock implementations for testing
type mockJenkins struct {
	docs map[string]map[string]interface{}
	err  error
}

func (m *mockJenkins) FetchJSON(_ context.Context, url string) (map[string]interface{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	doc, ok := m.docs[url]
	if !ok {
		return nil, errors.New("failed to fetch " + url + ": HTTP 404")
	}
	return doc, nil
}

type mockGitHub struct {
	exists    bool
	existsErr error
	signature *gateways.CommitSignature
	sigErr    error
	statusErr error

	mu            sync.Mutex
	statusTargets []string
}

func (m *mockGitHub) CommitExists(_ context.Context, _, _, _ string) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockGitHub) CommitSignature(_ context.Context, _, _, _ string) (*gateways.CommitSignature, error) {
	if m.sigErr != nil {
		return nil, m.sigErr
	}
	if m.signature == nil {
		return &gateways.CommitSignature{}, nil
	}
	return m.signature, nil
}

func (m *mockGitHub) CreateStatus(_ context.Context, _, _, _, targetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusTargets = append(m.statusTargets, targetURL)
	return m.statusErr
}

type mockFetcher struct {
	err  error
	gate func(ctx context.Context) error

	mu   sync.Mutex
	urls []string
	dirs []string
}

func (m *mockFetcher) DownloadArchive(ctx context.Context, url, dir string) (*gateways.DownloadedArchive, error) {
	m.mu.Lock()
	m.urls = append(m.urls, url)
	m.dirs = append(m.dirs, dir)
	m.mu.Unlock()

	if m.gate != nil {
		if err := m.gate(ctx); err != nil {
			return nil, err
		}
	}

	if m.err != nil {
		return nil, m.err
	}
	path := filepath.Join(dir, "archive.zip")
	if err := os.WriteFile(path, []byte("PK"), 0o600); err != nil {
		return nil, err
	}
	return &gateways.DownloadedArchive{Path: path, Size: 2}, nil
}

type mockReader struct {
	entries []entities.ArchiveEntry
	err     error
	panics  bool
}

func (m *mockReader) Entries(_ string) ([]entities.ArchiveEntry, error) {
	if m.panics {
		panic("corrupt central directory")
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

type mockPermissions struct {
	perms entities.PermissionSet
	err   error
	gate  func(ctx context.Context) error
}

func (m *mockPermissions) FetchPermissions(ctx context.Context) (entities.PermissionSet, error) {
	if m.gate != nil {
		if err := m.gate(ctx); err != nil {
			return nil, err
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.perms, nil
}

type mockStore struct {
	exists     bool
	existsErr  error
	resp       *gateways.PublishResponse
	publishErr error

	probes    []string
	published int
}

func (m *mockStore) Name() string { return "Artifactory" }

func (m *mockStore) URL(path string) string { return testStoreBase + path }

func (m *mockStore) Exists(_ context.Context, path string) (bool, error) {
	m.probes = append(m.probes, path)
	return m.exists, m.existsErr
}

func (m *mockStore) Publish(_ context.Context, _ *gateways.DownloadedArchive) (*gateways.PublishResponse, error) {
	m.published++
	if m.publishErr != nil {
		return nil, m.publishErr
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &gateways.PublishResponse{StatusCode: http.StatusOK, StatusText: "Success"}, nil
}

type mockLock struct {
	held       bool
	acquireErr error

	acquired []string
	released []string
}

func (m *mockLock) Acquire(_ context.Context, resource, owner string, _ time.Duration) (bool, error) {
	if m.acquireErr != nil {
		return false, m.acquireErr
	}
	if m.held {
		return false, nil
	}
	m.acquired = append(m.acquired, resource+"@"+owner)
	return true, nil
}

func (m *mockLock) Release(_ context.Context, resource, owner string) error {
	m.released = append(m.released, resource+"@"+owner)
	return nil
}

type mockSignatures struct {
	err error
}

func (m *mockSignatures) VerifyDetached(_, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "Jenkins Developer", nil
}

type recordingMetrics struct {
	mu      sync.Mutex
	results []string
	stages  map[string]int
	entries []int
}

func (m *recordingMetrics) ObserveResult(outcome string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, outcome+":"+http.StatusText(status))
}

func (m *recordingMetrics) ObserveStage(stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stages == nil {
		m.stages = make(map[string]int)
	}
	m.stages[stage]++
}

func (m *recordingMetrics) ObserveArchiveEntries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, n)
}

func buildDoc(hash string) map[string]interface{} {
	return map[string]interface{}{
		"actions": []interface{}{
			map[string]interface{}{"_class": "hudson.model.CauseAction"},
			map[string]interface{}{
				"_class":   "jenkins.scm.api.SCMRevisionAction",
				"revision": map[string]interface{}{"hash": hash},
			},
		},
	}
}

func folderDoc(owner, repo string) map[string]interface{} {
	return map[string]interface{}{
		"sources": []interface{}{
			map[string]interface{}{
				"source": map[string]interface{}{"repoOwner": owner, "repository": repo},
			},
		},
	}
}

func goodEntries() []entities.ArchiveEntry {
	return []entities.ArchiveEntry{
		{Path: testHpi},
		{Path: testPom, Descriptor: &entities.Descriptor{
			GroupID:    "io.jenkins.plugins",
			ArtifactID: "gitlab-branch-source",
			Version:    "0.0.4-rc287.b56548afdc8b",
			HasScm:     true,
			ScmURL:     "https://github.com/jenkinsci/gitlab-branch-source-plugin",
			ScmTag:     testHash,
		}},
	}
}

type fixture struct {
	jenkins     *mockJenkins
	github      *mockGitHub
	fetcher     *mockFetcher
	reader      *mockReader
	permissions *mockPermissions
	store       *mockStore
	metrics     *recordingMetrics
	lock        *mockLock
	signatures  *mockSignatures
	config      PublishConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		jenkins: &mockJenkins{docs: map[string]map[string]interface{}{
			testBuildURL + "api/json?tree=actions[revision[hash,pullHash]]":               buildDoc(testHash),
			testBuildURL + "../../../api/json?tree=sources[source[repoOwner,repository]]": folderDoc("jenkinsci", "gitlab-branch-source-plugin"),
		}},
		github:  &mockGitHub{exists: true},
		fetcher: &mockFetcher{},
		reader:  &mockReader{entries: goodEntries()},
		permissions: &mockPermissions{perms: entities.PermissionSet{
			"jenkinsci/gitlab-branch-source-plugin": {"io/jenkins/plugins/gitlab-branch-source"},
		}},
		store:   &mockStore{},
		metrics: &recordingMetrics{},
		config:  PublishConfig{CIHost: testHost, TempDir: t.TempDir()},
	}
}

func (f *fixture) orchestrator() *PublishOrchestrator {
	deps := PublishDependencies{
		Jenkins:     f.jenkins,
		GitHub:      f.github,
		Fetcher:     f.fetcher,
		Reader:      f.reader,
		Permissions: f.permissions,
		Store:       f.store,
		Metrics:     f.metrics,
	}
	if f.lock != nil {
		deps.Lock = f.lock
	}
	if f.signatures != nil {
		deps.Signatures = f.signatures
	}
	return NewPublishOrchestrator(deps, f.config)
}

func (f *fixture) publish(buildURL string) entities.PipelineResult {
	return f.orchestrator().Publish(context.Background(), entities.Trigger{BuildURL: buildURL})
}

func assertResult(t *testing.T, got entities.PipelineResult, status int, body string) {
	t.Helper()
	if got.StatusCode != status {
		t.Errorf("StatusCode = %d, want %d (body %q)", got.StatusCode, status, got.Body)
	}
	if got.Body != body {
		t.Errorf("Body = %q, want %q", got.Body, body)
	}
}

func TestPublishOrchestrator_Success(t *testing.T) {
	f := newFixture(t)

	result := f.publish(testBuildURL)

	assertResult(t, result, http.StatusOK, "Response from Artifactory: Success\n")
	if f.store.published != 1 {
		t.Errorf("published %d times, want 1", f.store.published)
	}
	if len(f.store.probes) != 1 || f.store.probes[0] != testPom {
		t.Errorf("probes = %v, want [%s]", f.store.probes, testPom)
	}
	if len(f.fetcher.urls) != 1 || f.fetcher.urls[0] != testArchive {
		t.Errorf("archive urls = %v, want [%s]", f.fetcher.urls, testArchive)
	}
	wantTarget := testStoreBase + "io/jenkins/plugins/gitlab-branch-source/0.0.4-rc287.b56548afdc8b/"
	if len(f.github.statusTargets) != 1 || f.github.statusTargets[0] != wantTarget {
		t.Errorf("status targets = %v, want [%s]", f.github.statusTargets, wantTarget)
	}
	if got := f.metrics.results; len(got) != 1 || got[0] != "published:OK" {
		t.Errorf("metrics results = %v", got)
	}
	if f.metrics.stages[StageUpload] != 1 || f.metrics.stages[StageFetchPerms] != 1 {
		t.Errorf("stages = %v", f.metrics.stages)
	}
	if len(f.metrics.entries) != 1 || f.metrics.entries[0] != 2 {
		t.Errorf("archive entries = %v", f.metrics.entries)
	}
}

func TestPublishOrchestrator_RemovesWorkDirectory(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fixture)
	}{
		{"success", func(*fixture) {}},
		{"invalid archive", func(f *fixture) { f.reader.err = errors.New("zip: not a valid zip file") }},
		{"panic", func(f *fixture) { f.reader.panics = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)

			f.publish(testBuildURL)

			if len(f.fetcher.dirs) != 1 {
				t.Fatalf("expected one download, got %d", len(f.fetcher.dirs))
			}
			if _, err := os.Stat(f.fetcher.dirs[0]); !os.IsNotExist(err) {
				t.Errorf("work directory %s still exists (err=%v)", f.fetcher.dirs[0], err)
			}
		})
	}
}

func TestPublishOrchestrator_URLValidation(t *testing.T) {
	tests := []struct {
		name     string
		buildURL string
		wantBody string
	}{
		{"missing", "", "The incrementals-publisher invocation was missing the build_url attribute"},
		{"other host", "https://example.com/foo/bar", "This build_url is not supported"},
		{"junk path", "https://ci.jenkins.io/junk/", "This build_url is malformed"},
		{"traversal", "https://ci.jenkins.io/job/../123/", "This build_url is malformed"},
		{"no build number", "https://ci.jenkins.io/job/ok/", "This build_url is malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			result := f.publish(tt.buildURL)

			assertResult(t, result, http.StatusBadRequest, tt.wantBody)
			if len(f.fetcher.urls) != 0 || f.store.published != 0 {
				t.Error("pipeline continued past URL validation")
			}
		})
	}
}

func TestPublishOrchestrator_MissingCommitHash(t *testing.T) {
	noHash := map[string]interface{}{"actions": []interface{}{
		map[string]interface{}{"_class": "hudson.model.CauseAction"},
	}}
	wantBody := "Did not find a Git commit hash associated with this build. Some plugins on https://ci.jenkins.io/ " +
		"may not yet have been updated with JENKINS-50777 REST API enhancements. Skipping deployment.\n"

	t.Run("lenient", func(t *testing.T) {
		f := newFixture(t)
		f.jenkins.docs[testBuildURL+"api/json?tree=actions[revision[hash,pullHash]]"] = noHash

		assertResult(t, f.publish(testBuildURL), http.StatusOK, wantBody)
		if got := f.metrics.results; len(got) != 1 || got[0] != "soft_outcome:OK" {
			t.Errorf("metrics results = %v", got)
		}
	})

	t.Run("strict", func(t *testing.T) {
		f := newFixture(t)
		f.config.StrictCommitHash = true
		f.jenkins.docs[testBuildURL+"api/json?tree=actions[revision[hash,pullHash]]"] = noHash

		assertResult(t, f.publish(testBuildURL), http.StatusBadRequest, wantBody)
	})
}

func TestPublishOrchestrator_MissingOwnerRepo(t *testing.T) {
	f := newFixture(t)
	folderURL := testBuildURL + "../../../api/json?tree=sources[source[repoOwner,repository]]"
	f.jenkins.docs[folderURL] = map[string]interface{}{}

	assertResult(t, f.publish(testBuildURL), http.StatusBadRequest, "Unable to retrieve both owner and repo from "+folderURL)
}

func TestPublishOrchestrator_MetadataFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.jenkins.err = errors.New("failed to fetch metadata: HTTP 503")

	result := f.publish(testBuildURL)

	if result.StatusCode != http.StatusBadRequest || !strings.Contains(result.Body, "HTTP 503") {
		t.Errorf("result = %+v", result)
	}
}

func TestPublishOrchestrator_CommitNotFound(t *testing.T) {
	f := newFixture(t)
	f.github.exists = false

	result := f.publish(testBuildURL)

	assertResult(t, result, http.StatusBadRequest, "Could not find commit "+testHash+" in jenkinsci/gitlab-branch-source-plugin")
	if len(f.fetcher.urls) != 0 {
		t.Error("archive was downloaded for a missing commit")
	}
}

func TestPublishOrchestrator_CommitLookupRateLimited(t *testing.T) {
	f := newFixture(t)
	f.github.exists = false
	f.github.existsErr = &gateways.RateLimitError{ResetAt: time.Unix(1700000000, 0)}

	result := f.publish(testBuildURL)

	assertResult(t, result, http.StatusBadRequest, "Unable to look up commit "+testHash+
		" in jenkinsci/gitlab-branch-source-plugin: GitHub API rate limit exceeded (0 remaining), resets at 2023-11-14T22:13:20Z")
	if len(f.fetcher.urls) != 0 {
		t.Error("archive was downloaded for an unverified commit")
	}
}

func TestPublishOrchestrator_InvalidArchive(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*fixture)
		wantDetail string
	}{
		{
			name: "wrong tag",
			mutate: func(f *fixture) {
				f.reader.entries[1].Descriptor.ScmTag = "deadbeef"
			},
			wantDetail: "Wrong tag in <scm> of " + testPom + ": deadbeef (expected " + testHash + ")",
		},
		{
			name: "forbidden path",
			mutate: func(f *fixture) {
				f.reader.entries = append(f.reader.entries, entities.ArchiveEntry{Path: "org/jenkins-ci/main/jenkins-core/1/jenkins-core-1.jar"})
			},
			wantDetail: "No permissions for org/jenkins-ci/main/jenkins-core/1/jenkins-core-1.jar",
		},
		{
			name: "no applicable permissions",
			mutate: func(f *fixture) {
				f.permissions.perms = entities.PermissionSet{"jenkinsci/other-plugin": {"io/jenkins/plugins/other"}}
			},
			wantDetail: "No applicable permissions for jenkinsci/gitlab-branch-source-plugin",
		},
		{
			name: "unreadable archive",
			mutate: func(f *fixture) {
				f.reader.err = errors.New("zip: not a valid zip file")
			},
			wantDetail: "zip: not a valid zip file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)

			result := f.publish(testBuildURL)

			want := "Invalid archive retrieved from Jenkins, perhaps the plugin is not properly incrementalized?\n" +
				tt.wantDetail + " from " + testArchive
			assertResult(t, result, http.StatusBadRequest, want)
			if f.store.published != 0 {
				t.Error("invalid archive was published")
			}
		})
	}
}

func TestPublishOrchestrator_EmptyArchive(t *testing.T) {
	f := newFixture(t)
	f.reader.entries = nil

	result := f.publish(testBuildURL)

	want := "Skipping deployment as no artifacts were found with the expected path, " +
		"typically due to a PR merge build not up to date with its base branch: " + testArchive
	assertResult(t, result, http.StatusOK, want)
	if f.store.published != 0 || len(f.store.probes) != 0 {
		t.Error("store was touched for an empty archive")
	}
}

func TestPublishOrchestrator_NoDescriptor(t *testing.T) {
	f := newFixture(t)
	f.reader.entries = f.reader.entries[:1]

	result := f.publish(testBuildURL)

	assertResult(t, result, http.StatusBadRequest, "No POM found in 1 archive entries from "+testArchive)
	if f.store.published != 0 {
		t.Error("archive without descriptor was published")
	}
}

func TestPublishOrchestrator_AlreadyDeployed(t *testing.T) {
	f := newFixture(t)
	f.store.exists = true

	result := f.publish(testBuildURL)

	assertResult(t, result, http.StatusOK, "Already deployed, not attempting to redeploy: "+testStoreBase+testPom)
	if f.store.published != 0 {
		t.Error("already deployed archive was published again")
	}
	if len(f.github.statusTargets) != 0 {
		t.Error("status posted for an already deployed archive")
	}
}

func TestPublishOrchestrator_FetchFailures(t *testing.T) {
	t.Run("permissions", func(t *testing.T) {
		f := newFixture(t)
		f.permissions.err = errors.New("failed to fetch permissions: HTTP 500")

		result := f.publish(testBuildURL)

		assertResult(t, result, http.StatusBadRequest, "Unable to retrieve permissions: failed to fetch permissions: HTTP 500")
	})

	t.Run("archive", func(t *testing.T) {
		f := newFixture(t)
		f.fetcher.err = errors.New("HTTP 404")

		result := f.publish(testBuildURL)

		assertResult(t, result, http.StatusBadRequest, "Unable to download archive from "+testArchive+": HTTP 404")
	})
}

// barrier releases its callers only once n of them are waiting at the same time
func barrier(n int, timeout time.Duration) func(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(n)
	all := make(chan struct{})
	go func() {
		wg.Wait()
		close(all)
	}()
	return func(ctx context.Context) error {
		wg.Done()
		select {
		case <-all:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(timeout):
			return errors.New("fetch ran alone")
		}
	}
}

func TestPublishOrchestrator_FetchesConcurrently(t *testing.T) {
	f := newFixture(t)
	meet := barrier(2, 2*time.Second)
	f.permissions.gate = meet
	f.fetcher.gate = meet

	result := f.publish(testBuildURL)

	assertResult(t, result, http.StatusOK, "Response from Artifactory: Success\n")
}

func TestPublishOrchestrator_PermissionFailureCancelsDownload(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	cancelled := make(chan bool, 1)
	f.fetcher.gate = func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			cancelled <- true
			return ctx.Err()
		case <-time.After(2 * time.Second):
			cancelled <- false
			return nil
		}
	}
	f.permissions.gate = func(context.Context) error {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
		}
		return errors.New("registry unavailable")
	}

	result := f.publish(testBuildURL)

	assertResult(t, result, http.StatusBadRequest, "Unable to retrieve permissions: registry unavailable")
	select {
	case ok := <-cancelled:
		if !ok {
			t.Error("download was not cancelled after the permission fetch failed")
		}
	default:
		t.Error("download never started")
	}
	if f.store.published != 0 {
		t.Errorf("published %d times, want 0", f.store.published)
	}
}

func TestPublishOrchestrator_StoreRejects(t *testing.T) {
	f := newFixture(t)
	f.store.resp = &gateways.PublishResponse{StatusCode: http.StatusForbidden, StatusText: "Forbidden"}

	result := f.publish(testBuildURL)

	assertResult(t, result, http.StatusForbidden, "Response from Artifactory: Forbidden\n")
	if len(f.github.statusTargets) != 0 {
		t.Error("status posted after a rejected upload")
	}
}

func TestPublishOrchestrator_StatusFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.github.statusErr = errors.New("HTTP 502")

	assertResult(t, f.publish(testBuildURL), http.StatusOK, "Response from Artifactory: Success\n")
}

func TestPublishOrchestrator_Overrides(t *testing.T) {
	f := newFixture(t)
	f.config.BuildMetadataURL = "http://localhost/build.json"
	f.config.FolderMetadataURL = "http://localhost/folder.json"
	f.config.ArchiveURL = "http://localhost/archive.zip"
	f.jenkins.docs = map[string]map[string]interface{}{
		"http://localhost/build.json":  buildDoc(testHash),
		"http://localhost/folder.json": folderDoc("jenkinsci", "gitlab-branch-source-plugin"),
	}

	assertResult(t, f.publish(testBuildURL), http.StatusOK, "Response from Artifactory: Success\n")
	if f.fetcher.urls[0] != "http://localhost/archive.zip" {
		t.Errorf("archive url = %s", f.fetcher.urls[0])
	}
}

func TestPublishOrchestrator_Lock(t *testing.T) {
	t.Run("acquired and released", func(t *testing.T) {
		f := newFixture(t)
		f.lock = &mockLock{}

		assertResult(t, f.publish(testBuildURL), http.StatusOK, "Response from Artifactory: Success\n")
		if len(f.lock.acquired) != 1 || len(f.lock.released) != 1 || f.lock.acquired[0] != f.lock.released[0] {
			t.Errorf("acquired %v released %v", f.lock.acquired, f.lock.released)
		}
		if !strings.HasPrefix(f.lock.acquired[0], testPom+"@") {
			t.Errorf("lock resource = %s", f.lock.acquired[0])
		}
		if len(f.store.probes) != 2 {
			t.Errorf("expected store to be re-probed under the lock, got %d probes", len(f.store.probes))
		}
	})

	t.Run("held elsewhere", func(t *testing.T) {
		f := newFixture(t)
		f.lock = &mockLock{held: true}

		assertResult(t, f.publish(testBuildURL), http.StatusConflict, "Another invocation is already publishing "+testPom)
		if f.store.published != 0 {
			t.Error("published without holding the lock")
		}
	})

	t.Run("backend failure", func(t *testing.T) {
		f := newFixture(t)
		f.lock = &mockLock{acquireErr: errors.New("connection refused")}

		result := f.publish(testBuildURL)

		assertResult(t, result, http.StatusBadRequest,
			"failed to acquire publish lock: connection refused\ncaused by: connection refused")
	})

	t.Run("backend failure in production", func(t *testing.T) {
		f := newFixture(t)
		f.config.Production = true
		f.lock = &mockLock{acquireErr: errors.New("connection refused")}

		assertResult(t, f.publish(testBuildURL), http.StatusBadRequest, "failed to acquire publish lock: connection refused")
	})
}

func TestPublishOrchestrator_Signatures(t *testing.T) {
	signed := &gateways.CommitSignature{Signature: "-----BEGIN PGP SIGNATURE-----", Payload: "tree abc"}

	tests := []struct {
		name       string
		signature  *gateways.CommitSignature
		verifyErr  error
		wantStatus int
		wantBody   string
	}{
		{"trusted", signed, nil, http.StatusOK, "Response from Artifactory: Success\n"},
		{"unsigned", nil, nil, http.StatusBadRequest, "Commit " + testHash + " in jenkinsci/gitlab-branch-source-plugin is not signed"},
		{"untrusted", signed, errors.New("unknown key"), http.StatusBadRequest,
			"Commit " + testHash + " in jenkinsci/gitlab-branch-source-plugin is not signed by a trusted key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.github.signature = tt.signature
			f.signatures = &mockSignatures{err: tt.verifyErr}

			assertResult(t, f.publish(testBuildURL), tt.wantStatus, tt.wantBody)
		})
	}
}

func TestPublishOrchestrator_Panic(t *testing.T) {
	t.Run("development shows stack", func(t *testing.T) {
		f := newFixture(t)
		f.reader.panics = true

		result := f.publish(testBuildURL)

		if result.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d", result.StatusCode)
		}
		if !strings.HasPrefix(result.Body, "corrupt central directory\n") || !strings.Contains(result.Body, "goroutine") {
			t.Errorf("Body = %q, want panic message and stack", result.Body)
		}
	})

	t.Run("production hides stack", func(t *testing.T) {
		f := newFixture(t)
		f.config.Production = true
		f.reader.panics = true

		assertResult(t, f.publish(testBuildURL), http.StatusBadRequest, "corrupt central directory")
	})
}
