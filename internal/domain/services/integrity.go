package services

import (
	"regexp"
	"strings"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

// ResolvePrefixes selects the allowed path prefixes for the expected repository
func ResolvePrefixes(permissions entities.PermissionSet, expected entities.Expectation) ([]string, error) {
	prefixes, ok := permissions.Prefixes(expected.RepoPath())
	if !ok {
		return nil, entities.NewViolation(entities.NoApplicablePermissions,
			"No applicable permissions for %s", expected.RepoPath())
	}
	return prefixes, nil
}

// VerifyArchive folds over every entry and fails on the first violation.
// No partial result is returned on failure.
func VerifyArchive(entries []entities.ArchiveEntry, prefixes []string, expected entities.Expectation) (*entities.Verification, error) {
	scmURL := scmURLPattern(expected.Owner, expected.Repo)

	result := &entities.Verification{}
	for _, entry := range entries {
		if !safeEntryPath(entry.Path) || !hasAnyPrefix(entry.Path, prefixes) {
			return nil, entities.NewViolation(entities.ForbiddenPath, "No permissions for %s", entry.Path)
		}
		result.Paths = append(result.Paths, entry.Path)

		if !entry.IsDescriptor() {
			continue
		}
		if err := verifyDescriptor(entry, scmURL, expected); err != nil {
			return nil, err
		}
		result.Descriptors = append(result.Descriptors, entry)
	}

	return result, nil
}

func verifyDescriptor(entry entities.ArchiveEntry, scmURL *regexp.Regexp, expected entities.Expectation) error {
	if entry.DescriptorErr != nil || entry.Descriptor == nil {
		reason := "no content"
		if entry.DescriptorErr != nil {
			reason = entry.DescriptorErr.Error()
		}
		return entities.NewViolation(entities.MalformedDescriptor, "Unable to parse %s: %s", entry.Path, reason)
	}

	d := entry.Descriptor
	if !d.HasScm {
		return entities.NewViolation(entities.MissingScmSection, "Missing <scm> section in %s", entry.Path)
	}
	if d.ScmURL == "" {
		return entities.NewViolation(entities.WrongScmURL, "Missing <url> section in <scm> of %s", entry.Path)
	}
	if !scmURL.MatchString(d.ScmURL) {
		return entities.NewViolation(entities.WrongScmURL,
			"Wrong URL in <scm> of %s: %s (expected github.com/%s)", entry.Path, d.ScmURL, expected.RepoPath())
	}
	if d.ScmTag != expected.CommitHash {
		return entities.NewViolation(entities.WrongScmTag,
			"Wrong tag in <scm> of %s: %s (expected %s)", entry.Path, d.ScmTag, expected.CommitHash)
	}
	if want := d.ExpectedPath(); want != entry.Path {
		return entities.NewViolation(entities.WrongCoordinates,
			"Wrong GAV for %s: %s resolves to %s", entry.Path, d.GAV(), want)
	}
	return nil
}

func scmURLPattern(owner, repo string) *regexp.Regexp {
	return regexp.MustCompile(`^https?://github\.com/` + regexp.QuoteMeta(owner) + `/` +
		regexp.QuoteMeta(repo) + `(\.git)?(/.*)?$`)
}

// safeEntryPath rejects names that would resolve outside their literal prefix once exploded
func safeEntryPath(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return false
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}
	return true
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
