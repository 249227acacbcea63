package services

import (
	"fmt"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

const (
	buildAPISuffix  = "api/json?tree=actions[revision[hash,pullHash]]"
	folderAPISuffix = "../../../api/json?tree=sources[source[repoOwner,repository]]"
)

// revisionActionClasses are the action types that carry the built revision
var revisionActionClasses = map[string]bool{
	"jenkins.scm.api.SCMRevisionAction": true,
}

// BuildAPIURL returns the metadata query for the build's revision actions
func BuildAPIURL(build entities.BuildReference) string {
	return build.URL + buildAPISuffix
}

// FolderAPIURL returns the metadata query for the source configuration of the
// folder containing the build's job. The dot segments are resolved by the CI host.
func FolderAPIURL(build entities.BuildReference) string {
	return build.URL + folderAPISuffix
}

// ArchiveURL returns the artifact-archive URL of the incremental artifacts built for hash
func ArchiveURL(build entities.BuildReference, metadata entities.BuildMetadata) string {
	short := metadata.ShortHash()
	return fmt.Sprintf("%sartifact/**/*-rc*.%s/*-rc*.%s*/*zip*/archive.zip", build.URL, short, short)
}

// ProcessBuildMetadata extracts the commit hash from a build metadata document.
// The first recognized revision action wins, even when it carries no hash.
func ProcessBuildMetadata(doc map[string]interface{}) entities.BuildMetadata {
	actions, ok := doc["actions"].([]interface{})
	if !ok {
		return entities.BuildMetadata{}
	}

	for _, raw := range actions {
		action, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		class, _ := action["_class"].(string)
		if !revisionActionClasses[class] {
			continue
		}

		revision, _ := action["revision"].(map[string]interface{})
		if hash := stringField(revision, "hash"); hash != "" {
			return entities.BuildMetadata{CommitHash: hash}
		}
		return entities.BuildMetadata{CommitHash: stringField(revision, "pullHash")}
	}

	return entities.BuildMetadata{}
}

// ProcessFolderMetadata extracts owner/repo from a folder metadata document
func ProcessFolderMetadata(doc map[string]interface{}) entities.FolderMetadata {
	sources, ok := doc["sources"].([]interface{})
	if !ok {
		return entities.FolderMetadata{}
	}

	for _, raw := range sources {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := entry["source"].(map[string]interface{})
		if !ok {
			continue
		}
		owner := stringField(source, "repoOwner")
		repo := stringField(source, "repository")
		if owner != "" && repo != "" {
			return entities.FolderMetadata{Owner: owner, Repo: repo}
		}
	}

	return entities.FolderMetadata{}
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
