package entities

// Trigger is the normalized build-completed payload
type Trigger struct {
	BuildURL string `json:"build_url"`
}

// BuildReference is a validated, canonical build URL (always ends with "/")
type BuildReference struct {
	URL string
}

// BuildMetadata is what the CI metadata API tells us about a build
// An empty CommitHash means no recognized revision action was found
type BuildMetadata struct {
	CommitHash string
}

// ShortHash returns the abbreviated hash used in incremental version names
func (m BuildMetadata) ShortHash() string {
	if len(m.CommitHash) <= 12 {
		return m.CommitHash
	}
	return m.CommitHash[:12]
}

// FolderMetadata identifies the source repository of the job containing a build
type FolderMetadata struct {
	Owner string
	Repo  string
}

// Complete reports whether both owner and repo were resolved
func (m FolderMetadata) Complete() bool {
	return m.Owner != "" && m.Repo != ""
}

// RepoPath returns the "owner/repo" key used by the permission registry
func (m FolderMetadata) RepoPath() string {
	return m.Owner + "/" + m.Repo
}
