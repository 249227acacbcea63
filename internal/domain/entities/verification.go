package entities

// Expectation holds the resolved values every descriptor must agree with
type Expectation struct {
	Owner      string
	Repo       string
	CommitHash string
}

// RepoPath returns the permission key of the expected repository
func (e Expectation) RepoPath() string {
	return e.Owner + "/" + e.Repo
}

// Verification is the result of a successful archive check
type Verification struct {
	// Paths lists every entry in enumeration order
	Paths []string
	// Descriptors lists the descriptor entries in enumeration order
	Descriptors []ArchiveEntry
}

// Primary returns the first descriptor entry, the one probed for idempotency
func (v *Verification) Primary() (ArchiveEntry, bool) {
	if v == nil || len(v.Descriptors) == 0 {
		return ArchiveEntry{}, false
	}
	return v.Descriptors[0], true
}
