package entities

// PermissionSet maps "owner/repo" to the path prefixes that repository may publish under
type PermissionSet map[string][]string

// Prefixes returns the allowed prefixes for a repository
func (p PermissionSet) Prefixes(repoPath string) ([]string, bool) {
	prefixes, ok := p[repoPath]
	if !ok || len(prefixes) == 0 {
		return nil, false
	}
	return prefixes, true
}
