package tagpush

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	giturls "github.com/whilp/git-urls"
)

// RepoRef is the canonical identity of a repository. Values are comparable.
type RepoRef struct {
	Host  string
	Owner string
	Name  string
}

// ParseRepoRef normalises a repository URL (https, ssh, git or scp-like) into a RepoRef.
func ParseRepoRef(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, errors.New("empty repository url")
	}
	u, err := giturls.Parse(raw)
	if err != nil {
		return RepoRef{}, errors.Wrapf(err, "invalid repository url %q", raw)
	}

	host := strings.ToLower(u.Hostname())
	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	owner, name, found := strings.Cut(path, "/")
	if host == "" || !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return RepoRef{}, errors.Errorf("repository url %q does not name host/owner/repository", raw)
	}

	return RepoRef{
		Host:  host,
		Owner: strings.ToLower(owner),
		Name:  strings.ToLower(name),
	}, nil
}

// FullName returns the owner/name form used by the GitHub API.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r RepoRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Host, r.Owner, r.Name)
}

// IsZero reports whether r is the zero value.
func (r RepoRef) IsZero() bool {
	return r == RepoRef{}
}
