package github

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidRepository is returned when a repository address cannot be
// split into owner and name.
var ErrInvalidRepository = errors.New("invalid github url")

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoURL extracts owner/name from the last two path segments of a
// repository address. Accepts https URLs, scp-style git@ addresses and bare
// "owner/name".
func ParseRepoURL(raw string) (Repo, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Repo{}, fmt.Errorf("%w: empty address", ErrInvalidRepository)
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return Repo{}, fmt.Errorf("%w: %q: %v", ErrInvalidRepository, raw, err)
		}
		s = u.Path
	} else if at := strings.Index(s, "@"); at >= 0 {
		if colon := strings.Index(s[at:], ":"); colon >= 0 {
			s = s[at+colon+1:]
		}
	}

	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")
	var parts []string
	for _, p := range strings.Split(s, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return Repo{}, fmt.Errorf("%w: %q", ErrInvalidRepository, raw)
	}

	return Repo{Owner: parts[len(parts)-2], Name: parts[len(parts)-1]}, nil
}
