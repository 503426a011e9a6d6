package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidRepository   = errors.New("invalid repository")
	ErrDuplicateRepository = errors.New("repository already added")
	ErrRepositoryNotFound  = errors.New("repository not found")
)

const (
	placeholderBranch   = "%branch%"
	placeholderFilename = "%filename%"
)

// Repository is a user-configured source of provider builds. It is unique by URL.
type Repository struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	RawLinkFormat string `json:"rawLinkFormat"`
}

// Parse validates a repository link and derives the raw file link format for its host.
func Parse(raw string) (Repository, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Repository{}, fmt.Errorf("%w: url is required", ErrInvalidRepository)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return Repository{}, fmt.Errorf("%w: %v", ErrInvalidRepository, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Repository{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRepository, u.Scheme)
	}
	if u.Host == "" {
		return Repository{}, fmt.Errorf("%w: host is required", ErrInvalidRepository)
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return Repository{}, fmt.Errorf("%w: expected <host>/<owner>/<name>, got %q", ErrInvalidRepository, trimmed)
	}
	owner := segments[0]
	name := strings.TrimSuffix(segments[1], ".git")
	if owner == "" || name == "" {
		return Repository{}, fmt.Errorf("%w: owner and name are required", ErrInvalidRepository)
	}

	host := strings.ToLower(u.Host)
	base := fmt.Sprintf("%s://%s/%s/%s", u.Scheme, host, owner, name)
	var format string
	switch host {
	case "github.com", "www.github.com":
		base = fmt.Sprintf("https://github.com/%s/%s", owner, name)
		format = fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", owner, name, placeholderBranch, placeholderFilename)
	case "gitlab.com":
		format = fmt.Sprintf("%s/-/raw/%s/%s", base, placeholderBranch, placeholderFilename)
	default:
		format = fmt.Sprintf("%s/raw/%s/%s", base, placeholderBranch, placeholderFilename)
	}
	return Repository{Owner: owner, Name: name, URL: base, RawLinkFormat: format}, nil
}

// RawLink expands the raw link format for a file on a branch.
func (r Repository) RawLink(filename, branch string) string {
	link := strings.ReplaceAll(r.RawLinkFormat, placeholderBranch, branch)
	return strings.ReplaceAll(link, placeholderFilename, filename)
}

// DirName is the on-disk directory name shared by artifacts and settings of this repository.
func (r Repository) DirName() string {
	return r.Owner + "-" + r.Name
}

func (r Repository) Validate() error {
	if r.Owner == "" || r.Name == "" {
		return fmt.Errorf("%w: owner and name are required", ErrInvalidRepository)
	}
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRepository)
	}
	if !strings.Contains(r.RawLinkFormat, placeholderFilename) {
		return fmt.Errorf("%w: raw link format must contain %s", ErrInvalidRepository, placeholderFilename)
	}
	return nil
}
