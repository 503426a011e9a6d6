package dto

type RepositoryInfo struct {
	Owner         string
	Name          string
	URL           string
	RawLinkFormat string
}

type EnsureOutput struct {
	Repository RepositoryInfo
	Added      bool
}
