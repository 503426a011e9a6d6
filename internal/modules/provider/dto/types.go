package dto

type ProviderInfo struct {
	Position  int
	ID        string
	Name      string
	Version   string
	FilePath  string
	Enabled   bool
	Debug     bool
	Loaded    bool
	Active    bool
	Resources bool
}

type LoadResult struct {
	ID       string
	Name     string
	Version  string
	FilePath string
	OK       bool
	Error    string
}

type InstallInput struct {
	RepositoryURL string
	ProviderID    string
}

type UninstallResult struct {
	ID       string
	Unloaded bool
}

type UpdateInfo struct {
	ID        string
	Name      string
	Current   string
	Available string
	BuildURL  string
}

type Preferences struct {
	DebugIDSuffix       bool
	PurgeStaleResources bool
}

type PackInput struct {
	ID           string
	Name         string
	Version      string
	BinaryPath   string
	ResourcesDir string
	UpdateURL    string
	Output       string
}

type PackOutput struct {
	Path     string
	Manifest string
}
