package domain

import "context"

type FilmType string

const (
	FilmMovie  FilmType = "movie"
	FilmSeries FilmType = "tv"
)

type Film struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	HomePage  string   `json:"homePage,omitempty"`
	Year      int      `json:"year,omitempty"`
	Type      FilmType `json:"type"`
	PosterURL string   `json:"posterUrl,omitempty"`
}

type Episode struct {
	ID     string `json:"id"`
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

type Season struct {
	Number   int       `json:"number"`
	Episodes []Episode `json:"episodes,omitempty"`
}

type FilmDetails struct {
	Film
	Overview string   `json:"overview,omitempty"`
	Genres   []string `json:"genres,omitempty"`
	Seasons  []Season `json:"seasons,omitempty"`
}

// FirstEpisode returns the earliest episode of a series, or nil for movies.
func (d FilmDetails) FirstEpisode() *Episode {
	for _, season := range d.Seasons {
		if len(season.Episodes) > 0 {
			episode := season.Episodes[0]
			return &episode
		}
	}
	return nil
}

type Catalog struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	CanPaginate bool   `json:"canPaginate,omitempty"`
}

type FilterGroup struct {
	Name     string   `json:"name"`
	Options  []string `json:"options"`
	Selected []int    `json:"selected,omitempty"`
}

type SearchQuery struct {
	Query   string        `json:"query"`
	Page    int           `json:"page"`
	Filters []FilterGroup `json:"filters,omitempty"`
}

type SearchResponse struct {
	Page        int    `json:"page"`
	Results     []Film `json:"results"`
	HasNextPage bool   `json:"hasNextPage"`
	TotalPages  int    `json:"totalPages,omitempty"`
}

type LinkKind string

const (
	LinkStream   LinkKind = "stream"
	LinkSubtitle LinkKind = "subtitle"
)

type MediaLink struct {
	URL     string            `json:"url"`
	Name    string            `json:"name"`
	Kind    LinkKind          `json:"kind"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ProviderAPI is the capability surface every provider exposes. Unsupported
// operations return an error wrapping ErrNotImplemented.
type ProviderAPI interface {
	BaseURL(ctx context.Context) (string, error)
	TestFilm(ctx context.Context) (Film, error)
	Catalogs(ctx context.Context) ([]Catalog, error)
	Filters(ctx context.Context) ([]FilterGroup, error)
	CatalogItems(ctx context.Context, catalog Catalog, page int) (SearchResponse, error)
	Search(ctx context.Context, query SearchQuery) (SearchResponse, error)
	Metadata(ctx context.Context, film Film) (FilmDetails, error)
	Links(ctx context.Context, film FilmDetails, episode *Episode) ([]MediaLink, error)
	// WebView reports whether the provider also extracts links through browser automation.
	WebView() (WebViewAPI, bool)
}

type WebViewAPI interface {
	LinksViaBrowser(ctx context.Context, film FilmDetails, episode *Episode) ([]MediaLink, error)
}

type ResourceBundle struct {
	Dir   string
	Files []string
}

type InstantiateRequest struct {
	ProviderID  string
	SettingsDir string
	CacheDir    string
}

// Module is an opened artifact. It owns no running code until Instantiate.
type Module interface {
	Manifest() Manifest
	Instantiate(ctx context.Context, req InstantiateRequest) (Instance, error)
	ExtractResources(ctx context.Context, dest string) (ResourceBundle, error)
	Close() error
}

// Instance is a running provider.
type Instance interface {
	API(ctx context.Context) (ProviderAPI, error)
	AttachResources(ctx context.Context, bundle ResourceBundle) error
	OnUnload(ctx context.Context) error
	Close() error
}

// LoadedModule exists only while a provider is loaded and is owned by the catalog.
type LoadedModule struct {
	Metadata  Metadata
	Manifest  Manifest
	FilePath  string
	Module    Module
	Instance  Instance
	Resources *ResourceBundle
	API       ProviderAPI
}
