package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"provhost/internal/modules/provider/adapter/out/rpc"
	"provhost/internal/modules/provider/domain"
)

const baseURL = "https://reference.provhost.invalid"

var library = []domain.FilmDetails{
	{
		Film:     domain.Film{ID: "ref-1", Title: "The Reference", Year: 2021, Type: domain.FilmMovie, HomePage: baseURL + "/film/ref-1"},
		Overview: "A deterministic film served by the reference provider.",
		Genres:   []string{"Drama"},
	},
	{
		Film:     domain.Film{ID: "ref-2", Title: "Reference Series", Year: 2023, Type: domain.FilmSeries, HomePage: baseURL + "/tv/ref-2"},
		Overview: "Two seasons of nothing in particular.",
		Seasons: []domain.Season{
			{Number: 1, Episodes: []domain.Episode{{ID: "ref-2-s1e1", Season: 1, Number: 1, Title: "Pilot"}}},
			{Number: 2, Episodes: []domain.Episode{{ID: "ref-2-s2e1", Season: 2, Number: 1}}},
		},
	},
}

type provider struct {
	mu        sync.Mutex
	settings  string
	resources []string
}

func (p *provider) Initialize(_ context.Context, req domain.InstantiateRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = filepath.Join(req.SettingsDir, req.ProviderID+".json")
	if _, err := os.Stat(p.settings); os.IsNotExist(err) {
		return os.WriteFile(p.settings, []byte("{}\n"), 0o644)
	}
	return nil
}

func (p *provider) AttachResources(_ context.Context, bundle domain.ResourceBundle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources = append([]string(nil), bundle.Files...)
	return nil
}

func (p *provider) OnUnload(context.Context) error {
	return nil
}

func (p *provider) BaseURL(context.Context) (string, error) {
	return baseURL, nil
}

func (p *provider) TestFilm(context.Context) (domain.Film, error) {
	return library[0].Film, nil
}

func (p *provider) Catalogs(context.Context) ([]domain.Catalog, error) {
	return []domain.Catalog{
		{Name: "Movies", URL: baseURL + "/movies", CanPaginate: true},
		{Name: "Series", URL: baseURL + "/tv"},
	}, nil
}

func (p *provider) Filters(context.Context) ([]domain.FilterGroup, error) {
	return nil, rpc.NotImplemented("filters")
}

func (p *provider) CatalogItems(_ context.Context, catalog domain.Catalog, page int) (domain.SearchResponse, error) {
	want := domain.FilmMovie
	if catalog.Name == "Series" {
		want = domain.FilmSeries
	}
	results := []domain.Film{}
	for _, film := range library {
		if film.Type == want {
			results = append(results, film.Film)
		}
	}
	return domain.SearchResponse{Page: page, Results: results, TotalPages: 1}, nil
}

func (p *provider) Search(_ context.Context, query domain.SearchQuery) (domain.SearchResponse, error) {
	needle := strings.ToLower(strings.TrimSpace(query.Query))
	results := []domain.Film{}
	for _, film := range library {
		if needle == "" || strings.Contains(strings.ToLower(film.Title), needle) {
			results = append(results, film.Film)
		}
	}
	return domain.SearchResponse{Page: query.Page, Results: results, TotalPages: 1}, nil
}

func (p *provider) Metadata(_ context.Context, film domain.Film) (domain.FilmDetails, error) {
	for _, details := range library {
		if details.ID == film.ID {
			return details, nil
		}
	}
	return domain.FilmDetails{}, fmt.Errorf("film %s not found", film.ID)
}

func (p *provider) Links(_ context.Context, film domain.FilmDetails, episode *domain.Episode) ([]domain.MediaLink, error) {
	target := film.ID
	if episode != nil {
		target = episode.ID
	}
	return []domain.MediaLink{
		{URL: baseURL + "/stream/" + target + ".m3u8", Name: "Reference", Kind: domain.LinkStream},
		{URL: baseURL + "/subs/" + target + ".vtt", Name: "English", Kind: domain.LinkSubtitle},
	}, nil
}

func (p *provider) WebView() (domain.WebViewAPI, bool) {
	return nil, false
}

func main() {
	rpc.Serve(&provider{})
}
