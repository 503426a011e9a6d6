package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	providerdomain "provhost/internal/modules/provider/domain"
	providertestout "provhost/internal/modules/providertest/port/out"
)

const (
	CaseProviderAPI  = "Provider API"
	CaseBaseURL      = "Base URL"
	CaseTestFilm     = "Test film"
	CaseCatalogs     = "Catalogs"
	CaseFilters      = "Filters"
	CaseCatalogItems = "Catalog items"
	CaseSearch       = "Search"
	CaseMetadata     = "Film metadata"
	CaseLinks        = "Media links"
)

const fallbackSearchQuery = "the"

// subject is the state a battery threads between cases. Cases receive a
// copy and report changes through caseOutput.apply.
type subject struct {
	api     providerdomain.ProviderAPI
	film    *providerdomain.Film
	details *providerdomain.FilmDetails
}

type caseOutput struct {
	summary string
	payload any
	apply   func(*subject)
}

type testCase struct {
	name          string
	stopOnFailure bool
	run           func(ctx context.Context, s subject) (caseOutput, error)
}

func propertyChecks() []testCase {
	return []testCase{
		{name: CaseBaseURL, run: checkBaseURL},
		{name: CaseTestFilm, stopOnFailure: true, run: checkTestFilm},
		{name: CaseCatalogs, run: checkCatalogs},
		{name: CaseFilters, run: checkFilters},
	}
}

func methodChecks() []testCase {
	return []testCase{
		{name: CaseCatalogItems, run: checkCatalogItems},
		{name: CaseSearch, run: checkSearch},
		{name: CaseMetadata, stopOnFailure: true, run: checkMetadata},
		{name: CaseLinks, run: checkLinks},
	}
}

func checkBaseURL(ctx context.Context, s subject) (caseOutput, error) {
	url, err := s.api.BaseURL(ctx)
	if err != nil {
		return caseOutput{}, err
	}
	if strings.TrimSpace(url) == "" {
		return caseOutput{}, errors.New("base url is empty")
	}
	return caseOutput{summary: "Base URL: " + url, payload: url}, nil
}

func checkTestFilm(ctx context.Context, s subject) (caseOutput, error) {
	film, err := s.api.TestFilm(ctx)
	if err != nil {
		return caseOutput{}, err
	}
	if film.ID == "" || film.Title == "" {
		return caseOutput{payload: film}, errors.New("test film has no id or title")
	}
	return caseOutput{
		summary: fmt.Sprintf("Test film: %s [%s]", film.Title, film.ID),
		payload: film,
		apply:   func(s *subject) { s.film = &film },
	}, nil
}

func checkCatalogs(ctx context.Context, s subject) (caseOutput, error) {
	catalogs, err := s.api.Catalogs(ctx)
	if err != nil {
		return caseOutput{}, err
	}
	return caseOutput{summary: fmt.Sprintf("Declares %d catalogs", len(catalogs)), payload: catalogs}, nil
}

func checkFilters(ctx context.Context, s subject) (caseOutput, error) {
	filters, err := s.api.Filters(ctx)
	if err != nil {
		return caseOutput{}, err
	}
	return caseOutput{summary: fmt.Sprintf("Declares %d filter groups", len(filters)), payload: filters}, nil
}

func checkCatalogItems(ctx context.Context, s subject) (caseOutput, error) {
	catalogs, err := s.api.Catalogs(ctx)
	if err != nil {
		return caseOutput{}, err
	}
	if len(catalogs) == 0 {
		return caseOutput{summary: "No catalogs to page"}, nil
	}
	resp, err := s.api.CatalogItems(ctx, catalogs[0], 1)
	if err != nil {
		return caseOutput{}, err
	}
	return caseOutput{
		summary: fmt.Sprintf("Catalog %q returned %d items", catalogs[0].Name, len(resp.Results)),
		payload: resp,
	}, nil
}

func checkSearch(ctx context.Context, s subject) (caseOutput, error) {
	query := fallbackSearchQuery
	if s.film != nil {
		query = s.film.Title
	}
	resp, err := s.api.Search(ctx, providerdomain.SearchQuery{Query: query, Page: 1})
	if err != nil {
		return caseOutput{}, err
	}
	return caseOutput{
		summary: fmt.Sprintf("Found %d items for %q", len(resp.Results), query),
		payload: resp,
	}, nil
}

func checkMetadata(ctx context.Context, s subject) (caseOutput, error) {
	if s.film == nil {
		return caseOutput{}, errors.New("no test film to fetch metadata for")
	}
	details, err := s.api.Metadata(ctx, *s.film)
	if err != nil {
		return caseOutput{}, err
	}
	return caseOutput{
		summary: fmt.Sprintf("Metadata for %s: %d seasons", details.Title, len(details.Seasons)),
		payload: details,
		apply:   func(s *subject) { s.details = &details },
	}, nil
}

func checkLinks(ctx context.Context, s subject) (caseOutput, error) {
	if s.details == nil {
		return caseOutput{}, errors.New("no film metadata to extract links from")
	}
	episode := s.details.FirstEpisode()
	var (
		links []providerdomain.MediaLink
		err   error
		via   = "direct"
	)
	if webView, ok := s.api.WebView(); ok {
		via = "webview"
		links, err = webView.LinksViaBrowser(ctx, *s.details, episode)
	} else {
		links, err = s.api.Links(ctx, *s.details, episode)
	}
	if err != nil {
		return caseOutput{}, err
	}
	return caseOutput{
		summary: fmt.Sprintf("Extracted %d links (%s)", len(links), via),
		payload: links,
	}, nil
}

// fullLog renders a payload for diagnostics. It never fails; encoding
// problems fall back to the raw %+v rendering.
func fullLog(payload any, err error) string {
	if err != nil {
		return err.Error()
	}
	if payload == nil {
		return ""
	}
	raw, encodeErr := json.MarshalIndent(payload, "", "  ")
	if encodeErr != nil {
		return fmt.Sprintf("%+v", payload)
	}
	return string(raw)
}

// resolveAPI is case zero: it obtains the capability object every other case uses.
func resolveAPI(source providertestout.ProviderSource, id string) testCase {
	return testCase{
		name: CaseProviderAPI,
		run: func(ctx context.Context, _ subject) (caseOutput, error) {
			api, err := source.API(ctx, id)
			if err != nil {
				return caseOutput{}, err
			}
			if api == nil {
				return caseOutput{}, errors.New("provider returned no capability object")
			}
			return caseOutput{
				summary: "Capability object resolved",
				apply:   func(s *subject) { s.api = api },
			}, nil
		},
	}
}
