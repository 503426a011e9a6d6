package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	providerdomain "provhost/internal/modules/provider/domain"
	"provhost/internal/modules/providertest/domain"
	"provhost/internal/modules/providertest/service"
)

type fakeAPI struct {
	base     string
	film     providerdomain.Film
	catalogs []providerdomain.Catalog
	details  providerdomain.FilmDetails
	links    []providerdomain.MediaLink
	errs     map[string]error
	gates    map[string]chan struct{}
	panics   string
	webView  bool
	entered  chan string

	mu    sync.Mutex
	calls []string
}

func newFakeAPI() *fakeAPI {
	film := providerdomain.Film{ID: "f1", Title: "Dune", Type: providerdomain.FilmSeries}
	return &fakeAPI{
		base:     "https://provider.test",
		film:     film,
		catalogs: []providerdomain.Catalog{{Name: "Popular", URL: "https://provider.test/popular"}},
		details: providerdomain.FilmDetails{
			Film:    film,
			Seasons: []providerdomain.Season{{Number: 1, Episodes: []providerdomain.Episode{{ID: "e1", Season: 1, Number: 1}}}},
		},
		links:   []providerdomain.MediaLink{{URL: "https://provider.test/e1.m3u8", Kind: providerdomain.LinkStream}},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		entered: make(chan string, 64),
	}
}

func (a *fakeAPI) enter(ctx context.Context, method string) error {
	a.mu.Lock()
	a.calls = append(a.calls, method)
	gate := a.gates[method]
	err := a.errs[method]
	a.mu.Unlock()
	select {
	case a.entered <- method:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if a.panics == method {
		panic("provider exploded")
	}
	return err
}

func (a *fakeAPI) called(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	count := 0
	for _, call := range a.calls {
		if call == method {
			count++
		}
	}
	return count
}

func (a *fakeAPI) BaseURL(ctx context.Context) (string, error) {
	if err := a.enter(ctx, "BaseURL"); err != nil {
		return "", err
	}
	return a.base, nil
}

func (a *fakeAPI) TestFilm(ctx context.Context) (providerdomain.Film, error) {
	if err := a.enter(ctx, "TestFilm"); err != nil {
		return providerdomain.Film{}, err
	}
	return a.film, nil
}

func (a *fakeAPI) Catalogs(ctx context.Context) ([]providerdomain.Catalog, error) {
	if err := a.enter(ctx, "Catalogs"); err != nil {
		return nil, err
	}
	return a.catalogs, nil
}

func (a *fakeAPI) Filters(ctx context.Context) ([]providerdomain.FilterGroup, error) {
	if err := a.enter(ctx, "Filters"); err != nil {
		return nil, err
	}
	return []providerdomain.FilterGroup{{Name: "Genre", Options: []string{"Drama"}}}, nil
}

func (a *fakeAPI) CatalogItems(ctx context.Context, _ providerdomain.Catalog, page int) (providerdomain.SearchResponse, error) {
	if err := a.enter(ctx, "CatalogItems"); err != nil {
		return providerdomain.SearchResponse{}, err
	}
	return providerdomain.SearchResponse{Page: page, Results: []providerdomain.Film{a.film}}, nil
}

func (a *fakeAPI) Search(ctx context.Context, query providerdomain.SearchQuery) (providerdomain.SearchResponse, error) {
	if err := a.enter(ctx, "Search"); err != nil {
		return providerdomain.SearchResponse{}, err
	}
	return providerdomain.SearchResponse{Page: query.Page, Results: []providerdomain.Film{a.film, a.film}}, nil
}

func (a *fakeAPI) Metadata(ctx context.Context, _ providerdomain.Film) (providerdomain.FilmDetails, error) {
	if err := a.enter(ctx, "Metadata"); err != nil {
		return providerdomain.FilmDetails{}, err
	}
	return a.details, nil
}

func (a *fakeAPI) Links(ctx context.Context, _ providerdomain.FilmDetails, _ *providerdomain.Episode) ([]providerdomain.MediaLink, error) {
	if err := a.enter(ctx, "Links"); err != nil {
		return nil, err
	}
	return a.links, nil
}

func (a *fakeAPI) WebView() (providerdomain.WebViewAPI, bool) {
	if !a.webView {
		return nil, false
	}
	return a, true
}

func (a *fakeAPI) LinksViaBrowser(ctx context.Context, _ providerdomain.FilmDetails, _ *providerdomain.Episode) ([]providerdomain.MediaLink, error) {
	if err := a.enter(ctx, "LinksViaBrowser"); err != nil {
		return nil, err
	}
	return a.links, nil
}

type fakeSource struct {
	apis map[string]providerdomain.ProviderAPI
	errs map[string]error
}

func (s *fakeSource) Loaded(context.Context) ([]domain.Target, error) {
	return nil, nil
}

func (s *fakeSource) API(_ context.Context, id string) (providerdomain.ProviderAPI, error) {
	if err := s.errs[id]; err != nil {
		return nil, err
	}
	api, ok := s.apis[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", providerdomain.ErrNotLoaded, id)
	}
	return api, nil
}

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type seqIDs struct {
	next atomic.Int64
}

func (s *seqIDs) New() string {
	return fmt.Sprintf("run-%d", s.next.Add(1))
}

type countingMetrics struct {
	mu       sync.Mutex
	statuses map[string]int
}

func (m *countingMetrics) TestCaseFinished(status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses == nil {
		m.statuses = map[string]int{}
	}
	m.statuses[status]++
}

func newHarness(source *fakeSource, caseTimeout time.Duration) (*service.Harness, *countingMetrics) {
	metrics := &countingMetrics{}
	return service.NewHarness(service.HarnessDeps{
		Source:      source,
		Clock:       &stepClock{now: time.Unix(0, 0), step: time.Millisecond},
		IDs:         &seqIDs{},
		CaseTimeout: caseTimeout,
		Metrics:     metrics,
	}), metrics
}

func sourceOf(apis map[string]*fakeAPI) *fakeSource {
	source := &fakeSource{apis: map[string]providerdomain.ProviderAPI{}, errs: map[string]error{}}
	for id, api := range apis {
		source.apis[id] = api
	}
	return source
}

func targets(ids ...string) []domain.Target {
	out := make([]domain.Target, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Target{ID: id, Name: "Provider " + id})
	}
	return out
}

func runToCompletion(t *testing.T, h *service.Harness, list []domain.Target) domain.Snapshot {
	t.Helper()
	if err := h.Start(context.Background(), list); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	return h.Snapshot()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitEntered(t *testing.T, api *fakeAPI, method string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-api.entered:
			if got == method {
				return
			}
		case <-timeout:
			t.Fatalf("provider never called %s", method)
		}
	}
}

type caseLine struct {
	name   string
	status domain.Status
	log    string
}

func caseLines(result domain.RunResult) []caseLine {
	out := make([]caseLine, 0, len(result.Cases))
	for _, c := range result.Cases {
		out = append(out, caseLine{name: c.Name, status: c.Status, log: c.ShortLog})
	}
	return out
}

func caseNames(result domain.RunResult) []string {
	out := make([]string, 0, len(result.Cases))
	for _, c := range result.Cases {
		out = append(out, c.Name)
	}
	return out
}

func findCase(t *testing.T, result domain.RunResult, name string) domain.CaseResult {
	t.Helper()
	for _, c := range result.Cases {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("case %q not recorded for %s", name, result.Label)
	return domain.CaseResult{}
}
