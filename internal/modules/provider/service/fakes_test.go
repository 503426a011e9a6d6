package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"provhost/internal/modules/provider/domain"
	"provhost/internal/modules/provider/service"
)

type memoryRecords struct {
	mu      sync.Mutex
	records []domain.InstalledRecord
	prefs   domain.Preferences
	// updateErrs fail successive Update calls in order; nil entries succeed.
	updateErrs []error
}

func (s *memoryRecords) List(context.Context) ([]domain.InstalledRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.InstalledRecord(nil), s.records...), nil
}

func (s *memoryRecords) Get(_ context.Context, id string) (domain.InstalledRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.ID == id {
			return record, true, nil
		}
	}
	return domain.InstalledRecord{}, false, nil
}

func (s *memoryRecords) Update(_ context.Context, fn func([]domain.InstalledRecord) ([]domain.InstalledRecord, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updateErrs) > 0 {
		err := s.updateErrs[0]
		s.updateErrs = s.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	next, err := fn(append([]domain.InstalledRecord(nil), s.records...))
	if err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *memoryRecords) Preferences(context.Context) (domain.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *memoryRecords) SavePreferences(_ context.Context, prefs domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
	return nil
}

func (s *memoryRecords) record(t *testing.T, id string) domain.InstalledRecord {
	t.Helper()
	record, ok, _ := s.Get(context.Background(), id)
	if !ok {
		t.Fatalf("expected installed record %s", id)
	}
	return record
}

// fakeModules maps an artifact path, or the bytes of an artifact, to the
// module it opens as. Content matches win so a moved file keeps its module.
type fakeModules struct {
	mu        sync.Mutex
	modules   map[string]*fakeModule
	byContent map[string]*fakeModule
}

func newFakeModules() *fakeModules {
	return &fakeModules{modules: map[string]*fakeModule{}, byContent: map[string]*fakeModule{}}
}

func (f *fakeModules) addContent(content string, module *fakeModule) *fakeModule {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byContent[content] = module
	return module
}

func (f *fakeModules) add(path string, module *fakeModule) *fakeModule {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modules[path] = module
	return module
}

func (f *fakeModules) Open(_ context.Context, path string) (domain.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, err := os.ReadFile(path); err == nil {
		if module, ok := f.byContent[string(data)]; ok {
			return module, nil
		}
	}
	module, ok := f.modules[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrManifestInvalid, domain.ManifestFileName)
	}
	return module, nil
}

type fakeModule struct {
	manifest       domain.Manifest
	instantiateErr error
	panicMessage   string
	block          bool
	gate           chan struct{}
	instance       *fakeInstance

	mu       sync.Mutex
	requests []domain.InstantiateRequest
	closed   bool
}

func (m *fakeModule) Manifest() domain.Manifest {
	return m.manifest
}

func (m *fakeModule) Instantiate(ctx context.Context, req domain.InstantiateRequest) (domain.Instance, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.panicMessage != "" {
		panic(m.panicMessage)
	}
	if m.gate != nil {
		<-m.gate
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.instantiateErr != nil {
		return nil, m.instantiateErr
	}
	if m.instance == nil {
		m.instance = &fakeInstance{}
	}
	return m.instance, nil
}

func (m *fakeModule) ExtractResources(_ context.Context, dest string) (domain.ResourceBundle, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return domain.ResourceBundle{}, err
	}
	if err := os.WriteFile(filepath.Join(dest, "model.bin"), []byte("weights"), 0o644); err != nil {
		return domain.ResourceBundle{}, err
	}
	return domain.ResourceBundle{Dir: dest, Files: []string{"model.bin"}}, nil
}

func (m *fakeModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type fakeInstance struct {
	apiErr    error
	unloadErr error

	mu       sync.Mutex
	events   []string
	attached *domain.ResourceBundle
	unloaded bool
	closed   bool
}

func (i *fakeInstance) API(context.Context) (domain.ProviderAPI, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, "api")
	if i.apiErr != nil {
		return nil, i.apiErr
	}
	return stubAPI{}, nil
}

func (i *fakeInstance) AttachResources(_ context.Context, bundle domain.ResourceBundle) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, "attach")
	i.attached = &bundle
	return nil
}

func (i *fakeInstance) OnUnload(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.unloaded = true
	return i.unloadErr
}

func (i *fakeInstance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

type stubAPI struct{}

func (stubAPI) BaseURL(context.Context) (string, error) { return "https://example.test", nil }
func (stubAPI) TestFilm(context.Context) (domain.Film, error) {
	return domain.Film{ID: "f1", Title: "Film"}, nil
}
func (stubAPI) Catalogs(context.Context) ([]domain.Catalog, error)    { return nil, nil }
func (stubAPI) Filters(context.Context) ([]domain.FilterGroup, error) { return nil, nil }
func (stubAPI) CatalogItems(context.Context, domain.Catalog, int) (domain.SearchResponse, error) {
	return domain.SearchResponse{}, nil
}
func (stubAPI) Search(context.Context, domain.SearchQuery) (domain.SearchResponse, error) {
	return domain.SearchResponse{}, nil
}
func (stubAPI) Metadata(context.Context, domain.Film) (domain.FilmDetails, error) {
	return domain.FilmDetails{}, nil
}
func (stubAPI) Links(context.Context, domain.FilmDetails, *domain.Episode) ([]domain.MediaLink, error) {
	return nil, nil
}
func (stubAPI) WebView() (domain.WebViewAPI, bool) { return nil, false }

type fakeDownloader struct {
	mu    sync.Mutex
	err   error
	calls []string
	// onDownload registers the module the new artifact should open as.
	onDownload func(dest string)
}

func (d *fakeDownloader) Download(_ context.Context, url, dest string) error {
	d.mu.Lock()
	d.calls = append(d.calls, url)
	d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if err := os.WriteFile(dest, []byte("artifact from "+url), 0o644); err != nil {
		return err
	}
	if d.onDownload != nil {
		d.onDownload(dest)
	}
	return nil
}

func (d *fakeDownloader) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type memoryListings struct {
	mu       sync.Mutex
	listings map[string][]domain.Metadata
}

func newMemoryListings() *memoryListings {
	return &memoryListings{listings: map[string][]domain.Metadata{}}
}

func (s *memoryListings) Read(_ context.Context, dir string) ([]domain.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[dir]
	if !ok {
		return nil, fmt.Errorf("read provider listing: %w", os.ErrNotExist)
	}
	return append([]domain.Metadata(nil), listing...), nil
}

func (s *memoryListings) Upsert(_ context.Context, dir string, m domain.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing := s.listings[dir]
	for i := range listing {
		if listing[i].ID == m.ID {
			listing[i] = m
			return nil
		}
	}
	s.listings[dir] = append(listing, m)
	return nil
}

type fakeRegistrar struct {
	mu      sync.Mutex
	ensured []string
}

func (r *fakeRegistrar) EnsureRepository(_ context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensured = append(r.ensured, url)
	return nil
}

func (r *fakeRegistrar) ListingURL(_ context.Context, url string) (string, error) {
	return url + "/raw/builds/updater.json", nil
}

type fakeFetcher struct {
	listings map[string][]domain.Metadata
}

func (f fakeFetcher) Fetch(_ context.Context, url string) ([]domain.Metadata, error) {
	listing, ok := f.listings[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return listing, nil
}

const testRepoURL = "https://github.com/acme/providers"

// env wires a loader, unloader and initializer over fakes rooted in a temp dir.
type env struct {
	t           *testing.T
	layout      domain.Layout
	catalog     *service.Catalog
	records     *memoryRecords
	modules     *fakeModules
	downloader  *fakeDownloader
	listings    *memoryListings
	registrar   *fakeRegistrar
	loader      *service.Loader
	unloader    *service.Unloader
	initializer *service.Initializer
}

func newEnv(t *testing.T, loadTimeout time.Duration) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		t: t,
		layout: domain.Layout{
			ProvidersRoot: filepath.Join(root, "providers"),
			SettingsRoot:  filepath.Join(root, "settings"),
			CacheRoot:     filepath.Join(root, "cache"),
			DebugRoot:     filepath.Join(root, "debug"),
			Scope:         "default",
		},
		catalog:    service.NewCatalog(),
		records:    &memoryRecords{},
		modules:    newFakeModules(),
		downloader: &fakeDownloader{},
		listings:   newMemoryListings(),
		registrar:  &fakeRegistrar{},
	}
	e.loader = service.NewLoader(service.LoaderDeps{
		Catalog:     e.catalog,
		Records:     e.records,
		Modules:     e.modules,
		Downloader:  e.downloader,
		Listings:    e.listings,
		Layout:      e.layout,
		LoadTimeout: loadTimeout,
	})
	e.unloader = service.NewUnloader(e.catalog, e.records, e.layout, nil, nil)
	e.initializer = service.NewInitializer(e.loader, e.records, e.listings, e.registrar, e.layout, nil)
	return e
}

func metadata(id string) domain.Metadata {
	return domain.Metadata{
		ID:            id,
		Name:          id,
		Version:       "1.0.0",
		BuildURL:      testRepoURL + "/raw/builds/" + id + ".prov",
		RepositoryURL: testRepoURL,
	}
}

func manifestFor(m domain.Metadata, requiresResources bool) domain.Manifest {
	return domain.Manifest{ID: m.ID, Name: m.Name, Version: m.Version, Entrypoint: "provider", RequiresResources: requiresResources}
}

// installArtifact writes an artifact at the production path for m, records
// it in the sibling listing and registers the module it opens as.
func (e *env) installArtifact(m domain.Metadata, module *fakeModule) string {
	e.t.Helper()
	path := e.layout.ArtifactPath(m)
	e.writeFile(path)
	if err := e.listings.Upsert(context.Background(), filepath.Dir(path), m); err != nil {
		e.t.Fatalf("upsert listing: %v", err)
	}
	if module == nil {
		module = &fakeModule{manifest: manifestFor(m, false)}
	}
	e.modules.add(path, module)
	return path
}

func (e *env) writeFile(path string) {
	e.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("artifact"), 0o644); err != nil {
		e.t.Fatalf("write %s: %v", path, err)
	}
}

func drain(ch <-chan domain.LoadOutcome) []domain.LoadOutcome {
	out := []domain.LoadOutcome{}
	for outcome := range ch {
		out = append(out, outcome)
	}
	return out
}
