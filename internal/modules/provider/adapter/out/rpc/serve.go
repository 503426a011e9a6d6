package rpc

import (
	"context"

	"github.com/hashicorp/go-plugin"

	"provhost/internal/modules/provider/domain"
)

// Provider is implemented by provider binaries. Unsupported operations
// return NotImplemented or an error wrapping domain.ErrNotImplemented.
type Provider interface {
	domain.ProviderAPI
	Initialize(ctx context.Context, req domain.InstantiateRequest) error
	AttachResources(ctx context.Context, bundle domain.ResourceBundle) error
	OnUnload(ctx context.Context) error
}

// Serve blocks serving impl to the host process.
func Serve(impl Provider) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap(NewServer(impl)),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}

type server struct {
	impl Provider
}

func NewServer(impl Provider) ProviderServer {
	return &server{impl: impl}
}

func (s *server) Initialize(ctx context.Context, in *InitializeRequest) (*InitializeResponse, error) {
	err := s.impl.Initialize(ctx, domain.InstantiateRequest{
		ProviderID:  in.ProviderID,
		SettingsDir: in.SettingsDir,
		CacheDir:    in.CacheDir,
	})
	if err != nil {
		return nil, err
	}
	out := &InitializeResponse{Capabilities: []string{}}
	if _, ok := s.impl.WebView(); ok {
		out.Capabilities = append(out.Capabilities, CapabilityWebView)
	}
	return out, nil
}

func (s *server) BaseURL(ctx context.Context, _ *Empty) (*BaseURLResponse, error) {
	url, err := s.impl.BaseURL(ctx)
	if err != nil {
		return nil, err
	}
	return &BaseURLResponse{URL: url}, nil
}

func (s *server) TestFilm(ctx context.Context, _ *Empty) (*domain.Film, error) {
	film, err := s.impl.TestFilm(ctx)
	if err != nil {
		return nil, err
	}
	return &film, nil
}

func (s *server) Catalogs(ctx context.Context, _ *Empty) (*CatalogsResponse, error) {
	catalogs, err := s.impl.Catalogs(ctx)
	if err != nil {
		return nil, err
	}
	return &CatalogsResponse{Catalogs: catalogs}, nil
}

func (s *server) Filters(ctx context.Context, _ *Empty) (*FiltersResponse, error) {
	filters, err := s.impl.Filters(ctx)
	if err != nil {
		return nil, err
	}
	return &FiltersResponse{Filters: filters}, nil
}

func (s *server) CatalogItems(ctx context.Context, in *CatalogItemsRequest) (*domain.SearchResponse, error) {
	resp, err := s.impl.CatalogItems(ctx, in.Catalog, in.Page)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *server) Search(ctx context.Context, in *domain.SearchQuery) (*domain.SearchResponse, error) {
	resp, err := s.impl.Search(ctx, *in)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *server) Metadata(ctx context.Context, in *domain.Film) (*domain.FilmDetails, error) {
	details, err := s.impl.Metadata(ctx, *in)
	if err != nil {
		return nil, err
	}
	return &details, nil
}

func (s *server) Links(ctx context.Context, in *LinksRequest) (*LinksResponse, error) {
	links, err := s.impl.Links(ctx, in.Film, in.Episode)
	if err != nil {
		return nil, err
	}
	return &LinksResponse{Links: links}, nil
}

func (s *server) WebViewLinks(ctx context.Context, in *LinksRequest) (*LinksResponse, error) {
	webView, ok := s.impl.WebView()
	if !ok {
		return nil, NotImplemented("webview links")
	}
	links, err := webView.LinksViaBrowser(ctx, in.Film, in.Episode)
	if err != nil {
		return nil, err
	}
	return &LinksResponse{Links: links}, nil
}

func (s *server) AttachResources(ctx context.Context, in *AttachResourcesRequest) (*Empty, error) {
	if err := s.impl.AttachResources(ctx, domain.ResourceBundle{Dir: in.Dir, Files: in.Files}); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *server) OnUnload(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.impl.OnUnload(ctx); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}
