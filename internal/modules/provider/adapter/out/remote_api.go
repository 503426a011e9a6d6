package out

import (
	"context"

	providerrpc "provhost/internal/modules/provider/adapter/out/rpc"
	"provhost/internal/modules/provider/domain"
)

// remoteAPI forwards every capability call to the provider process.
type remoteAPI struct {
	loader  *PluginModuleLoader
	rpc     *providerrpc.ProviderClient
	webView bool
}

func (a *remoteAPI) BaseURL(ctx context.Context) (string, error) {
	callCtx, cancel := a.loader.callContext(ctx)
	defer cancel()
	resp, err := a.rpc.BaseURL(callCtx)
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (a *remoteAPI) TestFilm(ctx context.Context) (domain.Film, error) {
	callCtx, cancel := a.loader.callContext(ctx)
	defer cancel()
	resp, err := a.rpc.TestFilm(callCtx)
	if err != nil {
		return domain.Film{}, err
	}
	return *resp, nil
}

func (a *remoteAPI) Catalogs(ctx context.Context) ([]domain.Catalog, error) {
	callCtx, cancel := a.loader.callContext(ctx)
	defer cancel()
	resp, err := a.rpc.Catalogs(callCtx)
	if err != nil {
		return nil, err
	}
	return resp.Catalogs, nil
}

func (a *remoteAPI) Filters(ctx context.Context) ([]domain.FilterGroup, error) {
	callCtx, cancel := a.loader.callContext(ctx)
	defer cancel()
	resp, err := a.rpc.Filters(callCtx)
	if err != nil {
		return nil, err
	}
	return resp.Filters, nil
}

func (a *remoteAPI) CatalogItems(ctx context.Context, catalog domain.Catalog, page int) (domain.SearchResponse, error) {
	callCtx, cancel := a.loader.callContext(ctx)
	defer cancel()
	resp, err := a.rpc.CatalogItems(callCtx, &providerrpc.CatalogItemsRequest{Catalog: catalog, Page: page})
	if err != nil {
		return domain.SearchResponse{}, err
	}
	return *resp, nil
}

func (a *remoteAPI) Search(ctx context.Context, query domain.SearchQuery) (domain.SearchResponse, error) {
	callCtx, cancel := a.loader.callContext(ctx)
	defer cancel()
	resp, err := a.rpc.Search(callCtx, &query)
	if err != nil {
		return domain.SearchResponse{}, err
	}
	return *resp, nil
}

func (a *remoteAPI) Metadata(ctx context.Context, film domain.Film) (domain.FilmDetails, error) {
	callCtx, cancel := a.loader.callContext(ctx)
	defer cancel()
	resp, err := a.rpc.Metadata(callCtx, &film)
	if err != nil {
		return domain.FilmDetails{}, err
	}
	return *resp, nil
}

func (a *remoteAPI) Links(ctx context.Context, film domain.FilmDetails, episode *domain.Episode) ([]domain.MediaLink, error) {
	callCtx, cancel := a.loader.callContext(ctx)
	defer cancel()
	resp, err := a.rpc.Links(callCtx, &providerrpc.LinksRequest{Film: film, Episode: episode})
	if err != nil {
		return nil, err
	}
	return resp.Links, nil
}

func (a *remoteAPI) WebView() (domain.WebViewAPI, bool) {
	if !a.webView {
		return nil, false
	}
	return remoteWebView{api: a}, true
}

type remoteWebView struct {
	api *remoteAPI
}

func (w remoteWebView) LinksViaBrowser(ctx context.Context, film domain.FilmDetails, episode *domain.Episode) ([]domain.MediaLink, error) {
	callCtx, cancel := w.api.loader.callContext(ctx)
	defer cancel()
	resp, err := w.api.rpc.WebViewLinks(callCtx, &providerrpc.LinksRequest{Film: film, Episode: episode})
	if err != nil {
		return nil, err
	}
	return resp.Links, nil
}
