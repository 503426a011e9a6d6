package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"provhost/internal/modules/provider/domain"
)

const (
	PluginMapKey  = "provider"
	serviceName   = "provhost.provider.v1.Provider"
	jsonCodecName = "json"

	CapabilityWebView = "webview"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PROVHOST_PROVIDER",
	MagicCookieValue: "provhost",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type InitializeRequest struct {
	ProviderID  string `json:"provider_id"`
	SettingsDir string `json:"settings_dir"`
	CacheDir    string `json:"cache_dir"`
}

type InitializeResponse struct {
	Capabilities []string `json:"capabilities"`
}

type BaseURLResponse struct {
	URL string `json:"url"`
}

type CatalogsResponse struct {
	Catalogs []domain.Catalog `json:"catalogs"`
}

type FiltersResponse struct {
	Filters []domain.FilterGroup `json:"filters"`
}

type CatalogItemsRequest struct {
	Catalog domain.Catalog `json:"catalog"`
	Page    int            `json:"page"`
}

type LinksRequest struct {
	Film    domain.FilmDetails `json:"film"`
	Episode *domain.Episode    `json:"episode,omitempty"`
}

type LinksResponse struct {
	Links []domain.MediaLink `json:"links"`
}

type AttachResourcesRequest struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// ProviderServer is the wire surface served by a provider binary.
type ProviderServer interface {
	Initialize(ctx context.Context, in *InitializeRequest) (*InitializeResponse, error)
	BaseURL(ctx context.Context, in *Empty) (*BaseURLResponse, error)
	TestFilm(ctx context.Context, in *Empty) (*domain.Film, error)
	Catalogs(ctx context.Context, in *Empty) (*CatalogsResponse, error)
	Filters(ctx context.Context, in *Empty) (*FiltersResponse, error)
	CatalogItems(ctx context.Context, in *CatalogItemsRequest) (*domain.SearchResponse, error)
	Search(ctx context.Context, in *domain.SearchQuery) (*domain.SearchResponse, error)
	Metadata(ctx context.Context, in *domain.Film) (*domain.FilmDetails, error)
	Links(ctx context.Context, in *LinksRequest) (*LinksResponse, error)
	WebViewLinks(ctx context.Context, in *LinksRequest) (*LinksResponse, error)
	AttachResources(ctx context.Context, in *AttachResourcesRequest) (*Empty, error)
	OnUnload(ctx context.Context, in *Empty) (*Empty, error)
}

// NotImplemented is returned by providers for operations they do not support.
func NotImplemented(operation string) error {
	return status.Errorf(codes.Unimplemented, "%s is not implemented", operation)
}

// FromStatus maps the wire status back onto domain sentinels.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unimplemented:
			return fmt.Errorf("%w: %s", domain.ErrNotImplemented, st.Message())
		case codes.DeadlineExceeded:
			return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
		case codes.Canceled:
			return fmt.Errorf("%w: %s", context.Canceled, st.Message())
		}
		return errors.New(st.Message())
	}
	return err
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, domain.ErrNotImplemented) {
		return status.Error(codes.Unimplemented, err.Error())
	}
	return status.Error(codes.Unknown, err.Error())
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

func unary[Req any, Resp any](name string, call func(ProviderServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			impl, ok := srv.(ProviderServer)
			if !ok {
				return nil, fmt.Errorf("invalid server type")
			}
			if interceptor == nil {
				out, err := call(impl, ctx, in)
				return out, toStatus(err)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type")
				}
				out, err := call(impl, ctx, typed)
				return out, toStatus(err)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterProviderServer(server grpc.ServiceRegistrar, impl ProviderServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*ProviderServer)(nil),
		Methods: []grpc.MethodDesc{
			unary("Initialize", ProviderServer.Initialize),
			unary("BaseURL", ProviderServer.BaseURL),
			unary("TestFilm", ProviderServer.TestFilm),
			unary("Catalogs", ProviderServer.Catalogs),
			unary("Filters", ProviderServer.Filters),
			unary("CatalogItems", ProviderServer.CatalogItems),
			unary("Search", ProviderServer.Search),
			unary("Metadata", ProviderServer.Metadata),
			unary("Links", ProviderServer.Links),
			unary("WebViewLinks", ProviderServer.WebViewLinks),
			unary("AttachResources", ProviderServer.AttachResources),
			unary("OnUnload", ProviderServer.OnUnload),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/provider-rpc-v1.proto",
	}, impl)
}

// ProviderClient calls a provider binary over the plugin connection.
type ProviderClient struct {
	conn *grpc.ClientConn
}

func NewProviderClient(conn *grpc.ClientConn) *ProviderClient {
	return &ProviderClient{conn: conn}
}

func invoke[Resp any](ctx context.Context, conn *grpc.ClientConn, name string, in any) (*Resp, error) {
	out := new(Resp)
	if err := conn.Invoke(ctx, fullMethod(name), in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}

func (c *ProviderClient) Initialize(ctx context.Context, in *InitializeRequest) (*InitializeResponse, error) {
	return invoke[InitializeResponse](ctx, c.conn, "Initialize", in)
}

func (c *ProviderClient) BaseURL(ctx context.Context) (*BaseURLResponse, error) {
	return invoke[BaseURLResponse](ctx, c.conn, "BaseURL", &Empty{})
}

func (c *ProviderClient) TestFilm(ctx context.Context) (*domain.Film, error) {
	return invoke[domain.Film](ctx, c.conn, "TestFilm", &Empty{})
}

func (c *ProviderClient) Catalogs(ctx context.Context) (*CatalogsResponse, error) {
	return invoke[CatalogsResponse](ctx, c.conn, "Catalogs", &Empty{})
}

func (c *ProviderClient) Filters(ctx context.Context) (*FiltersResponse, error) {
	return invoke[FiltersResponse](ctx, c.conn, "Filters", &Empty{})
}

func (c *ProviderClient) CatalogItems(ctx context.Context, in *CatalogItemsRequest) (*domain.SearchResponse, error) {
	return invoke[domain.SearchResponse](ctx, c.conn, "CatalogItems", in)
}

func (c *ProviderClient) Search(ctx context.Context, in *domain.SearchQuery) (*domain.SearchResponse, error) {
	return invoke[domain.SearchResponse](ctx, c.conn, "Search", in)
}

func (c *ProviderClient) Metadata(ctx context.Context, in *domain.Film) (*domain.FilmDetails, error) {
	return invoke[domain.FilmDetails](ctx, c.conn, "Metadata", in)
}

func (c *ProviderClient) Links(ctx context.Context, in *LinksRequest) (*LinksResponse, error) {
	return invoke[LinksResponse](ctx, c.conn, "Links", in)
}

func (c *ProviderClient) WebViewLinks(ctx context.Context, in *LinksRequest) (*LinksResponse, error) {
	return invoke[LinksResponse](ctx, c.conn, "WebViewLinks", in)
}

func (c *ProviderClient) AttachResources(ctx context.Context, in *AttachResourcesRequest) error {
	_, err := invoke[Empty](ctx, c.conn, "AttachResources", in)
	return err
}

func (c *ProviderClient) OnUnload(ctx context.Context) error {
	_, err := invoke[Empty](ctx, c.conn, "OnUnload", &Empty{})
	return err
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl ProviderServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterProviderServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewProviderClient(conn), nil
}

func PluginMap(impl ProviderServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
