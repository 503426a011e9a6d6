package out

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/klauspost/compress/zip"

	providerrpc "provhost/internal/modules/provider/adapter/out/rpc"
	"provhost/internal/modules/provider/domain"
	providerout "provhost/internal/modules/provider/port/out"
)

const (
	defaultStartTimeout = 10 * time.Second
	defaultCallTimeout  = 30 * time.Second
)

// PluginModuleLoader opens .prov archives and runs their entrypoint as a
// go-plugin subprocess speaking the provider gRPC contract.
type PluginModuleLoader struct {
	logger       hclog.Logger
	startTimeout time.Duration
	callTimeout  time.Duration
}

func NewPluginModuleLoader(logger hclog.Logger, callTimeout time.Duration) providerout.ModuleLoader {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &PluginModuleLoader{
		logger:       logger.Named("plugin"),
		startTimeout: defaultStartTimeout,
		callTimeout:  callTimeout,
	}
}

func (l *PluginModuleLoader) Open(_ context.Context, artifactPath string) (domain.Module, error) {
	archive, err := zip.OpenReader(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open archive %s: %w", domain.ErrManifestInvalid, artifactPath, err)
	}
	manifest, err := readManifest(&archive.Reader)
	if err != nil {
		_ = archive.Close()
		return nil, err
	}
	return &pluginModule{
		loader:   l,
		path:     artifactPath,
		archive:  archive,
		manifest: manifest,
	}, nil
}

func (l *PluginModuleLoader) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, l.callTimeout)
}

type pluginModule struct {
	loader   *PluginModuleLoader
	path     string
	archive  *zip.ReadCloser
	manifest domain.Manifest

	closeOnce sync.Once
}

func (m *pluginModule) Manifest() domain.Manifest {
	return m.manifest
}

func (m *pluginModule) Instantiate(ctx context.Context, req domain.InstantiateRequest) (domain.Instance, error) {
	entry := findEntry(&m.archive.Reader, m.manifest.Entrypoint)
	if entry == nil {
		return nil, fmt.Errorf("entrypoint %s not in artifact", m.manifest.Entrypoint)
	}
	binary := filepath.Join(req.CacheDir, "bin", filepath.Base(m.manifest.Entrypoint))
	if err := extractEntry(entry, binary, 0o755); err != nil {
		return nil, fmt.Errorf("extract entrypoint: %w", err)
	}

	logger := m.loader.logger.With("provider", req.ProviderID)
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  providerrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          providerrpc.PluginMap(nil),
		Cmd:              exec.Command(binary),
		Managed:          true,
		StartTimeout:     m.loader.startTimeout,
		Logger:           logger,
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start provider process: %w", err)
	}
	raw, err := rpcClient.Dispense(providerrpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense provider: %w", err)
	}
	typed, ok := raw.(*providerrpc.ProviderClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("provider rpc client type mismatch")
	}

	callCtx, cancel := m.loader.callContext(ctx)
	defer cancel()
	resp, err := typed.Initialize(callCtx, &providerrpc.InitializeRequest{
		ProviderID:  req.ProviderID,
		SettingsDir: req.SettingsDir,
		CacheDir:    req.CacheDir,
	})
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("initialize provider: %w", err)
	}
	logger.Debug("provider process started", "binary", binary, "capabilities", resp.Capabilities)
	return &pluginInstance{
		loader:       m.loader,
		client:       client,
		rpc:          typed,
		capabilities: resp.Capabilities,
	}, nil
}

func (m *pluginModule) ExtractResources(_ context.Context, dest string) (domain.ResourceBundle, error) {
	files, err := extractTree(&m.archive.Reader, domain.ResourcesDir, dest)
	if err != nil {
		return domain.ResourceBundle{}, err
	}
	return domain.ResourceBundle{Dir: dest, Files: files}, nil
}

func (m *pluginModule) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.archive.Close()
	})
	return err
}

type pluginInstance struct {
	loader       *PluginModuleLoader
	client       *plugin.Client
	rpc          *providerrpc.ProviderClient
	capabilities []string
}

func (i *pluginInstance) API(_ context.Context) (domain.ProviderAPI, error) {
	if i.client.Exited() {
		return nil, fmt.Errorf("provider process exited")
	}
	return &remoteAPI{loader: i.loader, rpc: i.rpc, webView: hasCapability(i.capabilities, providerrpc.CapabilityWebView)}, nil
}

func (i *pluginInstance) AttachResources(ctx context.Context, bundle domain.ResourceBundle) error {
	callCtx, cancel := i.loader.callContext(ctx)
	defer cancel()
	return i.rpc.AttachResources(callCtx, &providerrpc.AttachResourcesRequest{Dir: bundle.Dir, Files: bundle.Files})
}

func (i *pluginInstance) OnUnload(ctx context.Context) error {
	if i.client.Exited() {
		return nil
	}
	callCtx, cancel := i.loader.callContext(ctx)
	defer cancel()
	return i.rpc.OnUnload(callCtx)
}

func (i *pluginInstance) Close() error {
	i.client.Kill()
	return nil
}

func hasCapability(capabilities []string, want string) bool {
	for _, capability := range capabilities {
		if capability == want {
			return true
		}
	}
	return false
}
