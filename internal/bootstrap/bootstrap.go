package bootstrap

import (
	"database/sql"
	"fmt"

	hclog "github.com/hashicorp/go-hclog"

	providerinadapter "provhost/internal/modules/provider/adapter/in"
	provideroutadapter "provhost/internal/modules/provider/adapter/out"
	providerdomain "provhost/internal/modules/provider/domain"
	providerservice "provhost/internal/modules/provider/service"
	providerusecase "provhost/internal/modules/provider/usecase"
	providertestinadapter "provhost/internal/modules/providertest/adapter/in"
	providertestoutadapter "provhost/internal/modules/providertest/adapter/out"
	providertestservice "provhost/internal/modules/providertest/service"
	providertestusecase "provhost/internal/modules/providertest/usecase"
	repositoryinadapter "provhost/internal/modules/repository/adapter/in"
	repositoryoutadapter "provhost/internal/modules/repository/adapter/out"
	repositoryservice "provhost/internal/modules/repository/service"
	repositoryusecase "provhost/internal/modules/repository/usecase"
	"provhost/internal/platform/clock"
	"provhost/internal/platform/config"
	"provhost/internal/platform/id"
	"provhost/internal/platform/metrics"
	"provhost/internal/platform/sqlitedb"
)

type App struct {
	RepositoryCLI repositoryinadapter.CLIHandler
	ProviderCLI   providerinadapter.CLIHandler
	TestCLI       providertestinadapter.CLIHandler
	Metrics       *metrics.Recorder
	Logger        hclog.Logger

	db *sql.DB
}

func New(cfg config.Config, logger hclog.Logger) (*App, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	db, err := sqlitedb.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	recorder := metrics.New()

	repositoryStore, err := repositoryoutadapter.NewSQLiteRepositoryStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("new repository store: %w", err)
	}
	repositoryUC := repositoryusecase.NewInteractor(repositoryservice.NewRepositoryService(repositoryStore))

	records, err := provideroutadapter.NewSQLiteRecordStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("new provider record store: %w", err)
	}
	layout := providerdomain.Layout{
		ProvidersRoot: cfg.ProvidersRoot,
		SettingsRoot:  cfg.SettingsRoot,
		CacheRoot:     cfg.CacheRoot,
		DebugRoot:     cfg.DebugRoot,
		Scope:         cfg.Scope,
	}
	fetcher := provideroutadapter.NewHTTPFetcher(nil, cfg.DownloadRate, logger)
	listings := provideroutadapter.NewFileListingStore()
	registrar := provideroutadapter.NewRepositoryRegistrar(repositoryUC)
	catalog := providerservice.NewCatalog()

	loader := providerservice.NewLoader(providerservice.LoaderDeps{
		Catalog:     catalog,
		Records:     records,
		Modules:     provideroutadapter.NewPluginModuleLoader(logger, cfg.CallTimeout),
		Downloader:  fetcher,
		Listings:    listings,
		Layout:      layout,
		LoadTimeout: cfg.LoadTimeout,
		Logger:      logger,
		Metrics:     recorder,
	})
	providerUC := providerusecase.NewInteractor(providerservice.NewProviderService(providerservice.ProviderDeps{
		Catalog:     catalog,
		Loader:      loader,
		Unloader:    providerservice.NewUnloader(catalog, records, layout, logger, recorder),
		Initializer: providerservice.NewInitializer(loader, records, listings, registrar, layout, logger),
		Records:     records,
		Listings:    listings,
		Fetcher:     fetcher,
		Registrar:   registrar,
		Packer:      provideroutadapter.NewZipArtifactPacker(),
		Logger:      logger,
	}))

	source := providertestoutadapter.NewCatalogSource(providerUC)
	harness := providertestservice.NewHarness(providertestservice.HarnessDeps{
		Source:      source,
		Clock:       clock.SystemClock{},
		IDs:         id.UUID{},
		CaseTimeout: cfg.TestCaseTimeout,
		Logger:      logger,
		Metrics:     recorder,
	})

	return &App{
		RepositoryCLI: repositoryinadapter.NewCLIHandler(repositoryUC),
		ProviderCLI:   providerinadapter.NewCLIHandler(providerUC),
		TestCLI:       providertestinadapter.NewCLIHandler(providertestusecase.NewInteractor(harness, source)),
		Metrics:       recorder,
		Logger:        logger,
		db:            db,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
