package service

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"dmsiq/internal/config"
	"dmsiq/internal/domain/repositories"
	docsysSvc "dmsiq/internal/domain/services/docsystem"
	"dmsiq/internal/repository/postgres"
	postgresDocsys "dmsiq/internal/repository/postgres/docsystem"
	postgresFilecache "dmsiq/internal/repository/postgres/filecache"
	"dmsiq/internal/service/auth"
	serviceDocsys "dmsiq/internal/service/docsystem"
	"dmsiq/internal/service/filecache"
	"dmsiq/internal/storage/local"
)

// Services holds everything a binary needs, wired against one database and one storage root
type Services struct {
	Folders     docsysSvc.FolderService
	Documents   docsysSvc.DocumentService
	Categories  docsysSvc.CategoryService
	Permissions docsysSvc.PermissionService
	Files       *filecache.Manager
	Storage     *local.FileStore
	TxManager   repositories.TransactionManager
}

// SetupServices builds repositories and services. Metrics are registered on reg;
// a nil reg keeps them unregistered.
func SetupServices(pool *pgxpool.Pool, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Services, error) {
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	folderRepo := postgresDocsys.NewFolderRepository(repoConfig)
	docRepo := postgresDocsys.NewDocumentRepository(repoConfig)
	versionRepo := postgresDocsys.NewVersionRepository(repoConfig)
	categoryRepo := postgresDocsys.NewCategoryRepository(repoConfig)
	permissionRepo := postgresDocsys.NewPermissionRepository(repoConfig)
	referenceRepo := postgresFilecache.NewReferenceRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	storage, err := local.NewFileStore(cfg.DMSRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}

	resolver := auth.NewPermissionResolver(folderRepo, docRepo, permissionRepo, logger)
	authorizer := auth.NewPermissionAuthorizer(resolver)
	validator := serviceDocsys.NewResourceValidator(folderRepo, docRepo)

	fetcher := filecache.NewHTTPFetcher(&http.Client{}, filecache.FetcherConfig{
		RatePerHost:         cfg.FetchRatePerHost,
		Burst:               cfg.FetchBurst,
		BreakerMaxRequests:  cfg.BreakerMaxRequests,
		BreakerInterval:     cfg.BreakerInterval,
		BreakerOpenTimeout:  cfg.BreakerOpenTimeout,
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerMinRequests:  cfg.BreakerMinRequests,
		MaxBytes:            cfg.FetchMaxBytes,
	}, logger)

	manager := filecache.NewManager(referenceRepo, storage, fetcher, filecache.NewMetrics(reg), filecache.Options{
		ReadTimeout:  cfg.RemoteReadTimeout,
		FetchTimeout: cfg.CacheFetchTimeout,
		Concurrency:  cfg.CacheConcurrency,
	}, logger)

	return &Services{
		Folders: serviceDocsys.NewFolderService(folderRepo, docRepo, permissionRepo,
			txManager, validator, authorizer, logger),
		Documents: serviceDocsys.NewDocumentService(docRepo, versionRepo, folderRepo, categoryRepo, permissionRepo,
			storage, txManager, validator, authorizer, logger),
		Categories:  serviceDocsys.NewCategoryService(categoryRepo, txManager, validator, authorizer, logger),
		Permissions: serviceDocsys.NewPermissionService(permissionRepo, txManager, validator, authorizer, logger),
		Files:       manager,
		Storage:     storage,
		TxManager:   txManager,
	}, nil
}
