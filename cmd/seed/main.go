package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"dmsiq/internal/config"
	"dmsiq/internal/repository/postgres"
	postgresDocsys "dmsiq/internal/repository/postgres/docsystem"
	"dmsiq/internal/seed"
	"dmsiq/internal/service/auth"
	serviceDocsys "dmsiq/internal/service/docsystem"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't load seed data")
	seedFile := flag.String("file", "", "Seed file (defaults to SEED_FILE)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("🚫 BLOCKED: Cannot run --drop-tables in production environment")
	}

	logger, closer := config.NewLogger(cfg)
	defer closer.Close()

	log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := postgres.DropAll(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.RunSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	path := cfg.SeedFile
	if *seedFile != "" {
		path = *seedFile
	}
	data, err := seed.LoadFile(path)
	if err != nil {
		log.Fatalf("Failed to load seed data: %v", err)
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	folderRepo := postgresDocsys.NewFolderRepository(repoConfig)
	docRepo := postgresDocsys.NewDocumentRepository(repoConfig)
	categoryRepo := postgresDocsys.NewCategoryRepository(repoConfig)
	permissionRepo := postgresDocsys.NewPermissionRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	resolver := auth.NewPermissionResolver(folderRepo, docRepo, permissionRepo, logger)
	authorizer := auth.NewPermissionAuthorizer(resolver)
	validator := serviceDocsys.NewResourceValidator(folderRepo, docRepo)

	folderService := serviceDocsys.NewFolderService(folderRepo, docRepo, permissionRepo, txManager, validator, authorizer, logger)
	categoryService := serviceDocsys.NewCategoryService(categoryRepo, txManager, validator, authorizer, logger)

	result, err := seed.NewSeeder(folderService, categoryService, cfg.SystemUserID, logger).Apply(ctx, data)
	if err != nil {
		log.Fatalf("Failed to apply seed data: %v", err)
	}

	log.Printf("🎉 Seeding complete! folders: %d created, %d existing; categories: %d created, %d existing",
		result.FoldersCreated, result.FoldersExisting, result.CategoriesCreated, result.CategoriesExist)
}
