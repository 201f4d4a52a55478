package main

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/geocat-project/geocat/internal/cache"
	"github.com/geocat-project/geocat/internal/config"
	"github.com/geocat-project/geocat/internal/indexing"
	"github.com/geocat-project/geocat/internal/inspire"
	"github.com/geocat-project/geocat/internal/metadata"
	"github.com/geocat-project/geocat/internal/resource"
	"github.com/geocat-project/geocat/internal/thesaurus"
)

// stack is the assembled metadata subsystem shared by serve and reindex.
type stack struct {
	resources *resource.Store
	thesauri  *thesaurus.Store
	manager   *metadata.Manager
	indexer   *indexing.Manager
	filter    *indexing.Filter
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	url := config.GetDatabaseURL(cfg)
	if url == "" {
		return nil, fmt.Errorf("no database configured; set DATABASE_URL or database.url")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func newCacheBackend(cfg *config.Config) (cache.Cache, error) {
	base := cache.DefaultConfig()
	base.Prefix = "geocat:"
	if cfg.Cache.Capacity > 0 {
		base.Capacity = cfg.Cache.Capacity
	}

	switch cfg.Cache.Backend {
	case "", "memory":
		return cache.NewMemoryCacheWithConfig(base), nil
	case "redis":
		return cache.NewRedisCacheWithConfig(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Config:   base,
		})
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func indexingConfig(cfg *config.Config) indexing.Config {
	return indexing.Config{
		Indexes:         cfg.Metadata.Indexes,
		MultilangFields: cfg.Metadata.MultilangFields,
		PostgresLangs:   cfg.Metadata.PostgresLangs,
		Languages:       cfg.LanguageCodes(),
		DefaultLanguage: cfg.DefaultLanguage,
	}
}

// buildStack wires the stores, handlers, manager and index manager from the
// configuration. Handler registration order follows the config and is part
// of the schema contract.
func buildStack(cfg *config.Config, db *sql.DB, logger *zap.Logger) (*stack, error) {
	cacheBackend, err := newCacheBackend(cfg)
	if err != nil {
		return nil, err
	}

	resources := resource.NewStore(db)
	thesauri := thesaurus.NewStore(db)

	registry := metadata.NewSparseRegistry()
	inspire.Register(registry)

	labels := thesaurus.NewLabelCache(thesauri, cacheBackend, logger)
	manager := metadata.NewManager(cacheBackend, thesauri, resources, cfg.DefaultLanguage, logger)

	langs := cfg.LanguageCodes()
	constructors := map[string]func() metadata.Handler{
		"core":           func() metadata.Handler { return metadata.NewCoreHandler(cfg.Languages) },
		"contact":        func() metadata.Handler { return metadata.NewContactHandler(resources) },
		"region":         func() metadata.Handler { return metadata.NewRegionHandler(resources) },
		"doi":            func() metadata.Handler { return metadata.NewDOIHandler() },
		"linkedresource": func() metadata.Handler { return metadata.NewLinkedResourceHandler(resources) },
		"hkeyword":       func() metadata.Handler { return metadata.NewHKeywordHandler(resources) },
		"thesaurus":      func() metadata.Handler { return metadata.NewThesaurusKeywordsHandler(thesauri, resources, labels, logger) },
		"group":          func() metadata.Handler { return metadata.NewGroupHandler() },
		"sparse":         func() metadata.Handler { return metadata.NewSparseHandler(registry, resources, logger) },
		"multilang": func() metadata.Handler {
			return metadata.NewMultiLangHandler(cfg.Metadata.MultilangFields, langs, cfg.DefaultLanguage, registry, logger)
		},
	}

	for _, id := range cfg.Metadata.Handlers {
		construct, ok := constructors[id]
		if !ok {
			return nil, fmt.Errorf("unknown metadata handler %q in configuration", id)
		}
		if err := manager.Register(construct()); err != nil {
			return nil, err
		}
	}

	idxCfg := indexingConfig(cfg)
	indexer := indexing.NewManager(db, idxCfg, logger)
	manager.SetIndexer(indexer)

	return &stack{
		resources: resources,
		thesauri:  thesauri,
		manager:   manager,
		indexer:   indexer,
		filter:    indexing.NewFilter(idxCfg, logger),
	}, nil
}
