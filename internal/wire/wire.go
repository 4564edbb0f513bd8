// Package wire provides dependency injection for filedupe.
// It creates singleton services with lazy initialization.
package wire

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/example/filedupe/internal/adapters/filesystem"
	"github.com/example/filedupe/internal/adapters/sqlite"
	"github.com/example/filedupe/internal/app"
	"github.com/example/filedupe/internal/config"
	"github.com/example/filedupe/internal/db"
	"github.com/example/filedupe/internal/ports/primary"
)

// Components is the assembled object graph.
type Components struct {
	DB         *sql.DB
	Service    *app.DedupeServiceImpl
	Registry   *sqlite.RegistryRepository
	Catalog    *sqlite.ReferenceCatalog
	Items      *sqlite.ItemRepository
	Exemptions *sqlite.ExemptionRepository
	Content    *filesystem.ContentStore
	Importer   *app.Importer
}

var (
	cfg        *config.Config
	components *Components
	initErr    error
	once       sync.Once
	mu         sync.Mutex
)

// Configure sets the configuration used on first access. It has no effect
// once services were initialized.
func Configure(c *config.Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
}

// Config returns the configured settings, or defaults when none were set.
func Config() *config.Config {
	mu.Lock()
	defer mu.Unlock()
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg
}

// DedupeService returns the singleton DedupeService.
func DedupeService() (primary.DedupeService, error) {
	c, err := Get()
	if err != nil {
		return nil, err
	}
	return c.Service, nil
}

// Get returns the singleton components, initializing them on first use.
func Get() (*Components, error) {
	once.Do(initServices)
	return components, initErr
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	c := Config()

	database, err := db.Open(c.Database)
	if err != nil {
		initErr = fmt.Errorf("failed to initialize database: %w", err)
		return
	}

	components, initErr = Build(database, c)
	if initErr != nil {
		database.Close()
	}
}

// Build assembles the object graph on an open database.
func Build(database *sql.DB, c *config.Config) (*Components, error) {
	content, err := filesystem.NewContentStore(c.FilesRoot)
	if err != nil {
		return nil, err
	}

	// Repository adapters (secondary ports)
	items := sqlite.NewItemRepository(database)
	ledger := sqlite.NewLedgerRepository(database)
	catalog := sqlite.NewReferenceCatalog(database)
	records := sqlite.NewRecordRepository(database)
	usage := sqlite.NewUsageRepository(database)
	exemptions := sqlite.NewExemptionRepository(database)
	tx := sqlite.NewTransactor(database)

	// Application components
	classifier := app.NewHashClassifier(content, c.HashWorkers)
	executor := app.NewEffectExecutor(records, records, usage, items)
	scanner := app.NewScanner(items, ledger, exemptions, classifier, tx)
	rewriter := app.NewReferenceRewriter(usage, catalog, records, executor, c.UsagePolicy)

	service := app.NewDedupeService(items, ledger, catalog, content, tx, scanner, classifier, rewriter, executor, app.DedupeOptions{
		UsagePolicy:      c.UsagePolicy,
		PossiblePolicy:   c.PossiblePolicy,
		DeleteDuplicates: c.DeleteDuplicates,
		RemoveContent:    c.RemoveContent,
		BusyRetries:      c.BusyRetries,
		RetryIf:          sqlite.IsBusy,
	})

	return &Components{
		DB:         database,
		Service:    service,
		Registry:   sqlite.NewRegistryRepository(database),
		Catalog:    catalog,
		Items:      items,
		Exemptions: exemptions,
		Content:    content,
		Importer:   app.NewImporter(items, content),
	}, nil
}

// Reset closes the database and forgets the singletons so the next access
// initializes them again.
func Reset() error {
	mu.Lock()
	defer mu.Unlock()

	var err error
	if components != nil && components.DB != nil {
		err = components.DB.Close()
	}
	components, initErr = nil, nil
	once = sync.Once{}
	cfg = nil
	return err
}
