package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setshare/internal/cache"
	"github.com/desertthunder/setshare/internal/repositories"
	"github.com/desertthunder/setshare/internal/services"
	"github.com/desertthunder/setshare/internal/sets"
	"github.com/desertthunder/setshare/internal/shared"
	"github.com/desertthunder/setshare/internal/tokens"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage and catalog collaborators are built lazily on first use so commands
// like setup can run before a database exists.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db          *sql.DB
	credentials *repositories.CredentialRepository
	tracks      *repositories.TrackRepository
	collections *repositories.CollectionRepository

	catalog    *services.CatalogClient
	tokenMgr   *tokens.Manager
	metadata   *cache.MetadataCache
	reconciler *sets.Reconciler
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database handle if one was opened.
func (r *Runner) Close() {
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
}

// ensureStores opens the database and constructs the repositories.
func (r *Runner) ensureStores() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.db = db
	r.credentials = repositories.NewCredentialRepository(db)
	r.tracks = repositories.NewTrackRepository(db)
	r.collections = repositories.NewCollectionRepository(db)
	return nil
}

// ensureServices constructs the catalog client and everything layered on it.
//
// Requires catalog client credentials in the configuration.
func (r *Runner) ensureServices() error {
	if r.reconciler != nil {
		return nil
	}
	if err := r.ensureStores(); err != nil {
		return err
	}

	catalog, err := services.NewCatalogClient(r.config.Credentials.Catalog, r.httpClient)
	if err != nil {
		return err
	}
	if r.config.Cache.RequestsPerS > 0 {
		catalog.SetRateLimit(r.config.Cache.RequestsPerS)
	}

	metadata := cache.NewMetadataCache(r.tracks, catalog, r.logger)
	if r.config.Cache.TTLDays > 0 {
		metadata.SetTTL(time.Duration(r.config.Cache.TTLDays) * 24 * time.Hour)
	}
	if r.config.Cache.BatchSize > 0 {
		metadata.SetBatchSize(r.config.Cache.BatchSize)
	}

	r.catalog = catalog
	r.tokenMgr = tokens.NewManager(r.credentials, catalog, r.logger)
	r.metadata = metadata
	r.reconciler = sets.NewReconciler(r.collections, metadata, r.tokenMgr, r.logger)
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, linkCommand, setsCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
