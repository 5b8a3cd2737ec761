// Package cli wires the command tree. All collaborators (store, object
// store, record services, printer) are constructed once at startup and
// passed down explicitly; commands never look services up globally.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"repoctl/internal/config"
	"repoctl/internal/identity"
	"repoctl/internal/logging"
	"repoctl/internal/objstore"
	"repoctl/internal/records"
	"repoctl/internal/service"
	"repoctl/internal/storage"
	"repoctl/internal/storage/postgres"
	"repoctl/internal/storage/sqlite"
)

// App bundles the collaborators of one invocation. Tests construct it
// directly over in-memory backends; main lets initialize build it from the
// configuration.
type App struct {
	Config   *config.Config
	Logger   logging.Logger
	Registry *records.Registry
	Store    storage.Store
	Objects  objstore.ObjectStore
	Out      io.Writer

	printer *Printer
}

func (a *App) Printer() *Printer {
	if a.printer == nil {
		if a.Out == nil {
			a.Out = os.Stdout
		}
		a.printer = NewPrinter(a.Out)
	}
	return a.printer
}

// adminIdentity resolves the trusted identity used by all mutating commands.
// An unknown admin role aborts the command.
func (a *App) adminIdentity(ctx context.Context) (identity.Identity, error) {
	return identity.Resolve(ctx, a.Store, identity.SystemProcess, "admin")
}

// initialize loads configuration and opens the backends. Already-wired apps
// (tests) are left untouched.
func (a *App) initialize(ctx context.Context, configPath, dbDSN string) error {
	if a.Registry != nil {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbDSN != "" {
		cfg.DatabaseDSN = dbDSN
	}
	a.Config = cfg

	if a.Logger == nil {
		a.Logger = logging.NewJSONLogger(os.Stderr)
	}
	if a.Out == nil {
		a.Out = os.Stdout
	}

	store, err := openStore(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	a.Store = store

	if a.Objects == nil {
		objects, err := objstore.NewS3Store(ctx, cfg)
		if err != nil {
			return err
		}
		a.Objects = objects
	}

	registry := records.NewRegistry()
	for _, model := range records.DataModels {
		registry.Register(model, service.NewRecordService(model, store, a.Objects, a.Logger))
	}
	a.Registry = registry

	return nil
}

// Close releases the backends opened by initialize.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

func openStore(ctx context.Context, dsn string) (storage.Store, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(ctx, strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database DSN %q", dsn)
	}
}

// NewRootCmd builds the repoctl command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	var configPath, dbDSN string

	root := &cobra.Command{
		Use:           "repoctl",
		Short:         "Administrative tooling for the repository record service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initialize(cmd.Context(), configPath, dbDSN)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON configuration file")
	root.PersistentFlags().StringVar(&dbDSN, "db", "", "database DSN, overrides the configuration")

	root.AddCommand(
		newRecordsCmd(app),
		newUsersCmd(app),
		newRolesCmd(app),
	)

	return root
}

// dataModelService resolves the service for a --data-model flag value.
func (a *App) dataModelService(model string) (records.Service, error) {
	return a.Registry.Get(records.DataModel(model))
}

// batchResult implements the exit-code convention for batch commands:
// per-item failures are reported as they happen and the command returns a
// single summary error when any item failed.
func batchResult(failed, total int) error {
	if failed > 0 {
		return fmt.Errorf("%d of %d items failed", failed, total)
	}
	return nil
}
