package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"repoctl/internal/config"
	"repoctl/internal/identity"
	"repoctl/internal/logging"
	"repoctl/internal/objstore"
	"repoctl/internal/records"
	"repoctl/internal/service"
	"repoctl/internal/storage/sqlite"
)

// newTestApp wires an App over in-memory backends, the same shape main
// builds over Postgres and S3.
func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()

	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	objects := objstore.NewMemoryStore()
	logger := logging.NewJSONLogger(io.Discard)

	registry := records.NewRegistry()
	for _, model := range records.DataModels {
		registry.Register(model, service.NewRecordService(model, store, objects, logger))
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()

	out := &bytes.Buffer{}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Store:    store,
		Objects:  objects,
		Out:      out,
	}
	return app, out
}

func runCommand(t *testing.T, app *App, args ...string) error {
	t.Helper()
	root := NewRootCmd(app)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

// seedRecord creates and publishes a record, returning its PID.
func seedRecord(t *testing.T, app *App, model records.DataModel, doc records.Document) string {
	t.Helper()
	ctx := context.Background()

	svc, err := app.Registry.Get(model)
	require.NoError(t, err)

	ident, err := identity.Resolve(ctx, app.Store, identity.SystemProcess, "admin")
	require.NoError(t, err)

	pid, err := svc.Create(ctx, ident, doc)
	require.NoError(t, err)
	require.NoError(t, svc.Publish(ctx, pid, ident))
	return pid
}

// readRecord returns the current published document.
func readRecord(t *testing.T, app *App, model records.DataModel, pid string) records.Document {
	t.Helper()

	svc, err := app.Registry.Get(model)
	require.NoError(t, err)

	doc, err := svc.Read(context.Background(), pid, identity.AnyCaller())
	require.NoError(t, err)
	return doc
}
