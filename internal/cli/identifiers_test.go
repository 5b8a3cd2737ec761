package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoctl/internal/records"
)

func seedWithIdentifiers(t *testing.T, app *App, ids []records.Identifier) string {
	t.Helper()
	doc := records.Document{"metadata": map[string]any{}}
	doc.SetIdentifiers(ids)
	return seedRecord(t, app, records.ModelRDM, doc)
}

func TestIdentifiersList(t *testing.T) {
	app, out := newTestApp(t)
	pid := seedWithIdentifiers(t, app, []records.Identifier{
		{Identifier: "ark:/123/456", Scheme: "ark"},
	})

	require.NoError(t, runCommand(t, app, "records", "identifiers", "list", "--pid", pid))
	assert.Contains(t, out.String(), "ark:/123/456")
}

func TestIdentifiersListEmpty(t *testing.T) {
	app, out := newTestApp(t)
	pid := seedRecord(t, app, records.ModelRDM, records.Document{"metadata": map[string]any{}})

	require.NoError(t, runCommand(t, app, "records", "identifiers", "list", "--pid", pid))
	assert.Contains(t, out.String(), "record does not have any identifiers")
}

func TestIdentifiersAddThenDuplicate(t *testing.T) {
	app, out := newTestApp(t)
	pid := seedWithIdentifiers(t, app, []records.Identifier{
		{Identifier: "ark:/123/456", Scheme: "ark"},
	})

	require.NoError(t, runCommand(t, app,
		"records", "identifiers", "add", "--pid", pid,
		"-i", `{"identifier": "10.1/x", "scheme": "doi"}`))
	assert.Contains(t, out.String(), "Identifier for '"+pid+"' added.")

	// Order is preserved: ark first, doi appended.
	doc := readRecord(t, app, records.ModelRDM, pid)
	ids := doc.Identifiers()
	require.Len(t, ids, 2)
	assert.Equal(t, "ark", ids[0].Scheme)
	assert.Equal(t, "doi", ids[1].Scheme)

	// Adding the same scheme again changes nothing.
	out.Reset()
	err := runCommand(t, app,
		"records", "identifiers", "add", "--pid", pid,
		"-i", `{"identifier": "10.1/x", "scheme": "doi"}`)
	require.Error(t, err)
	assert.Contains(t, out.String(), "scheme 'doi' already in identifiers")

	doc = readRecord(t, app, records.ModelRDM, pid)
	assert.Len(t, doc.Identifiers(), 2)
}

func TestIdentifiersAddMissingRecord(t *testing.T) {
	app, out := newTestApp(t)

	err := runCommand(t, app,
		"records", "identifiers", "add", "--pid", "aaaaa-aaaaa",
		"-i", `{"identifier": "10.1/x", "scheme": "doi"}`)
	require.Error(t, err)
	assert.Contains(t, out.String(), "'aaaaa-aaaaa', does not exist or is deleted")
}

func TestIdentifiersAddValidatesPayload(t *testing.T) {
	app, _ := newTestApp(t)

	err := runCommand(t, app,
		"records", "identifiers", "add", "--pid", "aaaaa-aaaaa",
		"-i", `{"identifier": "10.1/x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"scheme" not specified`)

	err = runCommand(t, app,
		"records", "identifiers", "add", "--pid", "aaaaa-aaaaa",
		"-i", `{not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR - Invalid JSON provided.")
}

func TestIdentifiersReplace(t *testing.T) {
	app, out := newTestApp(t)
	pid := seedWithIdentifiers(t, app, []records.Identifier{
		{Identifier: "ark:/123/456", Scheme: "ark"},
		{Identifier: "10.1/old", Scheme: "doi"},
	})

	require.NoError(t, runCommand(t, app,
		"records", "identifiers", "replace", "--pid", pid,
		"-i", `{"identifier": "10.1/new", "scheme": "doi"}`))
	assert.Contains(t, out.String(), "Identifier for '"+pid+"' replaced.")

	// Exactly the doi entry changed; order kept.
	doc := readRecord(t, app, records.ModelRDM, pid)
	ids := doc.Identifiers()
	require.Len(t, ids, 2)
	assert.Equal(t, records.Identifier{Identifier: "ark:/123/456", Scheme: "ark"}, ids[0])
	assert.Equal(t, records.Identifier{Identifier: "10.1/new", Scheme: "doi"}, ids[1])
}

func TestIdentifiersReplaceMissingScheme(t *testing.T) {
	app, out := newTestApp(t)
	pid := seedWithIdentifiers(t, app, []records.Identifier{
		{Identifier: "ark:/123/456", Scheme: "ark"},
	})

	err := runCommand(t, app,
		"records", "identifiers", "replace", "--pid", pid,
		"-i", `{"identifier": "10.1/x", "scheme": "doi"}`)
	require.Error(t, err)
	assert.Contains(t, out.String(), "scheme 'doi' not in identifiers")

	doc := readRecord(t, app, records.ModelRDM, pid)
	require.Len(t, doc.Identifiers(), 1)
	assert.Equal(t, "ark", doc.Identifiers()[0].Scheme)
}
