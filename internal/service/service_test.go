package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoctl/internal/identity"
	"repoctl/internal/logging"
	"repoctl/internal/objstore"
	"repoctl/internal/records"
	"repoctl/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*RecordService, *objstore.MemoryStore) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	objects := objstore.NewMemoryStore()
	svc := NewRecordService(records.ModelRDM, store, objects, logging.NewJSONLogger(io.Discard))
	return svc, objects
}

func systemIdentity(t *testing.T) identity.Identity {
	t.Helper()
	ident, err := identity.Resolve(context.Background(), nil, identity.SystemProcess, "")
	require.NoError(t, err)
	return ident
}

func publishRecord(t *testing.T, svc *RecordService, doc records.Document) string {
	t.Helper()
	ctx := context.Background()
	ident := systemIdentity(t)

	pid, err := svc.Create(ctx, ident, doc)
	require.NoError(t, err)
	require.NoError(t, svc.Publish(ctx, pid, ident))
	return pid
}

func TestCreatePublishRead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pid := publishRecord(t, svc, records.Document{
		"metadata": map[string]any{"title": "a record"},
	})
	assert.Regexp(t, `^[0-9a-hj-km-np-z]{5}-[0-9a-hj-km-np-z]{5}$`, pid)

	doc, err := svc.Read(ctx, pid, identity.AnyCaller())
	require.NoError(t, err)
	assert.Equal(t, "a record", doc["metadata"].(map[string]any)["title"])

	// Publication consumed the draft.
	_, err = svc.ReadDraft(ctx, pid, identity.AnyCaller())
	assert.ErrorIs(t, err, records.ErrDraftNotFound)
}

func TestReadMissingRecord(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Read(context.Background(), "aaaaa-aaaaa", identity.AnyCaller())
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestReadDeletedRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	pid := publishRecord(t, svc, records.Document{"metadata": map[string]any{}})
	require.NoError(t, svc.Delete(ctx, pid, ident))

	_, err := svc.Read(ctx, pid, identity.AnyCaller())
	assert.ErrorIs(t, err, records.ErrDeleted)

	// Deleting again reports the prior deletion, not absence.
	err = svc.Delete(ctx, pid, ident)
	assert.ErrorIs(t, err, records.ErrDeleted)
}

func TestMutationsRequireSystemProcess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, identity.AnyCaller(), records.Document{"metadata": map[string]any{}})
	assert.ErrorIs(t, err, records.ErrForbidden)

	assert.ErrorIs(t, svc.Edit(ctx, "aaaaa-aaaaa", identity.AnyCaller()), records.ErrForbidden)
	assert.ErrorIs(t, svc.Publish(ctx, "aaaaa-aaaaa", identity.AnyCaller()), records.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, "aaaaa-aaaaa", identity.AnyCaller()), records.ErrForbidden)
}

func TestCreateRejectsInvalidDocument(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), systemIdentity(t), records.Document{"title": "no metadata"})
	assert.ErrorIs(t, err, records.ErrInvalid)
}

func TestEditSeedsDraftFromRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	pid := publishRecord(t, svc, records.Document{
		"metadata": map[string]any{"title": "published"},
	})

	require.NoError(t, svc.Edit(ctx, pid, ident))

	draft, err := svc.ReadDraft(ctx, pid, identity.AnyCaller())
	require.NoError(t, err)
	assert.Equal(t, "published", draft["metadata"].(map[string]any)["title"])
}

func TestEditLeavesOpenDraftUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	pid := publishRecord(t, svc, records.Document{
		"metadata": map[string]any{"title": "published"},
	})
	require.NoError(t, svc.Edit(ctx, pid, ident))
	require.NoError(t, svc.UpdateDraft(ctx, pid, ident, records.Document{
		"metadata": map[string]any{"title": "work in progress"},
	}))

	// A second edit must not reset the draft to the published document.
	require.NoError(t, svc.Edit(ctx, pid, ident))

	draft, err := svc.ReadDraft(ctx, pid, identity.AnyCaller())
	require.NoError(t, err)
	assert.Equal(t, "work in progress", draft["metadata"].(map[string]any)["title"])
}

func TestEditMissingRecord(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Edit(context.Background(), "aaaaa-aaaaa", systemIdentity(t))
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestUpdateDraftWithoutDraft(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.UpdateDraft(context.Background(), "aaaaa-aaaaa", systemIdentity(t),
		records.Document{"metadata": map[string]any{}})
	assert.ErrorIs(t, err, records.ErrDraftNotFound)
}

func TestPublishRejectsInvalidDraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	pid := publishRecord(t, svc, records.Document{
		"metadata": map[string]any{"title": "good"},
	})

	// Corrupt the draft below the service's own validation by writing raw.
	require.NoError(t, svc.Edit(ctx, pid, ident))
	sqliteStore := storeOf(t, svc)
	require.NoError(t, sqliteStore.UpdateDraft(ctx, records.ModelRDM, pid, []byte(`{"title":"no metadata"}`)))

	err := svc.Publish(ctx, pid, ident)
	assert.ErrorIs(t, err, records.ErrInvalid)

	// The published record is untouched.
	doc, err := svc.Read(ctx, pid, identity.AnyCaller())
	require.NoError(t, err)
	assert.Equal(t, "good", doc["metadata"].(map[string]any)["title"])
}

func storeOf(t *testing.T, svc *RecordService) *sqlite.Store {
	t.Helper()
	s, ok := svc.store.(*sqlite.Store)
	require.True(t, ok)
	return s
}

func TestDeleteDraftKeepsRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	pid := publishRecord(t, svc, records.Document{"metadata": map[string]any{}})
	require.NoError(t, svc.Edit(ctx, pid, ident))
	require.NoError(t, svc.DeleteDraft(ctx, pid, ident))

	_, err := svc.ReadDraft(ctx, pid, identity.AnyCaller())
	assert.ErrorIs(t, err, records.ErrDraftNotFound)

	_, err = svc.Read(ctx, pid, identity.AnyCaller())
	assert.NoError(t, err)
}

func TestCountAndList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	var pids []string
	for range 3 {
		pids = append(pids, publishRecord(t, svc, records.Document{"metadata": map[string]any{}}))
	}
	require.NoError(t, svc.Delete(ctx, pids[1], ident))

	n, err := svc.Count(ctx, identity.AnyCaller(), records.TypeRecord)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var listed []string
	err = svc.List(ctx, identity.AnyCaller(), records.TypeRecord, func(pid string, doc records.Document) error {
		listed = append(listed, pid)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pids[0], pids[2]}, listed)
}

func TestAddFileStoresPayloadAndChecksum(t *testing.T) {
	svc, objects := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	doc := records.Document{"metadata": map[string]any{}}
	doc.SetFilesEnabled(true)
	pid := publishRecord(t, svc, doc)

	require.NoError(t, svc.AddFile(ctx, pid, ident, "thesis.pdf", strings.NewReader("file content"), false))

	files, err := svc.Files(ctx, pid, identity.AnyCaller())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "thesis.pdf", files[0].Filename)
	assert.Equal(t, int64(len("file content")), files[0].Size)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, files[0].Checksum)

	payload, ok := objects.Get(files[0].Key)
	require.True(t, ok)
	assert.Equal(t, "file content", string(payload))
}

func TestAddFileToMetadataOnlyRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	pid := publishRecord(t, svc, records.Document{"metadata": map[string]any{}})

	err := svc.AddFile(ctx, pid, ident, "thesis.pdf", strings.NewReader("x"), false)
	assert.ErrorIs(t, err, records.ErrInvalid)

	// enable flips the files section on and the upload goes through.
	require.NoError(t, svc.AddFile(ctx, pid, ident, "thesis.pdf", strings.NewReader("x"), true))

	doc, err := svc.Read(ctx, pid, identity.AnyCaller())
	require.NoError(t, err)
	assert.True(t, doc.FilesEnabled())
}

func TestAddFileDuplicateName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	doc := records.Document{"metadata": map[string]any{}}
	doc.SetFilesEnabled(true)
	pid := publishRecord(t, svc, doc)

	require.NoError(t, svc.AddFile(ctx, pid, ident, "thesis.pdf", strings.NewReader("x"), false))
	err := svc.AddFile(ctx, pid, ident, "thesis.pdf", strings.NewReader("y"), false)
	assert.ErrorIs(t, err, records.ErrFileExists)
}

func TestDeleteFileRemovesPayload(t *testing.T) {
	svc, objects := newTestService(t)
	ctx := context.Background()
	ident := systemIdentity(t)

	doc := records.Document{"metadata": map[string]any{}}
	doc.SetFilesEnabled(true)
	pid := publishRecord(t, svc, doc)

	require.NoError(t, svc.AddFile(ctx, pid, ident, "thesis.pdf", strings.NewReader("x"), false))
	require.NoError(t, svc.DeleteFile(ctx, pid, ident, "thesis.pdf"))

	assert.Equal(t, 0, objects.Len())

	err := svc.DeleteFile(ctx, pid, ident, "thesis.pdf")
	assert.ErrorIs(t, err, records.ErrFileNotFound)
}
