package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoctl/internal/records"
	"repoctl/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRunsMigrations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, model := range records.DataModels {
		n, err := s.CountRecords(ctx, model, records.TypeRecord)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		n, err = s.CountRecords(ctx, model, records.TypeDraft)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}
}

func TestMigrationsSeedAdminRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.RoleExists(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RoleExists(ctx, "curator")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetRecordNoRows(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRecord(context.Background(), records.ModelRDM, "aaaaa-aaaaa")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestPromoteDraftReplacesRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDraft(ctx, records.ModelRDM, "abcde-fghjk", []byte(`{"metadata":{"title":"v1"}}`)))
	require.NoError(t, s.PromoteDraft(ctx, records.ModelRDM, "abcde-fghjk"))

	row, err := s.GetRecord(ctx, records.ModelRDM, "abcde-fghjk")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Version)
	assert.JSONEq(t, `{"metadata":{"title":"v1"}}`, string(row.JSON))

	// Draft is consumed by publication.
	_, err = s.GetDraft(ctx, records.ModelRDM, "abcde-fghjk")
	assert.ErrorIs(t, err, storage.ErrNoRows)

	// A second cycle bumps the version.
	require.NoError(t, s.InsertDraft(ctx, records.ModelRDM, "abcde-fghjk", []byte(`{"metadata":{"title":"v2"}}`)))
	require.NoError(t, s.PromoteDraft(ctx, records.ModelRDM, "abcde-fghjk"))

	row, err = s.GetRecord(ctx, records.ModelRDM, "abcde-fghjk")
	require.NoError(t, err)
	assert.Equal(t, 2, row.Version)
	assert.JSONEq(t, `{"metadata":{"title":"v2"}}`, string(row.JSON))
}

func TestPromoteDraftWithoutDraft(t *testing.T) {
	s := newTestStore(t)

	err := s.PromoteDraft(context.Background(), records.ModelRDM, "abcde-fghjk")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestInsertDraftIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDraft(ctx, records.ModelMarc21, "abcde-fghjk", []byte(`{"metadata":{}}`)))
	require.NoError(t, s.InsertDraft(ctx, records.ModelMarc21, "abcde-fghjk", []byte(`{"metadata":{"x":1}}`)))

	row, err := s.GetDraft(ctx, records.ModelMarc21, "abcde-fghjk")
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{}}`, string(row.JSON))
}

func TestUpdateDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateDraft(ctx, records.ModelRDM, "abcde-fghjk", []byte(`{}`))
	assert.ErrorIs(t, err, storage.ErrNoRows)

	require.NoError(t, s.InsertDraft(ctx, records.ModelRDM, "abcde-fghjk", []byte(`{"metadata":{}}`)))
	require.NoError(t, s.UpdateDraft(ctx, records.ModelRDM, "abcde-fghjk", []byte(`{"metadata":{"title":"x"}}`)))

	row, err := s.GetDraft(ctx, records.ModelRDM, "abcde-fghjk")
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{"title":"x"}}`, string(row.JSON))
}

func TestSoftDeleteRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDraft(ctx, records.ModelRDM, "abcde-fghjk", []byte(`{"metadata":{}}`)))
	require.NoError(t, s.PromoteDraft(ctx, records.ModelRDM, "abcde-fghjk"))

	require.NoError(t, s.SoftDeleteRecord(ctx, records.ModelRDM, "abcde-fghjk"))

	// The row stays readable, marked deleted.
	row, err := s.GetRecord(ctx, records.ModelRDM, "abcde-fghjk")
	require.NoError(t, err)
	assert.True(t, row.IsDeleted)

	// Counts and listings exclude it.
	n, err := s.CountRecords(ctx, records.ModelRDM, records.TypeRecord)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Deleting twice matches nothing.
	err = s.SoftDeleteRecord(ctx, records.ModelRDM, "abcde-fghjk")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestListRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, pid := range []string{"aaaaa-aaaaa", "bbbbb-bbbbb", "ccccc-ccccc"} {
		require.NoError(t, s.InsertDraft(ctx, records.ModelLOM, pid, []byte(`{"metadata":{}}`)))
		require.NoError(t, s.PromoteDraft(ctx, records.ModelLOM, pid))
	}
	require.NoError(t, s.SoftDeleteRecord(ctx, records.ModelLOM, "bbbbb-bbbbb"))

	var pids []string
	err := s.ListRecords(ctx, records.ModelLOM, records.TypeRecord, func(pid string, doc []byte) error {
		pids = append(pids, pid)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"aaaaa-aaaaa", "ccccc-ccccc"}, pids)
}

func TestListRecordsStopsOnCallbackError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, pid := range []string{"aaaaa-aaaaa", "bbbbb-bbbbb"} {
		require.NoError(t, s.InsertDraft(ctx, records.ModelRDM, pid, []byte(`{"metadata":{}}`)))
		require.NoError(t, s.PromoteDraft(ctx, records.ModelRDM, pid))
	}

	calls := 0
	err := s.ListRecords(ctx, records.ModelRDM, records.TypeRecord, func(pid string, doc []byte) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestModelsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDraft(ctx, records.ModelRDM, "abcde-fghjk", []byte(`{"metadata":{}}`)))
	require.NoError(t, s.PromoteDraft(ctx, records.ModelRDM, "abcde-fghjk"))

	_, err := s.GetRecord(ctx, records.ModelMarc21, "abcde-fghjk")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, "admin@example.org", []byte("hash"), true))
	require.NoError(t, s.CreateUser(ctx, "reader@example.org", []byte("hash"), false))

	u, err := s.GetUserByEmail(ctx, "admin@example.org")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.org", u.Email)
	assert.True(t, u.Active)

	_, err = s.GetUserByEmail(ctx, "nobody@example.org")
	assert.ErrorIs(t, err, storage.ErrNoRows)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin@example.org", users[0].Email)
	assert.False(t, users[1].Active)
}

func TestRecordFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	row := &storage.FileRow{
		PID:       "abcde-fghjk",
		Filename:  "thesis.pdf",
		ObjectKey: "records/abcde-fghjk/deadbeef",
		Size:      1234,
		Checksum:  "sha256:abc",
	}
	require.NoError(t, s.InsertFile(ctx, row))

	got, err := s.GetFile(ctx, "abcde-fghjk", "thesis.pdf")
	require.NoError(t, err)
	assert.Equal(t, row, got)

	// Duplicate filenames on the same record are rejected.
	err = s.InsertFile(ctx, row)
	assert.Error(t, err)

	files, err := s.ListFiles(ctx, "abcde-fghjk")
	require.NoError(t, err)
	assert.Len(t, files, 1)

	require.NoError(t, s.DeleteFile(ctx, "abcde-fghjk", "thesis.pdf"))
	err = s.DeleteFile(ctx, "abcde-fghjk", "thesis.pdf")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRole(ctx, "curator"))

	ok, err := s.RoleExists(ctx, "curator")
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := s.ListRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "curator"}, names)
}
