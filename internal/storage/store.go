// Package storage defines the persistence surface behind the record service:
// per-data-model record and draft tables, plus the shared users, roles and
// record_files tables. Two implementations exist, Postgres (production) and
// SQLite (local use and tests).
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repoctl/internal/records"
)

// ErrNoRows is returned when a lookup matches nothing. The service layer
// maps it to the domain sentinels.
var ErrNoRows = errors.New("no matching rows")

// RecordRow is one published record as stored.
type RecordRow struct {
	PID       string
	JSON      []byte
	Version   int
	IsDeleted bool
}

// DraftRow is one open draft as stored. At most one exists per PID.
type DraftRow struct {
	PID  string
	JSON []byte
}

// FileRow is one attachment's metadata; the bytes live in object storage
// under ObjectKey.
type FileRow struct {
	PID       string
	Filename  string
	ObjectKey string
	Size      int64
	Checksum  string
}

// UserRow is one registered user.
type UserRow struct {
	ID           int64
	Email        string
	PasswordHash []byte
	Active       bool
	ConfirmedAt  *time.Time
}

// Store is the persistence interface shared by both dialects.
type Store interface {
	GetRecord(ctx context.Context, model records.DataModel, pid string) (*RecordRow, error)
	GetDraft(ctx context.Context, model records.DataModel, pid string) (*DraftRow, error)
	InsertDraft(ctx context.Context, model records.DataModel, pid string, doc []byte) error
	UpdateDraft(ctx context.Context, model records.DataModel, pid string, doc []byte) error

	// PromoteDraft atomically replaces the published document with the open
	// draft's contents, bumps the version and removes the draft. ErrNoRows
	// when no draft is open.
	PromoteDraft(ctx context.Context, model records.DataModel, pid string) error

	SoftDeleteRecord(ctx context.Context, model records.DataModel, pid string) error
	DeleteDraft(ctx context.Context, model records.DataModel, pid string) error

	// UpdateRecordJSON rewrites the published document in place, without the
	// draft cycle. Used for file-section commits only.
	UpdateRecordJSON(ctx context.Context, model records.DataModel, pid string, doc []byte) error

	CountRecords(ctx context.Context, model records.DataModel, typ records.RecordType) (int, error)
	ListRecords(ctx context.Context, model records.DataModel, typ records.RecordType, fn func(pid string, doc []byte) error) error

	RoleExists(ctx context.Context, name string) (bool, error)
	CreateRole(ctx context.Context, name string) error
	ListRoles(ctx context.Context) ([]string, error)

	ListUsers(ctx context.Context) ([]UserRow, error)
	CreateUser(ctx context.Context, email string, passwordHash []byte, active bool) error
	GetUserByEmail(ctx context.Context, email string) (*UserRow, error)

	ListFiles(ctx context.Context, pid string) ([]FileRow, error)
	GetFile(ctx context.Context, pid, filename string) (*FileRow, error)
	InsertFile(ctx context.Context, row *FileRow) error
	DeleteFile(ctx context.Context, pid, filename string) error

	Close() error
}

// RecordTable returns the table holding records or drafts for model. Table
// names are assembled from this whitelist only.
func RecordTable(model records.DataModel, typ records.RecordType) (string, error) {
	switch model {
	case records.ModelRDM, records.ModelMarc21, records.ModelLOM:
	default:
		return "", fmt.Errorf("unknown data model %q", model)
	}
	switch typ {
	case records.TypeRecord:
		return string(model) + "_records", nil
	case records.TypeDraft:
		return string(model) + "_drafts", nil
	default:
		return "", fmt.Errorf("unknown record type %q", typ)
	}
}
