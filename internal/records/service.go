// Package records holds the record-service contract and the shared update
// protocol built on top of it: the existence probes and the
// edit-draft/mutate/publish-or-restore procedure every mutating command uses.
package records

import (
	"context"
	"errors"
	"io"

	"repoctl/internal/identity"
)

// Sentinel errors returned by Service implementations. Callers match them
// with errors.Is; the probes in this package rely on the distinction between
// not-found, soft-deleted and forbidden instead of a catch-all.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDeleted       = errors.New("record is deleted")
	ErrForbidden     = errors.New("operation not permitted")
	ErrDraftNotFound = errors.New("draft not found")
	ErrInvalid       = errors.New("invalid record data")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileExists    = errors.New("file already exists")
)

// DataModel selects which record schema/backend a command targets.
type DataModel string

const (
	ModelRDM    DataModel = "rdm"
	ModelMarc21 DataModel = "marc21"
	ModelLOM    DataModel = "lom"
)

// DataModels lists the known data models in CLI display order.
var DataModels = []DataModel{ModelRDM, ModelMarc21, ModelLOM}

// RecordType selects between published records and open drafts.
type RecordType string

const (
	TypeRecord RecordType = "record"
	TypeDraft  RecordType = "draft"
)

// File describes one binary attachment of a record.
type File struct {
	Filename string
	Key      string
	Size     int64
	Checksum string
}

// Service is the record-service surface this tool consumes. Implementations
// guarantee that Publish atomically replaces the published document with the
// draft's contents and that Delete is a soft delete.
type Service interface {
	// Read returns the published document, ErrNotFound, ErrDeleted or
	// ErrForbidden.
	Read(ctx context.Context, pid string, ident identity.Identity) (Document, error)

	// ReadDraft returns the open draft's document or ErrDraftNotFound.
	ReadDraft(ctx context.Context, pid string, ident identity.Identity) (Document, error)

	// Create opens a brand-new draft with the given document and returns its
	// freshly minted PID.
	Create(ctx context.Context, ident identity.Identity, data Document) (string, error)

	// Edit opens a draft for an existing published record, seeded with the
	// published document. Opening an already-open draft is a no-op.
	Edit(ctx context.Context, pid string, ident identity.Identity) error

	// UpdateDraft replaces the open draft's document.
	UpdateDraft(ctx context.Context, pid string, ident identity.Identity, data Document) error

	// Publish atomically promotes the open draft to the published document
	// and discards the draft.
	Publish(ctx context.Context, pid string, ident identity.Identity) error

	// Delete soft-deletes the published record.
	Delete(ctx context.Context, pid string, ident identity.Identity) error

	// DeleteDraft discards the open draft without touching the published
	// record.
	DeleteDraft(ctx context.Context, pid string, ident identity.Identity) error

	// Count returns the number of non-deleted records (or open drafts).
	Count(ctx context.Context, ident identity.Identity, typ RecordType) (int, error)

	// List streams non-deleted records (or open drafts) to fn in storage
	// order. A non-nil error from fn stops the iteration.
	List(ctx context.Context, ident identity.Identity, typ RecordType, fn func(pid string, doc Document) error) error

	// Files lists the record's binary attachments.
	Files(ctx context.Context, pid string, ident identity.Identity) ([]File, error)

	// AddFile stores a new attachment. enable turns on the files section of a
	// metadata-only record; without it, adding to such a record fails.
	AddFile(ctx context.Context, pid string, ident identity.Identity, filename string, r io.Reader, enable bool) error

	// DeleteFile removes an attachment, ErrFileNotFound if absent.
	DeleteFile(ctx context.Context, pid string, ident identity.Identity, filename string) error
}
