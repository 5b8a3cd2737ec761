// Package service implements the record service backend over a storage.Store
// and an object store. One instance serves one data model; the registry maps
// model names to instances.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"repoctl/internal/identity"
	"repoctl/internal/logging"
	"repoctl/internal/objstore"
	"repoctl/internal/records"
	"repoctl/internal/storage"
)

type RecordService struct {
	model   records.DataModel
	store   storage.Store
	objects objstore.ObjectStore
	logger  logging.Logger
}

func NewRecordService(model records.DataModel, store storage.Store, objects objstore.ObjectStore, logger logging.Logger) *RecordService {
	return &RecordService{
		model:   model,
		store:   store,
		objects: objects,
		logger:  logger,
	}
}

func (s *RecordService) requireRead(ident identity.Identity) error {
	if !ident.Has(identity.AnyUser) && !ident.Has(identity.SystemProcess) {
		return records.ErrForbidden
	}
	return nil
}

func (s *RecordService) requireWrite(ident identity.Identity) error {
	if !ident.Has(identity.SystemProcess) {
		return records.ErrForbidden
	}
	return nil
}

// validate rejects documents without a metadata object. The commands never
// produce such documents themselves; this catches malformed operator input.
func validate(data records.Document) error {
	if _, ok := data["metadata"].(map[string]any); !ok {
		return fmt.Errorf("%w: missing metadata", records.ErrInvalid)
	}
	return nil
}

func decode(raw []byte) (records.Document, error) {
	var doc records.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding stored document: %w", err)
	}
	return doc, nil
}

func (s *RecordService) Read(ctx context.Context, pid string, ident identity.Identity) (records.Document, error) {
	if err := s.requireRead(ident); err != nil {
		return nil, err
	}

	row, err := s.store.GetRecord(ctx, s.model, pid)
	if errors.Is(err, storage.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if row.IsDeleted {
		return nil, records.ErrDeleted
	}
	return decode(row.JSON)
}

func (s *RecordService) ReadDraft(ctx context.Context, pid string, ident identity.Identity) (records.Document, error) {
	if err := s.requireRead(ident); err != nil {
		return nil, err
	}

	row, err := s.store.GetDraft(ctx, s.model, pid)
	if errors.Is(err, storage.ErrNoRows) {
		return nil, records.ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(row.JSON)
}

func (s *RecordService) Create(ctx context.Context, ident identity.Identity, data records.Document) (string, error) {
	if err := s.requireWrite(ident); err != nil {
		return "", err
	}
	if err := validate(data); err != nil {
		return "", err
	}

	pid := records.NewPID()
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	if err := s.store.InsertDraft(ctx, s.model, pid, raw); err != nil {
		return "", err
	}

	s.logger.Info(ctx, "draft created", "model", string(s.model), "pid", pid)
	return pid, nil
}

func (s *RecordService) Edit(ctx context.Context, pid string, ident identity.Identity) error {
	if err := s.requireWrite(ident); err != nil {
		return err
	}

	// An already-open draft stays untouched.
	if _, err := s.store.GetDraft(ctx, s.model, pid); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNoRows) {
		return err
	}

	row, err := s.store.GetRecord(ctx, s.model, pid)
	if errors.Is(err, storage.ErrNoRows) {
		return records.ErrNotFound
	}
	if err != nil {
		return err
	}
	if row.IsDeleted {
		return records.ErrDeleted
	}

	return s.store.InsertDraft(ctx, s.model, pid, row.JSON)
}

func (s *RecordService) UpdateDraft(ctx context.Context, pid string, ident identity.Identity, data records.Document) error {
	if err := s.requireWrite(ident); err != nil {
		return err
	}
	if err := validate(data); err != nil {
		return err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	err = s.store.UpdateDraft(ctx, s.model, pid, raw)
	if errors.Is(err, storage.ErrNoRows) {
		return records.ErrDraftNotFound
	}
	return err
}

func (s *RecordService) Publish(ctx context.Context, pid string, ident identity.Identity) error {
	if err := s.requireWrite(ident); err != nil {
		return err
	}

	// The draft must hold a publishable document before it is promoted.
	row, err := s.store.GetDraft(ctx, s.model, pid)
	if errors.Is(err, storage.ErrNoRows) {
		return records.ErrDraftNotFound
	}
	if err != nil {
		return err
	}
	doc, err := decode(row.JSON)
	if err != nil {
		return err
	}
	if err := validate(doc); err != nil {
		return err
	}

	err = s.store.PromoteDraft(ctx, s.model, pid)
	if errors.Is(err, storage.ErrNoRows) {
		return records.ErrDraftNotFound
	}
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "record published", "model", string(s.model), "pid", pid)
	return nil
}

func (s *RecordService) Delete(ctx context.Context, pid string, ident identity.Identity) error {
	if err := s.requireWrite(ident); err != nil {
		return err
	}

	row, err := s.store.GetRecord(ctx, s.model, pid)
	if errors.Is(err, storage.ErrNoRows) {
		return records.ErrNotFound
	}
	if err != nil {
		return err
	}
	if row.IsDeleted {
		return records.ErrDeleted
	}

	if err := s.store.SoftDeleteRecord(ctx, s.model, pid); err != nil {
		return err
	}

	s.logger.Info(ctx, "record soft-deleted", "model", string(s.model), "pid", pid)
	return nil
}

func (s *RecordService) DeleteDraft(ctx context.Context, pid string, ident identity.Identity) error {
	if err := s.requireWrite(ident); err != nil {
		return err
	}

	err := s.store.DeleteDraft(ctx, s.model, pid)
	if errors.Is(err, storage.ErrNoRows) {
		return records.ErrDraftNotFound
	}
	return err
}

func (s *RecordService) Count(ctx context.Context, ident identity.Identity, typ records.RecordType) (int, error) {
	if err := s.requireRead(ident); err != nil {
		return 0, err
	}
	return s.store.CountRecords(ctx, s.model, typ)
}

func (s *RecordService) List(ctx context.Context, ident identity.Identity, typ records.RecordType, fn func(pid string, doc records.Document) error) error {
	if err := s.requireRead(ident); err != nil {
		return err
	}

	return s.store.ListRecords(ctx, s.model, typ, func(pid string, raw []byte) error {
		doc, err := decode(raw)
		if err != nil {
			return err
		}
		return fn(pid, doc)
	})
}

func (s *RecordService) Files(ctx context.Context, pid string, ident identity.Identity) ([]records.File, error) {
	if err := s.requireRead(ident); err != nil {
		return nil, err
	}

	// Resolving the record first distinguishes missing records from records
	// without attachments.
	if _, err := s.Read(ctx, pid, ident); err != nil {
		return nil, err
	}

	rows, err := s.store.ListFiles(ctx, pid)
	if err != nil {
		return nil, err
	}
	files := make([]records.File, 0, len(rows))
	for _, row := range rows {
		files = append(files, records.File{
			Filename: row.Filename,
			Key:      row.ObjectKey,
			Size:     row.Size,
			Checksum: row.Checksum,
		})
	}
	return files, nil
}

func (s *RecordService) AddFile(ctx context.Context, pid string, ident identity.Identity, filename string, r io.Reader, enable bool) error {
	if err := s.requireWrite(ident); err != nil {
		return err
	}

	doc, err := s.Read(ctx, pid, ident)
	if err != nil {
		return err
	}

	if !doc.FilesEnabled() && !enable {
		return fmt.Errorf("%w: record %s is metadata-only", records.ErrInvalid, pid)
	}

	if _, err := s.store.GetFile(ctx, pid, filename); err == nil {
		return records.ErrFileExists
	} else if !errors.Is(err, storage.ErrNoRows) {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading file content: %w", err)
	}
	sum := sha256.Sum256(data)

	key := fmt.Sprintf("records/%s/%s", pid, uuid.New())
	if err := s.objects.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("storing file content: %w", err)
	}

	err = s.store.InsertFile(ctx, &storage.FileRow{
		PID:       pid,
		Filename:  filename,
		ObjectKey: key,
		Size:      int64(len(data)),
		Checksum:  "sha256:" + hex.EncodeToString(sum[:]),
	})
	if err != nil {
		// Orphaned payloads are worse than a retried upload.
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return err
	}

	if enable && !doc.FilesEnabled() {
		updated := doc.Clone()
		updated.SetFilesEnabled(true)
		raw, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}
		if err := s.store.UpdateRecordJSON(ctx, s.model, pid, raw); err != nil {
			return err
		}
	}

	s.logger.Info(ctx, "file added", "model", string(s.model), "pid", pid, "filename", filename)
	return nil
}

func (s *RecordService) DeleteFile(ctx context.Context, pid string, ident identity.Identity, filename string) error {
	if err := s.requireWrite(ident); err != nil {
		return err
	}

	if _, err := s.Read(ctx, pid, ident); err != nil {
		return err
	}

	row, err := s.store.GetFile(ctx, pid, filename)
	if errors.Is(err, storage.ErrNoRows) {
		return records.ErrFileNotFound
	}
	if err != nil {
		return err
	}

	if err := s.objects.Delete(ctx, row.ObjectKey); err != nil {
		return fmt.Errorf("deleting file content: %w", err)
	}
	if err := s.store.DeleteFile(ctx, pid, filename); err != nil {
		return err
	}

	s.logger.Info(ctx, "file deleted", "model", string(s.model), "pid", pid, "filename", filename)
	return nil
}
