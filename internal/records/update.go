package records

import (
	"context"
	"errors"
	"fmt"

	"repoctl/internal/identity"
)

// ExistsRecord reports whether pid denotes a live, readable, non-deleted
// record. Not-found, soft-deleted and forbidden reads are all "false";
// anything else (a failing backend, say) is returned as an error rather than
// conflated with absence.
func ExistsRecord(ctx context.Context, svc Service, pid string, ident identity.Identity) (bool, error) {
	_, err := svc.Read(ctx, pid, ident)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDeleted), errors.Is(err, ErrForbidden):
		return false, nil
	default:
		return false, err
	}
}

// ExistsDraft reports whether an open draft exists for pid.
func ExistsDraft(ctx context.Context, svc Service, pid string, ident identity.Identity) (bool, error) {
	_, err := svc.ReadDraft(ctx, pid, ident)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrDraftNotFound), errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return false, nil
	default:
		return false, err
	}
}

// GetData returns the document of the published record, falling back to the
// open draft when no published version exists. ErrNotFound when neither does.
func GetData(ctx context.Context, svc Service, pid string, ident identity.Identity) (Document, error) {
	doc, err := svc.Read(ctx, pid, ident)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDeleted) {
		return nil, err
	}

	doc, draftErr := svc.ReadDraft(ctx, pid, ident)
	if draftErr != nil {
		if errors.Is(draftErr, ErrDraftNotFound) {
			return nil, fmt.Errorf("record (%s) does not exist: %w", pid, ErrNotFound)
		}
		return nil, draftErr
	}
	return doc, nil
}

// UpdateRecord replaces the published document of pid with newData,
// guaranteeing that on failure the previously published document (oldData)
// remains in effect.
//
// The backing service separates staging from committing (draft/publish), so a
// single-shot update synthesizes the commit: if no draft is in flight, a
// throwaway draft is opened and published; if the caller already had a draft
// open, only its contents are updated and publishing is left to them.
//
// Compensation applies only to failures after the draft is confirmed open: a
// failed Edit returns directly, a failed UpdateDraft/Publish triggers one
// best-effort rewrite of oldData into the draft. The original error is always
// returned; a failing compensating write is joined to it, never masking it.
func UpdateRecord(ctx context.Context, svc Service, pid string, ident identity.Identity, newData, oldData Document) error {
	hasDraft, err := ExistsDraft(ctx, svc, pid, ident)
	if err != nil {
		return err
	}

	doPublish := !hasDraft
	if doPublish {
		if err := svc.Edit(ctx, pid, ident); err != nil {
			return fmt.Errorf("opening draft for %q: %w", pid, err)
		}
	}

	if err := svc.UpdateDraft(ctx, pid, ident, newData); err != nil {
		return restoreDraft(ctx, svc, pid, ident, oldData, err)
	}

	if doPublish {
		if err := svc.Publish(ctx, pid, ident); err != nil {
			return restoreDraft(ctx, svc, pid, ident, oldData, err)
		}
	}

	return nil
}

// restoreDraft writes oldData back into the open draft after cause occurred.
func restoreDraft(ctx context.Context, svc Service, pid string, ident identity.Identity, oldData Document, cause error) error {
	if err := svc.UpdateDraft(ctx, pid, ident, oldData); err != nil {
		return errors.Join(cause, fmt.Errorf("restoring previous draft content for %q: %w", pid, err))
	}
	return cause
}
