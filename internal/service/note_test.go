package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/store"
)

func newNoteService(t *testing.T) (*NoteService, domain.Stores) {
	t.Helper()
	stores := store.NewMemory()
	return NewNoteService(stores.Notes, stores.Audit, stores.Signals, zap.NewNop()), stores
}

func TestNoteCreate_Validation(t *testing.T) {
	svc, _ := newNoteService(t)
	ctx := context.Background()

	if err := svc.Create(ctx, &domain.Note{}); !errors.Is(err, ErrNoteContentEmpty) {
		t.Errorf("empty content: err = %v, want ErrNoteContentEmpty", err)
	}
	err := svc.Create(ctx, &domain.Note{Content: "x", ContentType: "spreadsheet"})
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("bad content type: err = %v, want ErrInvalidContentType", err)
	}
	err = svc.Create(ctx, &domain.Note{Content: "x", SourceID: uuid.New()})
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("unknown source: err = %v, want ErrSourceNotFound", err)
	}
}

func TestNoteCreate_DefaultsAndAudit(t *testing.T) {
	svc, stores := newNoteService(t)
	ctx := context.Background()

	n := &domain.Note{Content: "observation"}
	if err := svc.Create(ctx, n); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ContentType != domain.ContentTypeText {
		t.Errorf("content type = %s, want text default", n.ContentType)
	}

	entries, err := stores.Audit.ListByEntity(ctx, n.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "created" {
		t.Errorf("audit entries = %+v, want one created entry", entries)
	}
}

func TestUpdateSourceTrust(t *testing.T) {
	svc, stores := newNoteService(t)
	ctx := context.Background()

	src := &domain.Source{Kind: domain.SourceKindURL, TrustLabel: domain.TrustUnknown}
	if err := svc.CreateSource(ctx, src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	if err := svc.UpdateSourceTrust(ctx, src.ID, "questionable"); !errors.Is(err, ErrInvalidTrustLabel) {
		t.Errorf("bad label: err = %v, want ErrInvalidTrustLabel", err)
	}
	if err := svc.UpdateSourceTrust(ctx, uuid.New(), domain.TrustTrusted); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("unknown source: err = %v, want ErrSourceNotFound", err)
	}

	if err := svc.UpdateSourceTrust(ctx, src.ID, domain.TrustTrusted); err != nil {
		t.Fatalf("UpdateSourceTrust: %v", err)
	}
	got, err := svc.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if got.TrustLabel != domain.TrustTrusted {
		t.Errorf("label = %s, want trusted", got.TrustLabel)
	}

	pending, err := stores.Signals.ListPending(ctx, []string{domain.SignalSourceTrustUpdated}, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("trust signals = %d, want 1", len(pending))
	}
	if got := pending[0].PayloadString("new_label"); got != string(domain.TrustTrusted) {
		t.Errorf("new_label = %s, want trusted", got)
	}

	// Re-applying the same label is a no-op: no second signal.
	if err := svc.UpdateSourceTrust(ctx, src.ID, domain.TrustTrusted); err != nil {
		t.Fatalf("idempotent relabel: %v", err)
	}
	pending, _ = stores.Signals.ListPending(ctx, []string{domain.SignalSourceTrustUpdated}, 10)
	if len(pending) != 1 {
		t.Errorf("trust signals after no-op = %d, want 1", len(pending))
	}
}
