package store

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

func openTestSQLite(t *testing.T) domain.Stores {
	t.Helper()
	b, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "tenet.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b.Stores
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	stores := openTestSQLite(t)

	src := &domain.Source{Kind: domain.SourceKindFile, Locator: "notes/today.md"}
	if err := stores.Notes.CreateSource(ctx, src); err != nil {
		t.Fatalf("create source: %v", err)
	}

	n := &domain.Note{
		Content:     "deploys are failing on fridays #ops",
		ContentType: domain.ContentTypeMarkdown,
		SourceID:    src.ID,
		Tags:        []string{"ops"},
		Entities:    []string{},
		ContentHash: "h1",
	}
	if err := stores.Notes.CreateNote(ctx, n); err != nil {
		t.Fatalf("create note: %v", err)
	}

	got, err := stores.Notes.GetNote(ctx, n.ID)
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if got.Content != n.Content || got.SourceID != src.ID {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	tagged, err := stores.Notes.ListNotes(ctx, domain.NoteFilter{Tag: "ops"})
	if err != nil || len(tagged) != 1 {
		t.Fatalf("json tag filter: %v %d", err, len(tagged))
	}

	b := &domain.Belief{
		ClaimText:  "deploys fail on fridays",
		Status:     domain.BeliefProposed,
		Confidence: 0.7,
		Embedding:  []float32{0.1, 0.2, 0.3},
	}
	if err := stores.Beliefs.Create(ctx, b); err != nil {
		t.Fatalf("create belief: %v", err)
	}
	gotB, err := stores.Beliefs.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("get belief: %v", err)
	}
	if len(gotB.Embedding) != 3 {
		t.Fatalf("embedding not persisted: %v", gotB.Embedding)
	}

	e := &domain.Edge{
		FromType: domain.EntityNote, FromID: n.ID,
		RelType: domain.RelSupports,
		ToType:  domain.EntityBelief, ToID: b.ID,
	}
	if err := stores.Edges.Create(ctx, e); err != nil {
		t.Fatalf("create edge: %v", err)
	}
	if err := stores.Edges.Create(ctx, &domain.Edge{
		FromType: domain.EntityNote, FromID: n.ID,
		RelType: domain.RelSupports,
		ToType:  domain.EntityBelief, ToID: b.ID,
	}); err != nil {
		t.Fatalf("duplicate edge insert: %v", err)
	}
	edges, err := stores.Edges.ListByEntity(ctx, domain.EntityBelief, b.ID, domain.EdgeIncoming, nil)
	if err != nil || len(edges) != 1 {
		t.Fatalf("unique edge constraint: %v %d", err, len(edges))
	}
}

func TestSQLiteSignals(t *testing.T) {
	ctx := context.Background()
	stores := openTestSQLite(t)

	sig := &domain.Signal{Type: domain.SignalNewNote, Payload: map[string]any{"note_id": "x"}}
	if err := stores.Signals.Create(ctx, sig); err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, err := stores.Signals.ListPending(ctx, []string{domain.SignalNewNote}, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending: %v %d", err, len(pending))
	}
	if pending[0].Payload["note_id"] != "x" {
		t.Fatalf("payload lost: %v", pending[0].Payload)
	}

	n, err := stores.Signals.IncrementAttempts(ctx, sig.ID)
	if err != nil || n != 1 {
		t.Fatalf("attempts: %d %v", n, err)
	}
}
