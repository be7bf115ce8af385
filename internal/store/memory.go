package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenetdb/tenet/internal/domain"
)

// memDB holds everything behind one lock. Insertion order is tracked
// explicitly so listings stay deterministic even when timestamps collide.
type memDB struct {
	mu sync.RWMutex

	notes       map[uuid.UUID]domain.Note
	noteOrder   []uuid.UUID
	sources     map[uuid.UUID]domain.Source
	beliefs     map[uuid.UUID]domain.Belief
	beliefOrder []uuid.UUID
	edges       map[uuid.UUID]domain.Edge
	edgeOrder   []uuid.UUID
	signals     map[uuid.UUID]domain.Signal
	signalOrder []uuid.UUID
	audit       []domain.AuditEntry
}

// NewMemory builds the ephemeral in-process backend. It backs tests and the
// throwaway mode of the CLI; nothing survives process exit.
func NewMemory() domain.Stores {
	db := &memDB{
		notes:   make(map[uuid.UUID]domain.Note),
		sources: make(map[uuid.UUID]domain.Source),
		beliefs: make(map[uuid.UUID]domain.Belief),
		edges:   make(map[uuid.UUID]domain.Edge),
		signals: make(map[uuid.UUID]domain.Signal),
	}
	return domain.Stores{
		Notes:   &memNoteStore{db: db},
		Beliefs: &memBeliefStore{db: db},
		Edges:   &memEdgeStore{db: db},
		Signals: &memSignalStore{db: db},
		Audit:   &memAuditStore{db: db},
	}
}

func cloneNote(n domain.Note) domain.Note {
	n.Tags = slices.Clone(n.Tags)
	n.Entities = slices.Clone(n.Entities)
	return n
}

func cloneBelief(b domain.Belief) domain.Belief {
	b.Scope = maps.Clone(b.Scope)
	b.Embedding = slices.Clone(b.Embedding)
	return b
}

func cloneSignal(s domain.Signal) domain.Signal {
	s.Payload = maps.Clone(s.Payload)
	if s.ProcessedAt != nil {
		t := *s.ProcessedAt
		s.ProcessedAt = &t
	}
	if s.DeadLetteredAt != nil {
		t := *s.DeadLetteredAt
		s.DeadLetteredAt = &t
	}
	return s
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type memNoteStore struct {
	db *memDB
}

var _ domain.NoteStore = (*memNoteStore)(nil)

func (s *memNoteStore) CreateNote(_ context.Context, n *domain.Note) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.db.notes[n.ID] = cloneNote(*n)
	s.db.noteOrder = append(s.db.noteOrder, n.ID)
	return nil
}

func (s *memNoteStore) GetNote(_ context.Context, id uuid.UUID) (*domain.Note, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n, ok := s.db.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	n = cloneNote(n)
	return &n, nil
}

func (s *memNoteStore) ListNotes(_ context.Context, f domain.NoteFilter) ([]domain.Note, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Note
	for _, id := range s.db.noteOrder {
		n := s.db.notes[id]
		if f.Tag != "" && !slices.Contains(n.Tags, f.Tag) {
			continue
		}
		if f.Entity != "" && !slices.Contains(n.Entities, f.Entity) {
			continue
		}
		if f.SourceID != uuid.Nil && n.SourceID != f.SourceID {
			continue
		}
		out = append(out, cloneNote(n))
	}
	return paginate(out, f.Limit, f.Offset), nil
}

func (s *memNoteStore) CountNotes(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.db.notes), nil
}

func (s *memNoteStore) CreateSource(_ context.Context, src *domain.Source) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	if src.CapturedAt.IsZero() {
		src.CapturedAt = time.Now().UTC()
	}
	if src.TrustLabel == "" {
		src.TrustLabel = domain.TrustUnknown
	}
	s.db.sources[src.ID] = *src
	return nil
}

func (s *memNoteStore) GetSource(_ context.Context, id uuid.UUID) (*domain.Source, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	src, ok := s.db.sources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &src, nil
}

func (s *memNoteStore) UpdateSourceTrust(_ context.Context, id uuid.UUID, label domain.TrustLabel) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	src, ok := s.db.sources[id]
	if !ok {
		return ErrNotFound
	}
	src.TrustLabel = label
	s.db.sources[id] = src
	return nil
}

type memBeliefStore struct {
	db *memDB
}

var _ domain.BeliefStore = (*memBeliefStore)(nil)

func (s *memBeliefStore) Create(_ context.Context, b *domain.Belief) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	if b.DecayModel == "" {
		b.DecayModel = domain.DecayExponential
	}
	s.db.beliefs[b.ID] = cloneBelief(*b)
	s.db.beliefOrder = append(s.db.beliefOrder, b.ID)
	return nil
}

func (s *memBeliefStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Belief, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	b, ok := s.db.beliefs[id]
	if !ok {
		return nil, ErrNotFound
	}
	b = cloneBelief(b)
	return &b, nil
}

func (s *memBeliefStore) List(_ context.Context, f domain.BeliefFilter) ([]domain.Belief, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Belief
	for _, id := range s.db.beliefOrder {
		b := s.db.beliefs[id]
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		out = append(out, cloneBelief(b))
	}
	return paginate(out, f.Limit, f.Offset), nil
}

func (s *memBeliefStore) CountByStatus(_ context.Context, status domain.BeliefStatus) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n := 0
	for _, b := range s.db.beliefs {
		if b.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *memBeliefStore) UpdateStatusAndConfidence(_ context.Context, id uuid.UUID, status domain.BeliefStatus, confidence float64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.beliefs[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	b.Confidence = confidence
	b.UpdatedAt = time.Now().UTC()
	s.db.beliefs[id] = b
	return nil
}

// UpdateConfidence leaves UpdatedAt alone so the decay clock keeps running
// from the last meaningful change.
func (s *memBeliefStore) UpdateConfidence(_ context.Context, id uuid.UUID, confidence float64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.beliefs[id]
	if !ok {
		return ErrNotFound
	}
	b.Confidence = confidence
	s.db.beliefs[id] = b
	return nil
}

func (s *memBeliefStore) UpdateEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.beliefs[id]
	if !ok {
		return ErrNotFound
	}
	b.Embedding = slices.Clone(embedding)
	s.db.beliefs[id] = b
	return nil
}

type memEdgeStore struct {
	db *memDB
}

var _ domain.EdgeStore = (*memEdgeStore)(nil)

func edgeKeyMatch(e *domain.Edge, o *domain.Edge) bool {
	return e.FromType == o.FromType && e.FromID == o.FromID &&
		e.RelType == o.RelType && e.ToType == o.ToType && e.ToID == o.ToID
}

func (s *memEdgeStore) Create(_ context.Context, e *domain.Edge) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, id := range s.db.edgeOrder {
		existing := s.db.edges[id]
		if edgeKeyMatch(e, &existing) {
			return nil
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.db.edges[e.ID] = *e
	s.db.edgeOrder = append(s.db.edgeOrder, e.ID)
	return nil
}

func (s *memEdgeStore) Exists(_ context.Context, fromType domain.EntityType, fromID uuid.UUID, rel domain.RelType, toType domain.EntityType, toID uuid.UUID) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	probe := domain.Edge{FromType: fromType, FromID: fromID, RelType: rel, ToType: toType, ToID: toID}
	for _, e := range s.db.edges {
		if edgeKeyMatch(&probe, &e) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memEdgeStore) ListByEntity(_ context.Context, t domain.EntityType, id uuid.UUID, dir domain.EdgeDirection, rel *domain.RelType) ([]domain.Edge, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Edge
	for _, eid := range s.db.edgeOrder {
		e := s.db.edges[eid]
		from := e.FromType == t && e.FromID == id
		to := e.ToType == t && e.ToID == id
		switch dir {
		case domain.EdgeOutgoing:
			if !from {
				continue
			}
		case domain.EdgeIncoming:
			if !to {
				continue
			}
		default:
			if !from && !to {
				continue
			}
		}
		if rel != nil && e.RelType != *rel {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memEdgeStore) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.edges[id]; !ok {
		return ErrNotFound
	}
	delete(s.db.edges, id)
	s.db.edgeOrder = slices.DeleteFunc(s.db.edgeOrder, func(eid uuid.UUID) bool { return eid == id })
	return nil
}

type memSignalStore struct {
	db *memDB
}

var _ domain.SignalStore = (*memSignalStore)(nil)

func (s *memSignalStore) Create(_ context.Context, sig *domain.Signal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	s.db.signals[sig.ID] = cloneSignal(*sig)
	s.db.signalOrder = append(s.db.signalOrder, sig.ID)
	return nil
}

func (s *memSignalStore) ListPending(_ context.Context, types []string, limit int) ([]domain.Signal, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Signal
	for _, id := range s.db.signalOrder {
		sig := s.db.signals[id]
		if sig.ProcessedAt != nil || sig.DeadLetteredAt != nil {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, sig.Type) {
			continue
		}
		out = append(out, cloneSignal(sig))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memSignalStore) MarkProcessed(_ context.Context, id uuid.UUID, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sig, ok := s.db.signals[id]
	if !ok {
		return ErrNotFound
	}
	sig.ProcessedAt = &at
	s.db.signals[id] = sig
	return nil
}

func (s *memSignalStore) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sig, ok := s.db.signals[id]
	if !ok {
		return 0, ErrNotFound
	}
	sig.Attempts++
	s.db.signals[id] = sig
	return sig.Attempts, nil
}

func (s *memSignalStore) MarkDeadLettered(_ context.Context, id uuid.UUID, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sig, ok := s.db.signals[id]
	if !ok {
		return ErrNotFound
	}
	sig.DeadLetteredAt = &at
	s.db.signals[id] = sig
	return nil
}

func (s *memSignalStore) ListDeadLettered(_ context.Context, limit int) ([]domain.Signal, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Signal
	for _, id := range s.db.signalOrder {
		sig := s.db.signals[id]
		if sig.DeadLetteredAt == nil {
			continue
		}
		out = append(out, cloneSignal(sig))
	}
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memAuditStore struct {
	db *memDB
}

var _ domain.AuditStore = (*memAuditStore)(nil)

func (s *memAuditStore) Append(_ context.Context, e *domain.AuditEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	entry := *e
	entry.Before = maps.Clone(e.Before)
	entry.After = maps.Clone(e.After)
	s.db.audit = append(s.db.audit, entry)
	return nil
}

func (s *memAuditStore) ListByEntity(_ context.Context, entityID uuid.UUID, limit, offset int) ([]domain.AuditEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.AuditEntry
	for i := len(s.db.audit) - 1; i >= 0; i-- {
		if s.db.audit[i].EntityID == entityID {
			out = append(out, s.db.audit[i])
		}
	}
	return paginate(out, limit, offset), nil
}
