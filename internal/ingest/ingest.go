package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/service"
)

var (
	tagPattern    = regexp.MustCompile(`#([\pL\pN_][\pL\pN_-]*)`)
	entityPattern = regexp.MustCompile(`@([\pL\pN_][\pL\pN_-]*)`)
)

// Input is one piece of raw evidence entering the system.
type Input struct {
	Content     string
	ContentType domain.ContentType

	// Either an existing source id or the fields to mint one.
	SourceID      uuid.UUID
	SourceKind    domain.SourceKind
	SourceLocator string
	TrustLabel    domain.TrustLabel
}

// Ingestor turns raw content into an immutable note plus the new_note signal
// that wakes the agents on the next tick. Tags (#word) and entities (@word)
// are extracted from the content itself.
type Ingestor struct {
	notes   *service.NoteService
	signals *service.SignalService
	logger  *zap.Logger
}

func New(notes *service.NoteService, signals *service.SignalService, logger *zap.Logger) *Ingestor {
	return &Ingestor{notes: notes, signals: signals, logger: logger}
}

func (i *Ingestor) Ingest(ctx context.Context, in Input) (*domain.Note, error) {
	sourceID := in.SourceID
	if sourceID == uuid.Nil {
		kind := in.SourceKind
		if kind == "" {
			kind = domain.SourceKindUser
		}
		src := &domain.Source{
			Kind:       kind,
			Locator:    in.SourceLocator,
			TrustLabel: in.TrustLabel,
		}
		if err := i.notes.CreateSource(ctx, src); err != nil {
			return nil, err
		}
		sourceID = src.ID
	}

	sum := sha256.Sum256([]byte(in.Content))
	note := &domain.Note{
		Content:     in.Content,
		ContentType: in.ContentType,
		SourceID:    sourceID,
		Tags:        Extract(tagPattern, in.Content),
		Entities:    Extract(entityPattern, in.Content),
		ContentHash: hex.EncodeToString(sum[:]),
	}
	if err := i.notes.Create(ctx, note); err != nil {
		return nil, err
	}

	err := i.signals.Emit(ctx, &domain.Signal{
		Type:    domain.SignalNewNote,
		Payload: map[string]any{"note_id": note.ID.String()},
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("note ingested",
		zap.String("note_id", note.ID.String()),
		zap.Strings("tags", note.Tags),
		zap.Strings("entities", note.Entities))
	return note, nil
}

// Extract pulls marker-prefixed words out of content, lowercased, deduplicated
// and sorted so the same content always yields the same grouping keys.
func Extract(pattern *regexp.Regexp, content string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range pattern.FindAllStringSubmatch(content, -1) {
		word := strings.ToLower(m[1])
		if seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}
