package domain

import (
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeMarkdown   ContentType = "markdown"
	ContentTypePDF        ContentType = "pdf"
	ContentTypeTranscript ContentType = "transcript"
	ContentTypeCode       ContentType = "code"
)

func ValidContentType(t string) bool {
	switch ContentType(t) {
	case ContentTypeText, ContentTypeMarkdown, ContentTypePDF, ContentTypeTranscript, ContentTypeCode:
		return true
	}
	return false
}

type SourceKind string

const (
	SourceKindUser      SourceKind = "user"
	SourceKindFile      SourceKind = "file"
	SourceKindURL       SourceKind = "url"
	SourceKindClipboard SourceKind = "clipboard"
)

type TrustLabel string

const (
	TrustUser    TrustLabel = "user"
	TrustTrusted TrustLabel = "trusted"
	TrustUnknown TrustLabel = "unknown"
)

func ValidTrustLabel(l string) bool {
	switch TrustLabel(l) {
	case TrustUser, TrustTrusted, TrustUnknown:
		return true
	}
	return false
}

// Source records where a note came from and how much it is trusted.
// The trust label is only mutated through the audited trust-update operation.
type Source struct {
	ID         uuid.UUID  `json:"id"`
	Kind       SourceKind `json:"kind"`
	Locator    string     `json:"locator"`
	TrustLabel TrustLabel `json:"trust_label"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Note is an immutable evidence unit. Once created it is never edited or
// deleted; archival happens by reference removal only.
type Note struct {
	ID          uuid.UUID   `json:"id"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
	SourceID    uuid.UUID   `json:"source_id"`
	Tags        []string    `json:"tags"`
	Entities    []string    `json:"entities"`
	ContentHash string      `json:"content_hash"`
	CreatedAt   time.Time   `json:"created_at"`
}
