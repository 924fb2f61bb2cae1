// Package extract pulls structured fields out of semi-structured document
// text using a fixed set of independent strategies, coordinated by an
// adaptive orchestrator. Strategies are stateless and safe to share across
// concurrent extractions.
package extract

import (
	"context"

	"github.com/regtechmx/expediente-engine/internal/model"
)

// Document is one source document handed to the strategies.
type Document struct {
	Text   string
	Source model.SourceKind
	// Known carries already-available fields from other sources. Only the
	// complement strategy reads it.
	Known *model.ExtractedFields
}

// Strategy is one extraction technique. CanHandle is a cheap pre-check,
// Confidence scores applicability in [0, 100]. Extract returns nil when the
// strategy legitimately finds nothing; absence is explicit, never an empty
// placeholder.
type Strategy interface {
	Name() string
	// Priority breaks confidence ties; lower wins. Fixed per strategy so
	// aggregation never depends on completion order.
	Priority() int
	CanHandle(text string) bool
	Confidence(text string) int
	Extract(ctx context.Context, doc Document) (*model.ExtractedFields, error)
}
