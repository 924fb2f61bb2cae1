package extract

import (
	"context"

	"github.com/regtechmx/expediente-engine/internal/model"
)

// complementStrategy contributes only fields that are absent from the
// already-available set in Document.Known. Finding nothing new is an
// expected outcome, not a failure: the other sources simply covered the
// document well.
type complementStrategy struct {
	inner []Strategy
}

// NewComplementStrategy returns the gap-filling strategy. It reuses the
// pattern and contextual techniques internally and filters their output
// down to currently-missing fields.
func NewComplementStrategy() Strategy {
	return complementStrategy{inner: []Strategy{NewPatternStrategy(), NewContextualStrategy()}}
}

func (complementStrategy) Name() string  { return "complement" }
func (complementStrategy) Priority() int { return 4 }

func (s complementStrategy) CanHandle(text string) bool {
	for _, in := range s.inner {
		if in.CanHandle(text) {
			return true
		}
	}
	return false
}

// Confidence is deliberately modest: complement is a second-pass technique
// that should lose ties against the primary strategies.
func (s complementStrategy) Confidence(text string) int {
	best := 0
	for _, in := range s.inner {
		if c := in.Confidence(text); c > best {
			best = c
		}
	}
	if best == 0 {
		return 0
	}
	return best / 2
}

func (s complementStrategy) Extract(ctx context.Context, doc Document) (*model.ExtractedFields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := model.NewExtractedFields()
	for _, in := range s.inner {
		if !in.CanHandle(doc.Text) {
			continue
		}
		found, err := in.Extract(ctx, doc)
		if err != nil {
			return nil, err
		}
		if found == nil {
			continue
		}
		for _, name := range found.FieldNames() {
			if _, known := doc.Known.Get(name); known {
				continue
			}
			if _, taken := out.Get(name); taken {
				continue
			}
			v, _ := found.Get(name)
			out.Set(name, v)
		}
		if len(out.Montos) == 0 && (doc.Known == nil || len(doc.Known.Montos) == 0) {
			out.Montos = found.Montos
		}
		if len(out.Fechas) == 0 && (doc.Known == nil || len(doc.Known.Fechas) == 0) {
			out.Fechas = found.Fechas
		}
	}

	if out.IsEmpty() {
		return nil, nil
	}
	return out, nil
}
