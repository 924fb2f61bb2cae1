// Package merge combines multiple extracted field sets into one result with
// conflict reporting. It is used both to reconcile the outputs of several
// extraction strategies over one document and as a building block for
// cross-source fusion.
package merge

import (
	"go.uber.org/zap"

	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/textcmp"
)

// Policy selects how disagreeing scalar values are resolved.
type Policy string

const (
	PolicyFirstWins    Policy = "first_wins"
	PolicyLastWins     Policy = "last_wins"
	PolicyLongestWins  Policy = "longest_wins"
	PolicyMostComplete Policy = "most_complete"
	// PolicyFuzzy keeps the longest variant when all values are fuzzy-equal.
	// It only applies to name-like fields; others fall back to first-wins.
	PolicyFuzzy Policy = "fuzzy"
)

// Merger merges extracted field sets under a field registry.
type Merger struct {
	registry       *model.FieldRegistry
	fuzzyThreshold float64
}

// New creates a Merger. fuzzyThreshold <= 0 uses the comparator default.
func New(registry *model.FieldRegistry, fuzzyThreshold float64) *Merger {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = textcmp.DefaultPhraseThreshold
	}
	return &Merger{registry: registry, fuzzyThreshold: fuzzyThreshold}
}

// Merge combines an ordered list of field sets. Nil entries are skipped.
// Never returns nil: an all-nil input yields an empty result with
// SourceCount 0.
func (m *Merger) Merge(sets []*model.ExtractedFields, policy Policy) *model.MergeResult {
	result := &model.MergeResult{MergedFields: model.NewExtractedFields()}

	var live []*model.ExtractedFields
	for _, s := range sets {
		if s != nil {
			live = append(live, s)
		}
	}
	result.SourceCount = len(live)
	if len(live) == 0 {
		return result
	}

	for _, name := range unionFieldNames(live) {
		var values []sourcedValue
		for _, s := range live {
			if v, ok := s.Get(name); ok {
				values = append(values, sourcedValue{value: v, set: s})
			}
		}
		if len(values) == 0 {
			continue
		}

		// Distinct values, first occurrence order.
		distinct := values[:1]
		for _, v := range values[1:] {
			dup := false
			for _, d := range distinct {
				if textcmp.EqualValues(v.value, d.value) {
					dup = true
					break
				}
			}
			if !dup {
				distinct = append(distinct, v)
			}
		}

		if len(distinct) == 1 {
			result.MergedFields.Set(name, distinct[0].value)
			result.MergedFieldNames = append(result.MergedFieldNames, name)
			continue
		}

		winner := m.resolve(name, distinct[0].value, values, policy)
		raw := make([]string, len(distinct))
		for i, d := range distinct {
			raw[i] = d.value
		}
		result.MergedFields.Set(name, winner)
		result.MergedFieldNames = append(result.MergedFieldNames, name)
		result.Conflicts = append(result.Conflicts, model.FieldConflict{
			FieldName:  name,
			Values:     raw,
			Resolved:   winner,
			Resolution: string(policy),
		})
		zap.L().Debug("merge: conflict resolved",
			zap.String("field", name),
			zap.Strings("values", raw),
			zap.String("winner", winner),
			zap.String("policy", string(policy)),
		)
	}

	mergeLists(result.MergedFields, live)
	return result
}

// MergePair merges two field sets preferring primary when present; secondary
// only fills gaps. Either argument may be nil.
func (m *Merger) MergePair(primary, secondary *model.ExtractedFields) *model.MergeResult {
	return m.Merge([]*model.ExtractedFields{primary, secondary}, PolicyFirstWins)
}

// sourcedValue pairs a field value with the set it came from.
type sourcedValue struct {
	value string
	set   *model.ExtractedFields
}

func (m *Merger) resolve(name, first string, values []sourcedValue, policy Policy) string {
	switch policy {
	case PolicyLastWins:
		return values[len(values)-1].value

	case PolicyLongestWins:
		winner := first
		for _, v := range values {
			if len(v.value) > len(winner) {
				winner = v.value
			}
		}
		return winner

	case PolicyMostComplete:
		winner := values[0]
		for _, v := range values[1:] {
			if v.set.Count() > winner.set.Count() {
				winner = v
			}
		}
		return winner.value

	case PolicyFuzzy:
		if m.registry != nil && m.registry.IsNameLike(name) {
			allClose := true
			for _, v := range values[1:] {
				if textcmp.Similarity(values[0].value, v.value) < m.fuzzyThreshold {
					allClose = false
					break
				}
			}
			if allClose {
				winner := first
				for _, v := range values {
					if len(v.value) > len(winner) {
						winner = v.value
					}
				}
				return winner
			}
		}
		return first

	default: // PolicyFirstWins
		return first
	}
}

// unionFieldNames returns every populated field name across the sets,
// first-seen order, deduplicated. Deterministic for a given input order.
func unionFieldNames(sets []*model.ExtractedFields) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range sets {
		for _, n := range s.FieldNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

// mergeLists unions list-valued fields (montos, fechas) with deduplication.
func mergeLists(dst *model.ExtractedFields, sets []*model.ExtractedFields) {
	seenMonto := make(map[string]bool)
	seenFecha := make(map[string]bool)
	for _, s := range sets {
		for _, mo := range s.Montos {
			key, ok := textcmp.NormalizeAmount(mo.Raw)
			if !ok {
				key = textcmp.Normalize(mo.Raw)
			}
			if key == "" || seenMonto[key] {
				continue
			}
			seenMonto[key] = true
			dst.Montos = append(dst.Montos, mo)
		}
		for _, fe := range s.Fechas {
			key := textcmp.Normalize(fe)
			if key == "" || seenFecha[key] {
				continue
			}
			seenFecha[key] = true
			dst.Fechas = append(dst.Fechas, fe)
		}
	}
}
