package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/textcmp"
)

// tableStrategy reads row/column layouts: label and value in the same row,
// separated by pipes, tabs or wide space runs. OCR of tabular oficio
// annexes produces exactly this shape.
type tableStrategy struct{}

// NewTableStrategy returns the table-layout strategy.
func NewTableStrategy() Strategy { return tableStrategy{} }

var cellSeparator = regexp.MustCompile(`\s*\|\s*|\t+| {2,}`)

func (tableStrategy) Name() string  { return "table" }
func (tableStrategy) Priority() int { return 3 }

func (tableStrategy) CanHandle(text string) bool {
	return len(tableRows(text)) > 0
}

func (tableStrategy) Confidence(text string) int {
	rows := tableRows(text)
	if len(rows) == 0 {
		return 0
	}
	conf := 30 + len(rows)*10
	if conf > 90 {
		conf = 90
	}
	return conf
}

func (tableStrategy) Extract(ctx context.Context, doc Document) (*model.ExtractedFields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields := model.NewExtractedFields()
	for _, row := range tableRows(doc.Text) {
		key := matchLabelCell(row[0])
		if key == "" {
			continue
		}
		if v := cleanValue(row[1]); v != "" {
			setIfEmpty(fields, key, v)
		}
	}

	if fields.Count() == 0 {
		return nil, nil
	}
	extractIdentifiers(doc.Text, fields)
	fields.Montos = extractMontos(doc.Text)
	fields.Fechas = extractFechas(doc.Text)
	return fields, nil
}

// tableRows returns [label, value] pairs for lines that look like table rows.
func tableRows(text string) [][2]string {
	var rows [][2]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(line, " |\t")
		if line == "" {
			continue
		}
		cells := cellSeparator.Split(line, -1)
		if len(cells) < 2 {
			continue
		}
		label := strings.TrimSpace(cells[0])
		value := strings.TrimSpace(strings.Join(cells[1:], " "))
		if label == "" || value == "" {
			continue
		}
		// Label cells are short phrases, not sentences.
		if len(strings.Fields(label)) > 5 {
			continue
		}
		if matchLabelCell(label) == "" {
			continue
		}
		rows = append(rows, [2]string{label, value})
	}
	return rows
}

// matchLabelCell resolves a label cell to a field key, tolerating OCR noise
// via fuzzy ratio.
func matchLabelCell(label string) string {
	norm := strings.Trim(textcmp.Normalize(label), ":.")
	if norm == "" {
		return ""
	}
	bestKey := ""
	bestScore := 0
	for _, key := range orderedLabelKeys() {
		for _, alias := range labelAliases[key] {
			score := textcmp.Ratio(norm, alias)
			if score > bestScore {
				bestScore = score
				bestKey = key
			}
		}
	}
	if bestScore < 80 {
		return ""
	}
	return bestKey
}
