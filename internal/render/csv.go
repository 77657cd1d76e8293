// Package render serializes formatted export tables to CSV and Excel.
package render

import (
	"bytes"
	"encoding/csv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/export"
)

// utf8BOM keeps non-Latin text readable in common spreadsheet tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrNoTables means the formatter produced nothing to render.
var ErrNoTables = eris.New("render: no tables")

// WriteCSV renders a single interview as UTF-8 CSV with a leading BOM.
// Multi-interview CSV export is unsupported: the first interview wins and
// the rest are discarded with a warning.
func WriteCSV(tables []export.Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	if len(tables) > 1 {
		zap.L().Warn("csv export supports one interview, discarding extras",
			zap.Int("discarded", len(tables)-1))
	}
	t := tables[0]

	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Columns); err != nil {
		return nil, eris.Wrap(err, "render: write csv header")
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = row.Get(col)
		}
		if err := w.Write(record); err != nil {
			return nil, eris.Wrap(err, "render: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "render: flush csv")
	}
	return buf.Bytes(), nil
}
