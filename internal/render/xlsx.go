package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/survey-cli/internal/export"
)

// minColWidth is the floor applied before the +2 padding.
const minColWidth = 10

// XLSXMeta carries the workbook provenance fields: creator and
// lastModifiedBy are set to the requesting user's display name,
// created/modified to generation time.
type XLSXMeta struct {
	Creator string
	Now     func() time.Time
}

// WriteXLSX renders one workbook with a worksheet per interview, named by
// interview title. Column widths track the longest cell, padded, with a
// floor of minColWidth.
func WriteXLSX(tables []export.Table, meta XLSXMeta) ([]byte, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	now := time.Now
	if meta.Now != nil {
		now = meta.Now
	}

	f := xlsx.NewFile()
	for _, t := range tables {
		sheet, err := f.AddSheet(sheetName(t.Title))
		if err != nil {
			return nil, eris.Wrapf(err, "render: add sheet %q", t.Title)
		}

		widths := make([]int, len(t.Columns))
		header := sheet.AddRow()
		for i, col := range t.Columns {
			header.AddCell().Value = col
			widths[i] = len(col)
		}
		for _, row := range t.Rows {
			out := sheet.AddRow()
			for i, col := range t.Columns {
				v := row.Get(col)
				out.AddCell().Value = v
				if len(v) > widths[i] {
					widths[i] = len(v)
				}
			}
		}
		for i, w := range widths {
			if w < minColWidth {
				w = minColWidth
			}
			sheet.SetColWidth(i, i, float64(w+2))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "render: write workbook")
	}
	return setCoreProperties(buf.Bytes(), meta.Creator, now().UTC())
}

// sheetName trims a title to Excel's 31-character sheet name limit.
func sheetName(title string) string {
	if title == "" {
		return "Sheet1"
	}
	runes := []rune(title)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}

const (
	corePartName    = "docProps/core.xml"
	coreContentType = "application/vnd.openxmlformats-package.core-properties+xml"
	coreRelType     = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
)

// setCoreProperties rewrites the workbook zip with a docProps/core.xml
// carrying the creator and timestamps. The xlsx library does not expose
// OOXML core properties, so the package is patched after serialization:
// the part is replaced or added, and the content-types and root
// relationship entries are inserted when missing. Parts are rewritten in
// sorted name order; the library emits them in map order, which would make
// identical workbooks byte-unequal.
func setCoreProperties(workbook []byte, creator string, ts time.Time) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(workbook), int64(len(workbook)))
	if err != nil {
		return nil, eris.Wrap(err, "render: reopen workbook")
	}

	parts := make(map[string][]byte, len(r.File)+1)
	for _, zf := range r.File {
		data, err := readZipFile(zf)
		if err != nil {
			return nil, err
		}
		switch zf.Name {
		case corePartName:
			continue // replaced below
		case "[Content_Types].xml":
			data = ensureBeforeClose(data, "</Types>",
				fmt.Sprintf(`<Override PartName="/%s" ContentType="%s"/>`, corePartName, coreContentType),
				`PartName="/`+corePartName+`"`)
		case "_rels/.rels":
			data = ensureBeforeClose(data, "</Relationships>",
				fmt.Sprintf(`<Relationship Id="rIdCoreProps" Type="%s" Target="%s"/>`, coreRelType, corePartName),
				coreRelType)
		}
		parts[zf.Name] = data
	}
	parts[corePartName] = corePropsXML(creator, ts)

	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var out bytes.Buffer
	w := zip.NewWriter(&out)
	for _, name := range names {
		if err := writeZipEntry(w, name, parts[name]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "render: close workbook")
	}
	return out.Bytes(), nil
}

func corePropsXML(creator string, ts time.Time) []byte {
	var esc bytes.Buffer
	_ = xml.EscapeText(&esc, []byte(creator))
	name := esc.String()
	stamp := ts.Format(time.RFC3339)
	return []byte(xml.Header +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:creator>` + name + `</dc:creator>` +
		`<cp:lastModifiedBy>` + name + `</cp:lastModifiedBy>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:modified>` +
		`</cp:coreProperties>`)
}

// ensureBeforeClose inserts fragment before the closing tag unless marker
// is already present.
func ensureBeforeClose(doc []byte, closeTag, fragment, marker string) []byte {
	s := string(doc)
	if strings.Contains(s, marker) {
		return doc
	}
	return []byte(strings.Replace(s, closeTag, fragment+closeTag, 1))
}

func readZipFile(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "render: open zip entry %s", zf.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "render: read zip entry %s", zf.Name)
	}
	return data, nil
}

func writeZipEntry(w *zip.Writer, name string, data []byte) error {
	f, err := w.Create(name)
	if err != nil {
		return eris.Wrapf(err, "render: create zip entry %s", name)
	}
	if _, err := f.Write(data); err != nil {
		return eris.Wrapf(err, "render: write zip entry %s", name)
	}
	return nil
}
