package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format is a supported batch file format.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
	FormatJSON        Format = "json"
)

// extensions maps lower-cased file extensions to formats.
var extensions = map[string]Format{
	".csv":  FormatCSV,
	".xlsx": FormatSpreadsheet,
	".xls":  FormatSpreadsheet,
	".json": FormatJSON,
}

// SupportedExtensions lists the accepted file extensions.
var SupportedExtensions = []string{".csv", ".xlsx", ".xls", ".json"}

var (
	errEmptyFile  = errors.New("empty file")
	errNoDataRows = errors.New("no data rows after header")
	errNotObject  = errors.New("malformed record: expected a JSON object")
	errInvalidCSV = errors.New("invalid csv")
	errUnreadable = errors.New("unreadable")
)

// DetectFormat returns the format for fileName based on its extension,
// ignoring case.
func DetectFormat(fileName string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(fileName))]
	return f, ok
}

// readRows materializes every non-blank data row of data. The header row of
// positional formats is skipped.
func readRows(format Format, data []byte) ([]Row, error) {
	var (
		rows []Row
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(sanitizeUTF8(stripBOM(data)))
	case FormatSpreadsheet:
		rows, err = readSpreadsheet(data)
	case FormatJSON:
		rows, err = readJSON(sanitizeUTF8(stripBOM(data)))
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoDataRows
	}
	return rows, nil
}

func readCSV(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []Row
	header := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidCSV, err)
		}
		if header {
			header = false
			continue
		}
		line, _ := r.FieldPos(0)
		row := cellRow{num: line, cells: rec}
		if row.blank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readSpreadsheet reads the first sheet of a workbook.
func readSpreadsheet(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w spreadsheet: %w", errUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w spreadsheet: workbook has no sheets", errUnreadable)
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w spreadsheet: %w", errUnreadable, err)
	}

	var rows []Row
	for i, cells := range all {
		if i == 0 {
			continue
		}
		row := cellRow{num: i + 1, cells: cells}
		if row.blank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readJSON reads a top-level array of objects. Elements that are not
// objects become bad rows so they fail as row-scoped errors.
func readJSON(data []byte) ([]Row, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w json: expected a top-level array of objects: %w", errUnreadable, err)
	}

	rows := make([]Row, 0, len(elems))
	for i, raw := range elems {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		var obj map[string]any
		if err := dec.Decode(&obj); err != nil || obj == nil {
			rows = append(rows, badRow{num: i + 1, raw: string(raw), err: errNotObject})
			continue
		}
		row := newFieldRow(i+1, obj, raw)
		if row.blank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
