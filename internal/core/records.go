package core

// records.go reads import files as a lazy sequence of untyped records.
//
// Two encodings are accepted: a JSON array of flat objects, and CSV with a
// header row. Input is decoded as UTF-8 with any BOM stripped and invalid
// byte sequences replaced, so exports from spreadsheet tools read cleanly.
// Records are produced one at a time; a file is never held in memory.

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Format is the encoding of an import file.
type Format string

const (
	FormatAuto Format = "" // decided from the file name, then the content
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat parses a user-supplied format token. Empty and "auto" mean
// FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return FormatAuto, fmt.Errorf("unknown format %q (use json or csv)", s)
	}
}

// FormatFromName infers the format from a file extension.
func FormatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	default:
		return FormatAuto
	}
}

// Source is one import input.
type Source struct {
	Name   string // file name, used for format inference and messages
	Reader io.Reader
	Format Format
}

func (s Source) displayName() string {
	if s.Name == "" {
		return "input"
	}
	return s.Name
}

// Record is one untyped record. Keys are trimmed and lower-cased. JSON
// values keep their scalar type (string, json.Number, bool or nil); CSV
// values are always strings.
type Record struct {
	Index  int // 1-based position among the file's records
	Line   int // source line for CSV, 0 for JSON
	Fields map[string]any
}

// Records yields the records of src in file order. A *FormatError ends the
// sequence; nothing is validated beyond the file's structure. Input that is
// empty or only whitespace yields no records.
func Records(src Source) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		name := src.displayName()
		if src.Reader == nil {
			yield(Record{}, &FormatError{Source: name, Reason: "no data provided"})
			return
		}

		br := bufio.NewReader(transform.NewReader(src.Reader, unicode.BOMOverride(unicode.UTF8.NewDecoder())))

		first, err := skipSpace(br)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(Record{}, &FormatError{Source: name, Reason: fmt.Sprintf("read failed: %v", err), Err: err})
			return
		}

		format := src.Format
		if format == FormatAuto {
			format = FormatFromName(src.Name)
		}
		if format == FormatAuto {
			switch first {
			case '[':
				format = FormatJSON
			case '{':
				yield(Record{}, &FormatError{Source: name, Reason: "expected a top-level JSON array of objects"})
				return
			default:
				format = FormatCSV
			}
		}

		if format == FormatJSON {
			readJSON(name, br, yield)
			return
		}
		readCSV(name, br, yield)
	}
}

// skipSpace consumes leading whitespace and returns the next byte without
// consuming it.
func skipSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func readJSON(name string, r io.Reader, yield func(Record, error) bool) {
	fail := func(reason string, err error) {
		yield(Record{}, &FormatError{Source: name, Reason: reason, Err: err})
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		fail(fmt.Sprintf("malformed JSON: %v", err), err)
		return
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		fail("expected a top-level JSON array of objects", nil)
		return
	}

	for index := 1; dec.More(); index++ {
		var element any
		if err := dec.Decode(&element); err != nil {
			fail(fmt.Sprintf("malformed JSON in element %d: %v", index, err), err)
			return
		}
		obj, ok := element.(map[string]any)
		if !ok {
			fail(fmt.Sprintf("element %d is not an object", index), nil)
			return
		}

		fields := make(map[string]any, len(obj))
		for k, v := range obj {
			switch v.(type) {
			case map[string]any, []any:
				fail(fmt.Sprintf("element %d: field %q holds a nested value", index, k), nil)
				return
			}
			fields[normalizeKey(k)] = v
		}

		if !yield(Record{Index: index, Fields: fields}, nil) {
			return
		}
	}

	if _, err := dec.Token(); err != nil {
		fail("malformed JSON: unterminated array", err)
		return
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		fail("unexpected data after the top-level array", err)
	}
}

func readCSV(name string, r io.Reader, yield func(Record, error) bool) {
	fail := func(line int, reason string, err error) {
		yield(Record{}, &FormatError{Source: name, Line: line, Reason: reason, Err: err})
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // every row must match the header width

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return
	}
	if err != nil {
		line, reason := csvErrorDetail(err)
		fail(line, "malformed header: "+reason, err)
		return
	}
	headerLine, _ := cr.FieldPos(0)

	keys := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		key := normalizeKey(CleanCell(h))
		if key == "" {
			fail(headerLine, fmt.Sprintf("column %d has an empty header", i+1), nil)
			return
		}
		if seen[key] {
			fail(headerLine, fmt.Sprintf("duplicate column %q", key), nil)
			return
		}
		seen[key] = true
		keys[i] = key
	}

	index := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			line, reason := csvErrorDetail(err)
			fail(line, "malformed row: "+reason, err)
			return
		}
		if isBlankRow(row) {
			continue
		}

		index++
		line, _ := cr.FieldPos(0)
		fields := make(map[string]any, len(keys))
		for i, key := range keys {
			fields[key] = TrimCell(row[i])
		}

		if !yield(Record{Index: index, Line: line, Fields: fields}, nil) {
			return
		}
	}
}

func csvErrorDetail(err error) (int, string) {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line, pe.Err.Error()
	}
	return 0, err.Error()
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
