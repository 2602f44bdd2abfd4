// Package extract turns raw CSV bytes into a textual description suitable
// for embedding in a text-based LLM prompt.
//
// DESIGN: Two sub-paths, attempted in order:
//  1. Structured: parse as delimited tabular data and build a full summary
//     (schema, every row, inferred column types, descriptive statistics).
//     Nothing is truncated - answer fidelity is preferred over token cost.
//  2. Raw fallback: embed the decoded text verbatim and derive row/column
//     counts heuristically from newlines and the first line's delimiter.
//
// Invalid UTF-8 is a hard DecodeError: there is no further fallback.
package extract

import (
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// DecodeError means the file bytes are not valid UTF-8 text and the chosen
// backend requires text.
type DecodeError struct {
	Filename string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode file '%s' as UTF-8", e.Filename)
}

// ExtractionError means structured table parsing failed. The caller falls
// back to raw text; the error surfaces only when that fallback is also
// unusable.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract table from '%s': %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extraction is the result of turning file bytes into prompt text.
type Extraction struct {
	Filename   string
	RowCount   int      // data rows, excluding the header
	Columns    []string // header names in file order
	RawText    string   // full decoded file content
	Summary    string   // structured summary, or raw-content rendering on fallback
	Structured bool     // true when the structured sub-path succeeded
}

// ContentLength reports the size of the text that will be embedded in the
// prompt.
func (e *Extraction) ContentLength() int { return len(e.Summary) }

// FromCSV decodes and summarizes a CSV buffer. The structured sub-path is
// attempted first; on failure the raw-text fallback is used. Only invalid
// UTF-8 is fatal.
func FromCSV(data []byte, filename string) (*Extraction, error) {
	if !utf8.Valid(data) {
		return nil, &DecodeError{Filename: filename}
	}
	text := string(data)

	ex, err := parseTable(text, filename)
	if err == nil {
		return ex, nil
	}
	log.Debug().Err(err).Str("file", filename).Msg("structured extraction failed, using raw fallback")

	return rawFallback(text, filename), nil
}

// parseTable builds the full structured summary: schema, complete row dump,
// inferred column types, and descriptive statistics.
func parseTable(text, filename string) (*Extraction, error) {
	r := csv.NewReader(strings.NewReader(text))
	records, err := r.ReadAll()
	if err != nil {
		return nil, &ExtractionError{Filename: filename, Err: err}
	}
	if len(records) == 0 {
		return nil, &ExtractionError{Filename: filename, Err: fmt.Errorf("no parsable rows")}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	rows := records[1:]

	columns := make([][]string, len(header))
	for i := range header {
		col := make([]string, len(rows))
		for j, row := range rows {
			col[j] = row[i]
		}
		columns[i] = col
	}

	kinds := make([]columnKind, len(header))
	for i, col := range columns {
		kinds[i] = inferKind(col)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", filename)
	fmt.Fprintf(&b, "Total Rows: %d\n", len(rows))
	fmt.Fprintf(&b, "Total Columns: %d\n", len(header))
	fmt.Fprintf(&b, "Column Names: %s\n\n", strings.Join(header, ", "))

	b.WriteString("COMPLETE DATA CONTENT:\n")
	b.WriteString(renderTable(header, rows))
	b.WriteString("\n")

	b.WriteString("DATA TYPES:\n")
	for i, name := range header {
		fmt.Fprintf(&b, "%s: %s\n", name, kinds[i])
	}
	b.WriteString("\n")

	b.WriteString("COMPLETE STATISTICAL SUMMARY:\n")
	for i, name := range header {
		fmt.Fprintf(&b, "%s: %s\n", name, describe(columns[i], kinds[i]))
	}

	return &Extraction{
		Filename:   filename,
		RowCount:   len(rows),
		Columns:    header,
		RawText:    text,
		Summary:    b.String(),
		Structured: true,
	}, nil
}

// rawFallback embeds the verbatim file content and derives row/column counts
// heuristically: rows from newline count minus the header, columns from
// splitting the first line on commas.
func rawFallback(text, filename string) *Extraction {
	var b strings.Builder
	fmt.Fprintf(&b, "CSV File: %s\n\n", filename)
	b.WriteString("COMPLETE RAW CSV CONTENT:\n")
	b.WriteString(text)

	var columns []string
	rowCount := 0
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		for _, col := range strings.Split(lines[0], ",") {
			columns = append(columns, strings.TrimSpace(col))
		}
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				rowCount++
			}
		}
	}

	return &Extraction{
		Filename: filename,
		RowCount: rowCount,
		Columns:  columns,
		RawText:  text,
		Summary:  b.String(),
	}
}

// renderTable renders all rows as aligned columns. No truncation.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%*s", widths[i], cell)
		}
		b.WriteString("\n")
	}

	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}
