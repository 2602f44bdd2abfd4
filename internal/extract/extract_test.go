package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCSV_Structured(t *testing.T) {
	ex, err := FromCSV([]byte("a,b\n1,2\n3,4\n"), "data.csv")
	require.NoError(t, err)

	assert.Equal(t, 2, ex.RowCount)
	assert.Equal(t, []string{"a", "b"}, ex.Columns)
	assert.True(t, ex.Structured)
	assert.Equal(t, len(ex.Summary), ex.ContentLength())

	// Every row appears untruncated in the summary.
	assert.Contains(t, ex.Summary, "Total Rows: 2")
	assert.Contains(t, ex.Summary, "COMPLETE DATA CONTENT:")
	assert.Contains(t, ex.Summary, "3")
	assert.Contains(t, ex.Summary, "DATA TYPES:")
	assert.Contains(t, ex.Summary, "a: integer")
	assert.Contains(t, ex.Summary, "COMPLETE STATISTICAL SUMMARY:")
}

func TestFromCSV_HeaderOnly(t *testing.T) {
	ex, err := FromCSV([]byte("a,b\n"), "header.csv")
	require.NoError(t, err)

	assert.Equal(t, 0, ex.RowCount)
	assert.Equal(t, []string{"a", "b"}, ex.Columns)
	assert.True(t, ex.Structured)
	assert.Contains(t, ex.Summary, "Total Rows: 0")
}

func TestFromCSV_EmptyFile(t *testing.T) {
	ex, err := FromCSV([]byte{}, "empty.csv")
	require.NoError(t, err)

	assert.Equal(t, 0, ex.RowCount)
	assert.Empty(t, ex.Columns)
	assert.False(t, ex.Structured)
}

func TestFromCSV_InvalidUTF8(t *testing.T) {
	_, err := FromCSV([]byte{0xff, 0xfe, 0x00, 0x41}, "binary.csv")

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "binary.csv", decodeErr.Filename)
}

func TestFromCSV_RaggedRowsFallBackToRaw(t *testing.T) {
	// Mismatched field counts fail the structured parser; the raw fallback
	// derives counts heuristically.
	ex, err := FromCSV([]byte("a,b\n1,2,3\n4,5\n"), "ragged.csv")
	require.NoError(t, err)

	assert.False(t, ex.Structured)
	assert.Equal(t, 2, ex.RowCount)
	assert.Equal(t, []string{"a", "b"}, ex.Columns)
	assert.Contains(t, ex.Summary, "COMPLETE RAW CSV CONTENT:")
	assert.Contains(t, ex.Summary, "1,2,3")
}

func TestParseTable_ErrorType(t *testing.T) {
	_, err := parseTable("a,b\n1,2,3\n", "bad.csv")

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "bad.csv", exErr.Filename)
	assert.NotNil(t, errors.Unwrap(exErr))
}

func TestFromCSV_Statistics(t *testing.T) {
	csvData := "score,city\n10,berlin\n20,berlin\n30,paris\n40,paris\n"
	ex, err := FromCSV([]byte(csvData), "stats.csv")
	require.NoError(t, err)
	require.True(t, ex.Structured)

	assert.Contains(t, ex.Summary, "score: count=4 mean=25.0 std=12.91 min=10.0 25%=17.5 50%=25.0 75%=32.5 max=40.0")
	assert.Contains(t, ex.Summary, `city: count=4 unique=2`)
}

func TestInferKind(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   columnKind
	}{
		{"integers", []string{"1", "2", "3"}, kindInteger},
		{"floats", []string{"1.5", "2", "3"}, kindFloat},
		{"text", []string{"1", "two", "3"}, kindText},
		{"empty values ignored", []string{"", "4", ""}, kindInteger},
		{"all empty is text", []string{"", ""}, kindText},
		{"no values is text", nil, kindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferKind(tt.values))
		})
	}
}

func TestRenderTable_NoTruncation(t *testing.T) {
	header := []string{"id", "value"}
	rows := make([][]string, 500)
	for i := range rows {
		rows[i] = []string{"1", "x"}
	}

	rendered := renderTable(header, rows)
	assert.Equal(t, 501, strings.Count(rendered, "\n"))
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 2.5, quantile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 3.25, quantile(sorted, 0.75), 1e-9)
	assert.InDelta(t, 7.0, quantile([]float64{7}, 0.5), 1e-9)
}
