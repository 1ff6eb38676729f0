package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aida/internal/domain"
)

func drainStrings(t *testing.T, rr domain.RecordReader) []map[string]string {
	t.Helper()
	rows, err := Drain(rr)
	require.NoError(t, err)
	out := make([]map[string]string, len(rows))
	for i, r := range rows {
		out[i] = r.Strings()
	}
	return out
}

func TestCSVReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []map[string]string
	}{
		{
			name:  "header_and_rows",
			input: "name,age\nAda,30\nLin,25\n",
			want:  []map[string]string{{"name": "Ada", "age": "30"}, {"name": "Lin", "age": "25"}},
		},
		{
			name:  "empty_body",
			input: "",
			want:  []map[string]string{},
		},
		{
			name:  "header_only",
			input: "name,age\n",
			want:  []map[string]string{},
		},
		{
			name:  "bom_and_crlf",
			input: "\ufeffname,age\r\nAda,30\r\n",
			want:  []map[string]string{{"name": "Ada", "age": "30"}},
		},
		{
			name:  "quoted_cells",
			input: "name,note\n\"Lovelace, Ada\",\"said \"\"hi\"\"\"\n",
			want:  []map[string]string{{"name": "Lovelace, Ada", "note": `said "hi"`}},
		},
		{
			name:  "short_row_omits_missing",
			input: "a,b,c\n1,2\n",
			want:  []map[string]string{{"a": "1", "b": "2"}},
		},
		{
			name:  "long_row_keys_extras",
			input: "a,b\n1,2,3\n",
			want:  []map[string]string{{"a": "1", "b": "2", "_2": "3"}},
		},
		{
			name:  "several_extras_use_column_index",
			input: "a\n1,2,3\n",
			want:  []map[string]string{{"a": "1", "_1": "2", "_2": "3"}},
		},
		{
			name:  "blank_lines_skipped",
			input: "a\n\n1\n\n2\n",
			want:  []map[string]string{{"a": "1"}, {"a": "2"}},
		},
		{
			name:  "no_trailing_newline",
			input: "a,b\n1,2",
			want:  []map[string]string{{"a": "1", "b": "2"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := drainStrings(t, NewCSVReader(strings.NewReader(tt.input)))
			assert.Equal(t, tt.want, append([]map[string]string{}, got...))
		})
	}
}

func TestCSVReader_PreservesHeaderOrder(t *testing.T) {
	rr := NewCSVReader(strings.NewReader("z,a,m\n1,2,3\n"))
	p, err := rr.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, p.Keys())
}

func TestCSVReader_ExtraCellOrder(t *testing.T) {
	p, err := NewCSVReader(strings.NewReader("a,b\n1,2,3\n")).Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "_2"}, p.Keys())
}

func TestCSVReader_RowCountMatchesInput(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		var b strings.Builder
		b.WriteString("id,label\n")
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "%d,row-%d\n", i, i)
		}
		rows, err := Drain(NewCSVReader(strings.NewReader(b.String())))
		require.NoError(t, err)
		require.Len(t, rows, n)
		for i, r := range rows {
			assert.Equal(t, map[string]string{"id": fmt.Sprint(i), "label": fmt.Sprintf("row-%d", i)}, r.Strings())
		}
	}
}

func TestCSVReader_Malformed(t *testing.T) {
	rr := NewCSVReader(strings.NewReader("a,b\n1,\"unterminated\n"))
	_, err := rr.Next()
	var mc *domain.MalformedContentError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, domain.KindMalformedContent, domain.KindOf(err))

	_, again := rr.Next()
	assert.Equal(t, err, again, "errors are sticky")
}

type brokenReader struct{ after string }

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.after != "" {
		n := copy(p, b.after)
		b.after = b.after[n:]
		return n, nil
	}
	return 0, errors.New("disk unplugged")
}

func TestCSVReader_IOFailure(t *testing.T) {
	_, err := Drain(NewCSVReader(&brokenReader{after: "a,b\n1,2\n"}))
	require.Error(t, err)
	assert.Equal(t, domain.KindIOFailure, domain.KindOf(err))
}

func TestSQLReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"discards_empty_statements", "SELECT 1; ; SELECT 2;", []string{"SELECT 1", "SELECT 2"}},
		{"no_trailing_delimiter", "SELECT 1;\nSELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"multiline_statement", "CREATE TABLE t (\n  id INT\n);\n\nINSERT INTO t VALUES (1);\n", []string{"CREATE TABLE t (\n  id INT\n)", "INSERT INTO t VALUES (1)"}},
		{"empty", "", nil},
		{"only_delimiters", " ;;\n; ", nil},
		{"leading_bom", "\ufeffSELECT 1;\nSELECT 2;", []string{"SELECT 1", "SELECT 2"}},
		{"bom_only", "\ufeff", nil},
		{"lexical_split_inside_literal", "SELECT 'a;b';", []string{"SELECT 'a", "b'"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Drain(NewSQLReader(strings.NewReader(tt.input), 0))
			require.NoError(t, err)
			var got []string
			for _, r := range rows {
				assert.Equal(t, []string{domain.QueryKey}, r.Keys())
				v, _ := r.Get(domain.QueryKey)
				got = append(got, v.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLReader_StatementTooLong(t *testing.T) {
	rr := NewSQLReader(strings.NewReader(strings.Repeat("x", 64)+";"), 16)
	_, err := rr.Next()
	assert.Equal(t, domain.KindMalformedContent, domain.KindOf(err))
}

func TestSQLReader_IOFailure(t *testing.T) {
	_, err := Drain(NewSQLReader(&brokenReader{after: "SELECT 1"}, 0))
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Equal(t, domain.KindIOFailure, domain.KindOf(err))
}

func TestNew(t *testing.T) {
	rr, err := New(domain.ContentCSV, strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.IsType(t, &CSVReader{}, rr)

	rr, err = New(domain.ContentSQL, strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.IsType(t, &SQLReader{}, rr)

	_, err = New(domain.ContentKind("xlsx"), strings.NewReader(""), 0)
	assert.Equal(t, domain.KindValidationFailed, domain.KindOf(err))
}
