package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/filehasher/pkg/filehasher/project"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

func sampleRows() []types.FileEntry {
	return []types.FileEntry{
		{BasePath: "/data", RelativeName: "a.txt", Size: 5, Hash: "3610A686", VerifyHash: "3610A686", Match: types.Match, Algorithm: types.CRC32},
		{BasePath: "/data", RelativeName: "sub/b c.txt", Size: 2048, Hash: "00000000", VerifyHash: "FFFFFFFF", Match: types.Mismatch, Algorithm: types.CRC32},
		{BasePath: "/data", RelativeName: "new.bin", Size: types.SizeUnknown},
	}
}

func sampleReport() *Report {
	res := &project.Result{
		Operation: project.OpVerify,
		Root:      "/data",
		Algorithm: types.CRC32,
		Elapsed:   1500 * time.Millisecond,
		Errors:    []types.FileError{{Path: "/data/gone", Error: "no such file"}},
	}
	return NewReport(sampleRows(), res)
}

func render(t *testing.T, name string, r *Report) string {
	t.Helper()
	f, err := Get(name)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, r))
	return buf.String()
}

func TestNewReport_Projection(t *testing.T) {
	r := sampleReport()

	require.Len(t, r.Rows, 3)
	assert.Equal(t, types.Counts{Total: 3, Hashed: 2, Verified: 2, Mismatched: 1}, r.Counts)
	assert.Equal(t, "verify", r.Operation)
	assert.Equal(t, "/data", r.Root)
	assert.Equal(t, []string{"/data/gone: no such file"}, r.Warnings)

	assert.Equal(t, "5 B", r.Rows[0].SizeHuman)
	assert.Equal(t, "2.0 KiB", r.Rows[1].SizeHuman)
	assert.Equal(t, "?", r.Rows[2].SizeHuman)
	assert.Equal(t, "mismatch", r.Rows[1].Match)
	assert.Equal(t, "unknown", r.Rows[2].Match)
	assert.Equal(t, int64(2053), r.TotalSize())
}

func TestNewReport_WithoutResult(t *testing.T) {
	r := NewReport(nil, nil)
	assert.Empty(t, r.Rows)
	assert.Equal(t, types.Counts{}, r.Counts)
	assert.Empty(t, r.Operation)

	r.AddParseWarnings([]*types.ParseError{{Line: 4, Text: `"x AA`, Reason: "unterminated quote"}})
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "line 4")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", func() Formatter { return &NullFormatter{} })
	reg.Register("a", func() Formatter { return &NamesFormatter{} })

	assert.Equal(t, []string{"a", "b"}, reg.Available())

	f, err := reg.Get("a")
	require.NoError(t, err)
	assert.IsType(t, &NamesFormatter{}, f)

	_, err = reg.Get("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestDefaultRegistry_BuiltinFormatters(t *testing.T) {
	for _, name := range []string{"plain", "pretty", "json", "jsonl", "yaml", "tsv", "csv", "template", "names", "null"} {
		assert.Contains(t, Available(), name)
	}
}

func TestPlainFormatter(t *testing.T) {
	out := render(t, "plain", sampleReport())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "HASH"))
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "3610A686")
	assert.Contains(t, lines[1], "match")
	assert.True(t, strings.HasSuffix(lines[2], "sub/b c.txt"))
	assert.True(t, strings.HasPrefix(lines[3], "-"))
}

func TestPlainFormatter_NoStatusColumnBeforeVerification(t *testing.T) {
	rows := sampleRows()
	for i := range rows {
		rows[i].VerifyHash = ""
		rows[i].Match = types.MatchUnknown
	}
	out := render(t, "plain", NewReport(rows, nil))
	assert.NotContains(t, out, "STATUS")
}

func TestJSONFormatter(t *testing.T) {
	out := render(t, "json", sampleReport())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "1.5s", decoded["elapsed"])
	assert.Equal(t, float64(2053), decoded["total_size"])

	rows, ok := decoded["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 3)
	first := rows[0].(map[string]any)
	assert.Equal(t, "a.txt", first["name"])
	assert.Equal(t, "CRC32", first["algorithm"])
	_, hasHash := rows[2].(map[string]any)["hash"]
	assert.False(t, hasHash)
}

func TestJSONLFormatter(t *testing.T) {
	out := render(t, "jsonl", sampleReport())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	var row Row
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &row))
	assert.Equal(t, "sub/b c.txt", row.Name)
	assert.Equal(t, "mismatch", row.Match)
}

func TestYAMLFormatter(t *testing.T) {
	out := render(t, "yaml", sampleReport())

	var decoded struct {
		Rows []Row `yaml:"rows"`
		Meta struct {
			Mismatched int    `yaml:"mismatched"`
			Elapsed    string `yaml:"elapsed"`
			Operation  string `yaml:"operation"`
		} `yaml:"meta"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Rows, 3)
	assert.Equal(t, "FFFFFFFF", decoded.Rows[1].VerifyHash)
	assert.Equal(t, 1, decoded.Meta.Mismatched)
	assert.Equal(t, "1.5s", decoded.Meta.Elapsed)
	assert.Equal(t, "verify", decoded.Meta.Operation)
}

func TestTSVFormatter(t *testing.T) {
	rows := sampleRows()
	rows[0].RelativeName = "tab\there"
	out := render(t, "tsv", NewReport(rows, nil))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "name\tsize\talgorithm\thash\tverify_hash\tmatch", lines[0])
	assert.Equal(t, "tab here\t5\tCRC32\t3610A686\t3610A686\tmatch", lines[1])
	assert.Equal(t, "new.bin\t-1\t\t\t\tunknown", lines[3])
}

func TestCSVFormatter(t *testing.T) {
	rows := sampleRows()
	rows[0].RelativeName = `quote"d, name`
	out := render(t, "csv", NewReport(rows, nil))

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, tableHeader, records[0])
	assert.Equal(t, `quote"d, name`, records[1][0])
	assert.Equal(t, "2048", records[2][1])
}

func TestTemplateFormatter(t *testing.T) {
	out := render(t, "template", sampleReport())
	assert.Equal(t, "3610A686  a.txt\n00000000  sub/b c.txt\n  new.bin\n", out)

	f := NewTemplateFormatter(`{algorithm}\t{size_human}\t{path}`)
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, sampleReport()))
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "CRC32\t5 B\t/data/a.txt", first)

	f.SetTemplate("{size_si} {match}")
	buf.Reset()
	require.NoError(t, f.Format(&buf, sampleReport()))
	assert.True(t, strings.HasPrefix(buf.String(), "5 B match\n2.0 kB mismatch\n? unknown\n"))
}

func TestTemplateFormatter_UnknownTag(t *testing.T) {
	f := NewTemplateFormatter("{nope}")
	var buf bytes.Buffer
	err := f.Format(&buf, sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestPrettyFormatter(t *testing.T) {
	out := render(t, "pretty", sampleReport())

	for _, want := range []string{"/data", "verify", "CRC32", "1.5s", "HASH", "STATUS", "a.txt", "sub/b c.txt", "mismatch", "Files:", "Mismatched:", "Warnings:", "/data/gone"} {
		assert.Contains(t, out, want)
	}
}

func TestPrettyFormatter_Empty(t *testing.T) {
	r := NewReport(nil, &project.Result{Operation: project.OpScan, Aborted: true})
	out := render(t, "pretty", r)
	assert.Contains(t, out, "No files")
	assert.Contains(t, out, "Run aborted")
}

func TestNamesAndNullFormatters(t *testing.T) {
	assert.Equal(t, "a.txt\nsub/b c.txt\nnew.bin\n", render(t, "names", sampleReport()))
	assert.Empty(t, render(t, "null", sampleReport()))
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{125 * time.Second, "2m 5s"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.d))
	}
}
