package manifest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var stamp = time.Date(2026, 10, 19, 14, 3, 5, 0, time.UTC)

func entry(base, rel string, size int64, alg types.Algorithm, hash string) types.FileEntry {
	e := types.NewFileEntry(base, rel)
	e.Size = size
	e.Algorithm = alg
	e.Hash = hash
	return e
}

func sizeLine(size, name string) string {
	return "; " + strings.Repeat(" ", 12-len(size)) + size + strings.Repeat(" ", 22) + name
}

func TestWrite_Layout(t *testing.T) {
	entries := []types.FileEntry{
		entry("/data", "a.txt", 5, types.CRC32, "3610A686"),
		entry("/data", "b c.txt", 0, types.CRC32, "00000000"),
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries, WriteOptions{OutputDir: "/data", Version: "v1.0.0", Now: stamp}))

	want := strings.Join([]string{
		"; Generated by filehasher v1.0.0 on 2026-10-19 at 14:03.05",
		Separator,
		"; FileHasherSetting:Algorithm=CRC32",
		"; FileHasherSetting:Directory=.",
		Separator,
		sizeLine("5", "a.txt"),
		"a.txt 3610A686",
		sizeLine("0", `"b c.txt"`),
		`"b c.txt" 00000000`,
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWrite_SizeAnnotationColumns(t *testing.T) {
	var buf bytes.Buffer
	entries := []types.FileEntry{entry("/d", "x.bin", 123456789012, types.MD5, "AB")}
	require.NoError(t, Write(&buf, entries, WriteOptions{OutputDir: "/d", Now: stamp}))

	var annotation string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasSuffix(line, "x.bin") && strings.HasPrefix(line, ";") {
			annotation = line
		}
	}
	require.NotEmpty(t, annotation)
	assert.Equal(t, "123456789012", strings.TrimSpace(annotation[1:14]))
	assert.Equal(t, "x.bin", annotation[36:])
}

func TestWrite_UnhashedEntriesListedByName(t *testing.T) {
	var buf bytes.Buffer
	entries := []types.FileEntry{entry("/d", "pending.txt", 10, "", "")}
	require.NoError(t, Write(&buf, entries, WriteOptions{OutputDir: "/d", Now: stamp}))

	out := buf.String()
	assert.Contains(t, out, "\npending.txt\n")
	assert.NotContains(t, out, "pending.txt ")
	assert.Contains(t, out, "Algorithm=CRC32", "default algorithm in header")
}

func TestWrite_PathsOutsideOutputDirStayAbsolute(t *testing.T) {
	var buf bytes.Buffer
	entries := []types.FileEntry{entry("/srv/files", "a.txt", 1, types.SHA1, "AA")}
	require.NoError(t, Write(&buf, entries, WriteOptions{OutputDir: "/home/me", Now: stamp}))

	assert.Contains(t, buf.String(), "; FileHasherSetting:Directory=/srv/files\n")
	assert.Contains(t, buf.String(), "\n/srv/files/a.txt AA\n")
}

func TestWrite_NestedBaseIsRelative(t *testing.T) {
	var buf bytes.Buffer
	entries := []types.FileEntry{entry("/out/photos", "2024/a.jpg", 1, types.MD5, "AA")}
	require.NoError(t, Write(&buf, entries, WriteOptions{OutputDir: "/out", Now: stamp}))

	assert.Contains(t, buf.String(), "; FileHasherSetting:Directory=photos\n")
	assert.Contains(t, buf.String(), "\nphotos/2024/a.jpg AA\n")
}

func TestRoundTrip_AlgorithmAndDirectorySections(t *testing.T) {
	entries := []types.FileEntry{
		entry("/out", "a.txt", 5, types.CRC32, "3610A686"),
		entry("/out", "b.txt", 7, types.SHA256, "DEADBEEF"),
		entry("/out/sub", "c d.txt", 9, types.SHA256, "CAFE"),
		entry("/elsewhere", "e.txt", 11, types.MD5, "F00D"),
		entry("/elsewhere", "todo.txt", 0, "", ""),
		entry("/out", ";notes.txt", 13, types.MD5, "BEEF"),
		entry("/out", ";draft.txt", 0, "", ""),
		entry("/out", "a;b.txt", 15, types.MD5, "FACE"),
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries, WriteOptions{OutputDir: "/out", Now: stamp}))
	assert.Contains(t, buf.String(), "\n\";notes.txt\" BEEF\n")
	assert.Contains(t, buf.String(), "\n\";draft.txt\"\n")

	res, err := Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Entries, len(entries))

	wantBase := []string{".", ".", "sub", "/elsewhere", "/elsewhere", ".", ".", "."}
	for i, got := range res.Entries {
		want := entries[i]
		assert.Equal(t, want.RelativeName, got.RelativeName, "row %d", i)
		assert.Equal(t, want.Hash, got.Hash, "row %d", i)
		assert.Equal(t, want.Algorithm, got.Algorithm, "row %d", i)
		assert.Equal(t, wantBase[i], got.BasePath, "row %d", i)
		if want.Hash != "" {
			assert.Equal(t, want.Size, got.Size, "row %d", i)
		} else {
			assert.Equal(t, types.SizeUnknown, got.Size, "row %d", i)
		}
	}
}

func TestWrite_RejectsDoubleQuoteInName(t *testing.T) {
	entries := []types.FileEntry{
		entry("/out", "plain.txt", 1, types.CRC32, "AA"),
		entry("/out", `say"hi.txt`, 2, types.CRC32, "BB"),
	}

	var buf bytes.Buffer
	err := Write(&buf, entries, WriteOptions{OutputDir: "/out", Now: stamp})
	require.ErrorIs(t, err, ErrUnwritableName)
	assert.ErrorIs(t, err, types.ErrIO)
	assert.Zero(t, buf.Len())

	dir := t.TempDir()
	path := filepath.Join(dir, "sums.sfv")
	require.ErrorIs(t, WriteFile(path, entries, WriteOptions{Now: stamp}), ErrUnwritableName)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	left, _ := os.ReadDir(dir)
	assert.Empty(t, left, "temporary file must be removed")
}

func TestRead_PlainSFV(t *testing.T) {
	in := "; made by some other tool\r\n" +
		"file1.bin 0a1b2c3d\r\n" +
		"\r\n" +
		"dir/file2.bin FFFFFFFF\r\n"

	res, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)

	assert.Equal(t, "file1.bin", res.Entries[0].RelativeName)
	assert.Equal(t, "0A1B2C3D", res.Entries[0].Hash)
	assert.Equal(t, types.CRC32, res.Entries[0].Algorithm)
	assert.Equal(t, types.SizeUnknown, res.Entries[0].Size)
	assert.Equal(t, "dir/file2.bin", res.Entries[1].RelativeName)
}

func TestRead_QuotedNameAndExtraTokens(t *testing.T) {
	in := `"my file.txt" ABCD` + "\n" +
		`x.txt ignored 1234` + "\n" +
		`"only name.txt"` + "\n"

	res, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)

	assert.Equal(t, "my file.txt", res.Entries[0].RelativeName)
	assert.Equal(t, "ABCD", res.Entries[0].Hash)
	assert.Equal(t, "x.txt", res.Entries[1].RelativeName)
	assert.Equal(t, "1234", res.Entries[1].Hash)
	assert.Equal(t, "only name.txt", res.Entries[2].RelativeName)
	assert.Empty(t, res.Entries[2].Hash)
}

func TestRead_SizeCommentWithoutDataLineIsDropped(t *testing.T) {
	in := sizeLine("42", "orphan.txt") + "\n" +
		sizeLine("7", "kept.txt") + "\n" +
		"kept.txt 01020304\n"

	res, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "kept.txt", res.Entries[0].RelativeName)
	assert.Equal(t, int64(7), res.Entries[0].Size)
}

func TestRead_OrderIsFirstSeen(t *testing.T) {
	in := sizeLine("1", "b.txt") + "\n" +
		"a.txt AA\n" +
		"b.txt BB\n"

	res, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "b.txt", res.Entries[0].RelativeName)
	assert.Equal(t, "a.txt", res.Entries[1].RelativeName)
}

func TestRead_DashedAlgorithmAndUnknownAlgorithm(t *testing.T) {
	in := "; FileHasherSetting:Algorithm=SHA-256\n" +
		"a.txt AA\n" +
		"; FileHasherSetting:Algorithm=WHIRLPOOL\n" +
		"b.txt BB\n"

	res, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, types.SHA256, res.Entries[0].Algorithm)
	assert.Equal(t, types.MD5, res.Entries[1].Algorithm)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 3, res.Warnings[0].Line)
	assert.True(t, errors.Is(res.Warnings[0], types.ErrParse))
}

func TestRead_UnterminatedQuote(t *testing.T) {
	res, err := Read(strings.NewReader(`"broken name.txt 1A2B` + "\n"))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "broken name.txt", res.Entries[0].RelativeName)
	assert.Equal(t, "1A2B", res.Entries[0].Hash)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "unterminated quote", res.Warnings[0].Reason)
}

func TestRead_SemicolonInsideDataLine(t *testing.T) {
	res, err := Read(strings.NewReader("weird;name.txt 99\n"))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "weird;name.txt", res.Entries[0].RelativeName)
}

func TestFile_RoundTripCompressed(t *testing.T) {
	for _, name := range []string{"sums.sfv", "sums.sfv.gz", "sums.sfv.zst"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			data := filepath.Join(dir, "data")
			entries := []types.FileEntry{
				entry(data, "a.txt", 5, types.CRC32, "3610A686"),
				entry(data, "b.txt", 0, types.BLAKE3, "AF1349B9"),
			}

			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, entries, WriteOptions{Now: stamp}))

			res, err := ReadFile(path)
			require.NoError(t, err)
			require.Len(t, res.Entries, 2)
			for i := range entries {
				assert.Equal(t, data, res.Entries[i].BasePath)
				assert.Equal(t, entries[i].RelativeName, res.Entries[i].RelativeName)
				assert.Equal(t, entries[i].Hash, res.Entries[i].Hash)
				assert.Equal(t, entries[i].Algorithm, res.Entries[i].Algorithm)
			}

			leftovers, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
			require.NoError(t, err)
			assert.Empty(t, leftovers)
		})
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.sfv"))
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
	assert.True(t, errors.Is(err, types.ErrIO))
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "no", "such", "dir.sfv"), nil, WriteOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIO))
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sums.sfv")
	require.NoError(t, os.WriteFile(path, []byte("old.txt 00\n"), 0o644))

	require.NoError(t, WriteFile(path, []types.FileEntry{entry(dir, "new.txt", 1, types.MD5, "11")}, WriteOptions{}))

	res, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "new.txt", res.Entries[0].RelativeName)
}

func TestCompressionFor(t *testing.T) {
	assert.Equal(t, None, CompressionFor("a.sfv"))
	assert.Equal(t, Gzip, CompressionFor("a.sfv.GZ"))
	assert.Equal(t, Zstd, CompressionFor("a.sfv.zst"))
	assert.Equal(t, "zstd", Zstd.String())
}
