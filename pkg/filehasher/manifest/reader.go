package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// partial accumulates what the size comment and the data line say about
// one file.
type partial struct {
	entry types.FileEntry
	named bool
}

// reader holds the state of one Read call.
type reader struct {
	alg      types.Algorithm
	dir      string
	byKey    map[string]*partial
	order    []string
	warnings []*types.ParseError
	lineNo   int
}

// Read parses a manifest. Malformed lines are recovered where possible
// and reported in Result.Warnings; only I/O failures return an error.
func Read(r io.Reader) (*Result, error) {
	rd := &reader{
		alg:   DefaultAlgorithm,
		byKey: make(map[string]*partial),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		rd.lineNo++
		rd.line(strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	res := &Result{Warnings: rd.warnings}
	for _, key := range rd.order {
		p := rd.byKey[key]
		if p.named {
			res.Entries = append(res.Entries, p.entry)
		}
	}
	return res, nil
}

func (rd *reader) warn(text, reason string) {
	rd.warnings = append(rd.warnings, &types.ParseError{Line: rd.lineNo, Text: text, Reason: reason})
}

func (rd *reader) line(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	semi := strings.IndexByte(line, ';')
	if semi >= 0 && strings.TrimSpace(line[:semi]) == "" {
		rd.comment(line[semi:])
		return
	}
	rd.data(line)
}

// comment handles a line starting at its ';'.
func (rd *reader) comment(c string) {
	body := strings.TrimSpace(c[1:])

	switch {
	case strings.HasPrefix(body, AlgorithmKey):
		value := strings.TrimSpace(strings.TrimPrefix(body, AlgorithmKey))
		alg, err := types.ParseAlgorithm(value)
		if err != nil {
			rd.warn(c, fmt.Sprintf("unknown algorithm %q, using %s", value, alg))
		}
		rd.alg = alg
		return
	case strings.HasPrefix(body, DirectoryKey):
		rd.dir = strings.TrimSpace(strings.TrimPrefix(body, DirectoryKey))
		return
	}

	if len(c) <= sizeNameColumn {
		return
	}
	size, err := strconv.ParseInt(strings.TrimSpace(c[1:sizeFieldEnd]), 10, 64)
	if err != nil || size < 0 {
		return
	}
	name := unquote(strings.TrimSpace(c[sizeNameColumn:]))
	if name == "" {
		return
	}
	p := rd.get(rd.strip(name))
	p.entry.Size = size
}

// data handles a "name [digest]" line.
func (rd *reader) data(line string) {
	var name, rest string

	switch strings.Count(line, `"`) {
	case 0:
		name, rest = splitFirst(line)
	case 1:
		rd.warn(line, "unterminated quote")
		name, rest = recoverUnterminated(strings.Replace(line, `"`, "", 1))
	default:
		first := strings.IndexByte(line, '"')
		last := strings.LastIndexByte(line, '"')
		name = line[first+1 : last]
		rest = line[:first] + " " + line[last+1:]
	}

	if name == "" {
		rd.warn(line, "missing file name")
		return
	}

	var digest string
	if tokens := strings.Fields(rest); len(tokens) > 0 {
		digest = strings.ToUpper(tokens[len(tokens)-1])
	}

	p := rd.get(rd.strip(name))
	p.named = true
	if digest != "" {
		p.entry.Hash = digest
		p.entry.Algorithm = rd.alg
	}
}

// splitFirst returns the first whitespace-separated token and the rest.
func splitFirst(line string) (string, string) {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i], line[i+1:]
	}
	return line, ""
}

// recoverUnterminated treats the last token as the digest and everything
// before it as the name.
func recoverUnterminated(line string) (string, string) {
	tokens := strings.Fields(line)
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	default:
		return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1]
	}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// strip removes the active directory prefix from name.
func (rd *reader) strip(name string) string {
	if rd.dir == "" || rd.dir == "." {
		return name
	}
	prefix := strings.TrimSuffix(rd.dir, "/") + "/"
	return strings.TrimPrefix(name, prefix)
}

// get returns the partial entry for name under the active directory.
func (rd *reader) get(name string) *partial {
	key := rd.dir + "\x00" + name
	if p, ok := rd.byKey[key]; ok {
		return p
	}
	p := &partial{entry: types.NewFileEntry(rd.dir, name)}
	rd.byKey[key] = p
	rd.order = append(rd.order, key)
	return p
}
