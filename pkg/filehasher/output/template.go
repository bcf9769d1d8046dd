package output

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasttemplate"
)

// TemplateFormatter renders every row through a fasttemplate with {tag}
// placeholders. Known tags: name, base, path, size, size_human, size_si,
// algorithm, hash, verify_hash, match. The escapes \t and \n are expanded
// and a missing trailing newline is added.
type TemplateFormatter struct {
	mu   sync.Mutex
	text string
	tpl  *fasttemplate.Template
}

// DefaultTemplate mimics the output of sha256sum and friends.
const DefaultTemplate = "{hash}  {name}"

var templateEscapes = strings.NewReplacer(`\t`, "\t", `\n`, "\n")

// NewTemplateFormatter creates a template formatter.
func NewTemplateFormatter(text string) *TemplateFormatter {
	return &TemplateFormatter{text: text}
}

// SetTemplate replaces the template text.
func (f *TemplateFormatter) SetTemplate(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.tpl = nil
}

func (f *TemplateFormatter) compile() (*fasttemplate.Template, error) {
	if f.tpl != nil {
		return f.tpl, nil
	}
	text := templateEscapes.Replace(f.text)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	tpl, err := fasttemplate.NewTemplate(text, "{", "}")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	f.tpl = tpl
	return tpl, nil
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tpl, err := f.compile()
	if err != nil {
		return err
	}
	for _, row := range r.Rows {
		if _, err := tpl.ExecuteFunc(w, rowTag(row)); err != nil {
			return err
		}
	}
	return nil
}

// rowTag resolves template tags against one row.
func rowTag(row Row) fasttemplate.TagFunc {
	return func(w io.Writer, tag string) (int, error) {
		var v string
		switch tag {
		case "name":
			v = row.Name
		case "base":
			v = row.Base
		case "path":
			v = row.Base + "/" + row.Name
			if row.Base == "" {
				v = row.Name
			}
		case "size":
			v = strconv.FormatInt(row.Size, 10)
		case "size_human":
			v = row.SizeHuman
		case "size_si":
			if row.Size >= 0 {
				v = humanize.Bytes(uint64(row.Size))
			} else {
				v = "?"
			}
		case "algorithm":
			v = string(row.Algorithm)
		case "hash":
			v = row.Hash
		case "verify_hash":
			v = row.VerifyHash
		case "match":
			v = row.Match
		default:
			return 0, fmt.Errorf("unknown template tag {%s}", tag)
		}
		return io.WriteString(w, v)
	}
}

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(DefaultTemplate)
	})
}

var _ Formatter = (*TemplateFormatter)(nil)
