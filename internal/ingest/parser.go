package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrUnsupported is returned by Parse for files without a registered parser.
var ErrUnsupported = errors.New("unsupported document format")

type parseFunc func(data []byte) (string, error)

var parsers = map[string]parseFunc{
	".txt":      parsePlain,
	".text":     parsePlain,
	".md":       parseMarkdown,
	".markdown": parseMarkdown,
	".pdf":      parsePDF,
}

// Supported reports whether name has an extension a parser is registered for.
func Supported(name string) bool {
	_, ok := parsers[strings.ToLower(path.Ext(name))]
	return ok
}

// Parse converts raw file content to plain text based on the extension of name.
func Parse(name string, data []byte) (string, error) {
	fn, ok := parsers[strings.ToLower(path.Ext(name))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, path.Ext(name))
	}
	return fn(data)
}

func parsePlain(data []byte) (string, error) {
	return strings.TrimSpace(strings.ToValidUTF8(string(data), "")), nil
}

// parsePDF reads the plain text of every page, one page per line block.
func parsePDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	fonts := make(map[string]*pdf.Font)
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		content, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(content)
	}
	return strings.ToValidUTF8(sb.String(), ""), nil
}

func parseMarkdown(data []byte) (string, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(data))
	var sb strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Type() == ast.TypeBlock && sb.Len() > 0 {
				sb.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Text:
			sb.Write(n.Segment.Value(data))
			if n.SoftLineBreak() || n.HardLineBreak() {
				sb.WriteString(" ")
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String()), nil
}
