package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownText reduces Markdown to the plain text a reader would see: one
// paragraph per block, link and image targets dropped, HTML skipped and
// table rows flattened to space-separated cells.
func MarkdownText(source []byte) string {
	doc := markdown.Parser().Parse(text.NewReader(source))

	var out, block strings.Builder
	flush := func() {
		if s := strings.TrimSpace(block.String()); s != "" {
			if out.Len() > 0 {
				out.WriteString("\n\n")
			}
			out.WriteString(s)
		}
		block.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.Kind() {
		case ast.KindParagraph, ast.KindTextBlock, ast.KindHeading:
			if !entering {
				flush()
			}
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					block.Write(seg.Value(source))
				}
				flush()
				return ast.WalkSkipChildren, nil
			}
		case ast.KindHTMLBlock, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			if entering {
				t := n.(*ast.Text)
				block.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					block.WriteByte('\n')
				}
			}
		case ast.KindString:
			if entering {
				block.Write(n.(*ast.String).Value)
			}
		case extast.KindTableCell:
			if !entering {
				block.WriteByte(' ')
			}
		case extast.KindTableHeader, extast.KindTableRow:
			if !entering {
				block.WriteByte('\n')
			}
		case extast.KindTable:
			if !entering {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	flush()
	return out.String()
}
