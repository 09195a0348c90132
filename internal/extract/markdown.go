package extract

import (
	"bytes"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"

	"docqa/internal/models"
)

// extractMarkdown walks the goldmark AST and keeps only the text nodes, so
// markup characters never end up inside chunks or embeddings.
func extractMarkdown(path string) ([]models.PageText, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(gmtext.NewReader(src))

	var buf bytes.Buffer
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(v.Segment.Value(src))
				if v.SoftLineBreak() || v.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				buf.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	content := cleanText(buf.String())
	if content == "" {
		return nil, nil
	}
	return []models.PageText{{PageNumber: 1, Text: content}}, nil
}
