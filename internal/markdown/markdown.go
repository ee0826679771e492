// Package markdown extracts Mermaid diagrams from Markdown documents.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// ErrParse indicates the document could not be walked.
var ErrParse = errors.New("failed to parse markdown")

// Language is the fence info string that marks a diagram.
const Language = "mermaid"

// Block is one fenced diagram.
type Block struct {
	Text string // Diagram source, without the fences
	Line int    // 1-based line of the opening fence
}

// Extractor finds mermaid code fences with goldmark.
type Extractor struct {
	md goldmark.Markdown
}

// NewExtractor creates an Extractor using the GFM parser.
func NewExtractor() *Extractor {
	return &Extractor{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Extract returns every ```mermaid block of src in document order.
// Indented code blocks and fences with other languages are ignored.
// Goldmark has no context support, so parsing runs in a goroutine and
// cancellation abandons it.
func (e *Extractor) Extract(ctx context.Context, src []byte) ([]Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		blocks []Block
		err    error
	}
	done := make(chan result, 1)

	go func() {
		blocks, err := e.extract(src)
		done <- result{blocks: blocks, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.blocks, r.err
	}
}

func (e *Extractor) extract(src []byte) ([]Block, error) {
	doc := e.md.Parser().Parse(text.NewReader(src))

	var blocks []Block
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !strings.EqualFold(string(fence.Language(src)), Language) {
			return ast.WalkSkipChildren, nil
		}
		blocks = append(blocks, Block{
			Text: fenceBody(fence, src),
			Line: fenceLine(fence, src),
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return blocks, nil
}

// fenceBody joins the raw lines of a fenced block.
func fenceBody(fence *ast.FencedCodeBlock, src []byte) string {
	var buf bytes.Buffer
	lines := fence.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

// fenceLine locates the opening fence from the info string position.
func fenceLine(fence *ast.FencedCodeBlock, src []byte) int {
	offset := 0
	switch {
	case fence.Info != nil:
		offset = fence.Info.Segment.Start
	case fence.Lines().Len() > 0:
		offset = fence.Lines().At(0).Start
	}
	if offset > len(src) {
		offset = len(src)
	}
	return bytes.Count(src[:offset], []byte("\n")) + 1
}
