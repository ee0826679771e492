package markdown

import (
	"context"
	"errors"
	"testing"
)

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []Block
	}{
		{
			name:  "no diagrams",
			input: "# Title\n\nSome text.\n",
			want:  nil,
		},
		{
			name:  "single diagram",
			input: "# Title\n\n```mermaid\ngraph TD\n  A-->B\n```\n",
			want:  []Block{{Text: "graph TD\n  A-->B\n", Line: 3}},
		},
		{
			name:  "several diagrams in order",
			input: "```mermaid\ngraph LR\n```\n\ntext\n\n```mermaid\nsequenceDiagram\n```\n",
			want: []Block{
				{Text: "graph LR\n", Line: 1},
				{Text: "sequenceDiagram\n", Line: 7},
			},
		},
		{
			name:  "other languages ignored",
			input: "```go\nfunc main() {}\n```\n\n```mermaid\npie\n```\n",
			want:  []Block{{Text: "pie\n", Line: 5}},
		},
		{
			name:  "language is case-insensitive",
			input: "```Mermaid\ngraph TD\n```\n",
			want:  []Block{{Text: "graph TD\n", Line: 1}},
		},
		{
			name:  "tilde fence with attributes",
			input: "~~~mermaid {width=100}\ngraph TD\n~~~\n",
			want:  []Block{{Text: "graph TD\n", Line: 1}},
		},
		{
			name:  "empty diagram kept",
			input: "```mermaid\n```\n",
			want:  []Block{{Text: "", Line: 1}},
		},
		{
			name:  "indented code block ignored",
			input: "    mermaid\n    graph TD\n",
			want:  nil,
		},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := e.Extract(context.Background(), []byte(tt.input))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() returned %d blocks, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("block %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractor_Extract_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor().Extract(ctx, []byte("```mermaid\ngraph TD\n```\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}
