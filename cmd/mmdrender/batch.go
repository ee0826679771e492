package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	mmdrender "github.com/alnah/go-mmdrender"
)

// svgRenderer is the part of Engine batch rendering needs.
type svgRenderer interface {
	RenderSVG(ctx context.Context, text string) (string, error)
}

// renderBatch renders texts concurrently and returns one SVG per input, in
// input order. A failed render yields "" and never stops the batch.
func renderBatch(ctx context.Context, r svgRenderer, texts []string, workers int, log *zap.Logger) []string {
	results := make([]string, len(texts))
	if len(texts) == 0 {
		return results
	}

	if workers > len(texts) {
		workers = len(texts)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	jobs := make(chan int, len(texts))

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				svg, err := r.RenderSVG(ctx, texts[idx])
				if err != nil {
					log.Warn("diagram failed",
						zap.Int("index", idx),
						zap.String("message", mmdrender.Message(err)),
						zap.Error(err))
					continue
				}
				results[idx] = svg
			}
		}()
	}

	for i := range texts {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// decodeBatch parses a JSON array of diagram sources.
func decodeBatch(data []byte) ([]string, error) {
	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	if texts == nil {
		return nil, fmt.Errorf("%w: expected a JSON array of strings", ErrInvalidBatch)
	}
	return texts, nil
}

// encodeBatch writes results as a pretty-printed JSON array with two-space
// indentation. Markup is not HTML-escaped.
func encodeBatch(results []string) ([]byte, error) {
	if results == nil {
		results = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return nil, fmt.Errorf("encoding results: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
