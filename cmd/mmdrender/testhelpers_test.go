package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	mmdrender "github.com/alnah/go-mmdrender"
	"github.com/alnah/go-mmdrender/internal/config"
	"github.com/alnah/go-mmdrender/internal/logging"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Fake engine and environment
// ---------------------------------------------------------------------------

// fakeEngine renders any text starting with "graph" and rejects the rest.
type fakeEngine struct {
	mu     sync.Mutex
	texts  []string
	closed int
}

func (f *fakeEngine) RenderSVG(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if !strings.HasPrefix(strings.TrimSpace(text), "graph") {
		return "", mmdrender.ErrRenderEmpty
	}
	return "<svg>" + strings.TrimSpace(text) + "</svg>", nil
}

func (f *fakeEngine) Render(ctx context.Context, req mmdrender.Request) (*mmdrender.Result, error) {
	svg, err := f.RenderSVG(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	return &mmdrender.Result{Data: []byte(svg), ContentType: mmdrender.ContentTypeSVG}, nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

// testEnv wires buffers and fake engines. remoteURL records the --remote
// target when the remote engine is opened.
type testEnv struct {
	*Environment
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	local     *fakeEngine
	remote    *fakeEngine
	remoteURL string
	localCfg  *config.Config
	openErr   error
}

func newTestEnv(t *testing.T, stdin string) *testEnv {
	t.Helper()
	te := &testEnv{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		local:  &fakeEngine{},
		remote: &fakeEngine{},
	}
	te.Environment = &Environment{
		Now:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		Stdin:  strings.NewReader(stdin),
		Stdout: te.stdout,
		Stderr: te.stderr,
		NewLogger: func(logging.Config) (*zap.Logger, error) {
			return zap.NewNop(), nil
		},
		OpenLocal: func(cfg *config.Config, _ *zap.Logger, _ mmdrender.Observer) (Engine, error) {
			te.localCfg = cfg
			if te.openErr != nil {
				return nil, te.openErr
			}
			return te.local, nil
		},
		OpenRemote: func(baseURL string, _ *config.Config) (Engine, error) {
			te.remoteURL = baseURL
			return te.remote, nil
		},
	}
	return te
}
