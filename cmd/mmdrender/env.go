package main

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	mmdrender "github.com/alnah/go-mmdrender"
	"github.com/alnah/go-mmdrender/client"
	"github.com/alnah/go-mmdrender/internal/config"
	"github.com/alnah/go-mmdrender/internal/logging"
	"github.com/alnah/go-mmdrender/internal/server"
)

// Engine renders diagrams, locally in Chrome or through a remote server.
type Engine interface {
	server.Renderer
	RenderSVG(ctx context.Context, text string) (string, error)
	Close() error
}

// Compile-time interface checks.
var (
	_ Engine = (*mmdrender.Renderer)(nil)
	_ Engine = remoteEngine{}
)

// Environment holds injectable dependencies for testability.
// Includes I/O, time, logging, and engine construction.
type Environment struct {
	Now    func() time.Time
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	NewLogger  func(cfg logging.Config) (*zap.Logger, error)
	OpenLocal  func(cfg *config.Config, log *zap.Logger, obs mmdrender.Observer) (Engine, error)
	OpenRemote func(baseURL string, cfg *config.Config) (Engine, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:        time.Now,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		NewLogger:  logging.New,
		OpenLocal:  openLocal,
		OpenRemote: openRemote,
	}
}

// openLocal launches Chrome and loads the payload.
func openLocal(cfg *config.Config, log *zap.Logger, obs mmdrender.Observer) (Engine, error) {
	r, err := mmdrender.NewRenderer(
		mmdrender.WithTimeout(cfg.Render.Timeout),
		mmdrender.WithMaxTextLength(cfg.Render.MaxTextLength),
		mmdrender.WithMaxScale(cfg.Render.MaxScale),
		mmdrender.WithLogger(log),
		mmdrender.WithObserver(obs),
		mmdrender.WithAssetPath(cfg.Assets.BasePath),
		mmdrender.WithPayloadURL(cfg.Assets.PayloadURL),
		mmdrender.WithCacheDir(cfg.Assets.CacheDir),
		mmdrender.WithOffline(cfg.Assets.Offline),
		mmdrender.WithBrowserBin(cfg.Browser.Bin),
		mmdrender.WithNoSandbox(cfg.Browser.NoSandbox),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// remoteRequestSlack covers network and queueing time on top of the
// server-side render timeout.
const remoteRequestSlack = 10 * time.Second

// openRemote builds a client for a running server.
func openRemote(baseURL string, cfg *config.Config) (Engine, error) {
	c, err := client.New(baseURL, client.WithTimeout(cfg.Render.Timeout+remoteRequestSlack))
	if err != nil {
		return nil, err
	}
	return remoteEngine{c}, nil
}

// remoteEngine adapts *client.Client to Engine.
type remoteEngine struct {
	*client.Client
}

func (remoteEngine) Close() error { return nil }
