// Package assets resolves logical asset paths to bytes, reading from the local
// disk cache when possible and populating it from the remote origin otherwise.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNetwork covers transport failures, timeouts and non-2xx responses.
	ErrNetwork = errors.New("network error")

	// ErrFilesystem covers local cache read and write failures.
	ErrFilesystem = errors.New("filesystem error")
)

// Fetcher downloads the body at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Recorder is notified about cache population and cache hits. Errors are
// logged and otherwise ignored.
type Recorder interface {
	RecordAsset(ctx context.Context, logicalPath string, size int64, url string) error
	TouchAsset(ctx context.Context, logicalPath string) error
}

type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Config holds everything a Resolver needs.
type Config struct {
	Root     string // local storage root
	Origin   string // remote prefix, logical paths are appended verbatim
	Fetcher  Fetcher
	Recorder Recorder // optional
	Log      Logger   // optional
}

type Resolver struct {
	root     string
	origin   string
	fetcher  Fetcher
	recorder Recorder
	log      Logger
}

func New(cfg Config) (*Resolver, error) {
	if cfg.Root == "" {
		return nil, errors.New("assets: storage root is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("assets: fetcher is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Resolver{
		root:     root,
		origin:   cfg.Origin,
		fetcher:  cfg.Fetcher,
		recorder: cfg.Recorder,
		log:      log,
	}, nil
}

// WithOrigin returns a resolver sharing the cache root but fetching from a
// different origin. The index document names the asset origin, so it is only
// known after the first fetch.
func (r *Resolver) WithOrigin(origin string) *Resolver {
	clone := *r
	clone.origin = origin
	return &clone
}

func (r *Resolver) Root() string   { return r.root }
func (r *Resolver) Origin() string { return r.origin }

// LocalPath maps a logical path to its cache file.
func (r *Resolver) LocalPath(logicalPath string) (string, error) {
	p := filepath.Join(r.root, filepath.FromSlash(logicalPath))
	if p != r.root && !strings.HasPrefix(p, r.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the storage root", ErrFilesystem, logicalPath)
	}
	return p, nil
}

// Resolve returns the asset bytes, from disk if cached, else from the origin.
// Callers must not resolve the same path concurrently.
func (r *Resolver) Resolve(ctx context.Context, logicalPath string) ([]byte, error) {
	local, err := r.LocalPath(logicalPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(local)
	if err == nil {
		r.touch(ctx, logicalPath)
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: read %s: %w", ErrFilesystem, local, err)
	}

	return r.download(ctx, logicalPath, local)
}

// Refresh prefers the origin and falls back to the cached copy when the
// network fails.
func (r *Resolver) Refresh(ctx context.Context, logicalPath string) ([]byte, error) {
	local, err := r.LocalPath(logicalPath)
	if err != nil {
		return nil, err
	}

	data, err := r.download(ctx, logicalPath, local)
	if err == nil || !errors.Is(err, ErrNetwork) {
		return data, err
	}

	cached, rerr := os.ReadFile(local)
	if rerr != nil {
		return nil, err
	}
	r.log.Warnf("Using cached %s: %v", logicalPath, err)
	return cached, nil
}

func (r *Resolver) download(ctx context.Context, logicalPath, local string) ([]byte, error) {
	url := r.origin + logicalPath
	r.log.Debugf("Fetching %s", url)
	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrNetwork, url, err)
	}

	if err := writeFile(local, data); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrFilesystem, local, err)
	}

	if r.recorder != nil {
		if err := r.recorder.RecordAsset(ctx, logicalPath, int64(len(data)), url); err != nil {
			r.log.Warnf("Could not record %s in the cache manifest: %v", logicalPath, err)
		}
	}
	return data, nil
}

func (r *Resolver) touch(ctx context.Context, logicalPath string) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.TouchAsset(ctx, logicalPath); err != nil {
		r.log.Debugf("Could not touch %s in the cache manifest: %v", logicalPath, err)
	}
}

// writeFile writes through a temp file in the same directory so readers never
// observe a partial file. MkdirAll tolerates concurrent creation of shared
// parent directories.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
