package prefetch

import (
	"context"
	"sync"

	"github.com/class1/graduate/pkg/timeline"
)

// WarmConfig holds everything Warm needs.
type WarmConfig struct {
	Paths       []string
	Resolver    Resolver
	Concurrency int    // defaults to 4 if <= 0
	Log         Logger // optional; nil = no logging

	// OnAssetDone is called per path from worker goroutines. Nil = no callback.
	OnAssetDone func(path string, err error)
}

// WarmResult holds the outcome of a warm-up.
type WarmResult struct {
	Resolved []string
	Errors   []error // non-fatal, one per failed path
}

// Paths returns every distinct asset path of a timeline, in timeline order.
func Paths(tl *timeline.Timeline) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range tl.Events() {
		for _, x := range e.Experiences {
			if seen[x.Path] {
				continue
			}
			seen[x.Path] = true
			out = append(out, x.Path)
		}
	}
	return out
}

// Warm resolves every path with a worker pool so the disk cache holds them
// all. Per-path errors are collected, never returned.
func Warm(ctx context.Context, cfg WarmConfig) *WarmResult {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	result := &WarmResult{}
	if len(cfg.Paths) == 0 {
		return result
	}

	pathChan := make(chan string, len(cfg.Paths))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pathChan {
				if ctx.Err() != nil {
					mu.Lock()
					result.Errors = append(result.Errors, ctx.Err())
					mu.Unlock()
					continue
				}
				_, err := cfg.Resolver.Resolve(ctx, p)
				mu.Lock()
				if err != nil {
					log.Warnf("Failed to fetch %s: %v", p, err)
					result.Errors = append(result.Errors, err)
				} else {
					result.Resolved = append(result.Resolved, p)
				}
				mu.Unlock()

				if cfg.OnAssetDone != nil {
					cfg.OnAssetDone(p, err)
				}
			}
		}()
	}

	for _, p := range cfg.Paths {
		pathChan <- p
	}
	close(pathChan)
	wg.Wait()

	log.Infof("Warmed %d of %d assets", len(result.Resolved), len(cfg.Paths))
	return result
}
