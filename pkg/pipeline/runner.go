package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlayout/pkg/cache"
	"github.com/matzehuels/flowlayout/pkg/errors"
	"github.com/matzehuels/flowlayout/pkg/layout"
	"github.com/matzehuels/flowlayout/pkg/observability"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// Request is one layout or validation request.
type Request struct {
	Nodes   []workflow.Node `json:"nodes"`
	Options layout.Options  `json:"options"`

	// Refresh skips the cache lookup; the fresh result is still stored.
	Refresh bool `json:"refresh,omitempty"`
}

// RunInfo describes how a [Runner] produced a result.
type RunInfo struct {
	CacheHit bool
	CacheKey string
	Duration time.Duration
}

// Runner encapsulates pipeline execution with caching.
// Both CLI and HTTP server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different requests.
type Runner struct {
	Orchestrator *Orchestrator
	Cache        cache.Cache
	Keyer        cache.Keyer
	Logger       *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Orchestrator: NewOrchestrator(logger),
		Cache:        c,
		Keyer:        keyer,
		Logger:       logger,
	}
}

// Layout computes a full layout, serving it from the cache when possible.
func (r *Runner) Layout(ctx context.Context, req Request) (*Result, RunInfo, error) {
	return r.execute(ctx, req, ModeLayout)
}

// Validate runs [Orchestrator.ValidateGraph] with caching.
func (r *Runner) Validate(ctx context.Context, req Request) (*Result, RunInfo, error) {
	return r.execute(ctx, req, ModeValidate)
}

func (r *Runner) execute(ctx context.Context, req Request, mode Mode) (*Result, RunInfo, error) {
	start := time.Now()
	info := RunInfo{}

	key, err := r.key(req, mode)
	if err != nil {
		return nil, info, err
	}
	info.CacheKey = key
	kind := cache.KindOf(key)

	if !req.Refresh {
		if res, ok := r.lookup(ctx, key); ok {
			observability.Cache().OnCacheHit(ctx, kind)
			info.CacheHit = true
			info.Duration = time.Since(start)
			r.Logger.Debug("served from cache", "mode", mode, "key", key[len(key)-12:])
			return res, info, nil
		}
		observability.Cache().OnCacheMiss(ctx, kind)
	}

	var res *Result
	if mode == ModeValidate {
		res, err = r.Orchestrator.ValidateGraph(ctx, req.Nodes, req.Options)
	} else {
		res, err = r.Orchestrator.Compute(ctx, req.Nodes, req.Options)
	}
	if err != nil {
		return nil, info, err
	}

	if data, err := json.Marshal(res); err == nil {
		ttl := cache.TTLLayout
		if mode == ModeValidate {
			ttl = cache.TTLValidation
		}
		if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
			r.Logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, kind, len(data))
		}
	}

	info.Duration = time.Since(start)
	return res, info, nil
}

// key derives the cache key from the input and the resolved configuration,
// so two requests that resolve to the same settings share an entry.
func (r *Runner) key(req Request, mode Mode) (string, error) {
	cfg, err := req.Options.Resolve()
	if err != nil {
		return "", err
	}
	inputHash, err := cache.HashJSON(req.Nodes)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "hash input")
	}
	cfgHash, err := cache.HashJSON(struct {
		Config         layout.Config `json:"config"`
		ForceCrossings bool          `json:"force_crossings"`
	}{cfg, req.Options.MinimizeEdgeCrossings != nil})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "hash config")
	}
	opts := cache.KeyOpts{ConfigHash: cfgHash}
	if mode == ModeValidate {
		return r.Keyer.ValidationKey(inputHash, opts), nil
	}
	return r.Keyer.LayoutKey(inputHash, opts), nil
}

// lookup returns a cached result. Read errors and undecodable entries count
// as misses.
func (r *Runner) lookup(ctx context.Context, key string) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		r.Logger.Debug("discarding corrupt cache entry", "err", err)
		_ = r.Cache.Delete(ctx, key)
		return nil, false
	}
	return &res, true
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
