package translator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

// Provider translates one piece of text for a fixed language pair.
type Provider interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Factory builds the provider for a pair. It may be slow (model loading).
type Factory func(ctx context.Context, pair Pair) (Provider, error)

// Registry lazily builds and caches one Provider per supported pair.
// Concurrent first requests for the same pair share a single construction.
type Registry struct {
	factory Factory

	mu        sync.RWMutex
	providers map[string]Provider
	group     singleflight.Group
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:   factory,
		providers: make(map[string]Provider),
	}
}

// Get returns the cached provider for code, constructing it on first use.
// Codes outside the supported table fail with ErrUnsupportedLanguage without
// calling the factory. Construction failures are not cached.
func (r *Registry) Get(ctx context.Context, code string) (Provider, error) {
	pair, err := ParsePair(code)
	if err != nil {
		return nil, err
	}

	if p, ok := r.cached(pair.Code); ok {
		return p, nil
	}

	v, err, _ := r.group.Do(pair.Code, func() (any, error) {
		if p, ok := r.cached(pair.Code); ok {
			return p, nil
		}

		log.Info("Loading translation provider for %s", pair.Code)
		p, err := r.factory(ctx, pair)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider for %s: %w", pair.Code, err)
		}
		p = lineSafe{p}

		r.mu.Lock()
		r.providers[pair.Code] = p
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

// Loaded reports the pair codes with a constructed provider
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.providers))
	for _, code := range Codes() {
		if _, ok := r.providers[code]; ok {
			ret = append(ret, code)
		}
	}
	return ret
}

func (r *Registry) cached(code string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[code]
	return p, ok
}

var hardBreaks = strings.NewReplacer("\r\n", `\N`, "\n", `\N`, "\r", `\N`)

// lineSafe returns whitespace-only text unchanged without calling the backend and
// turns newlines in the backend's answer into ASS hard breaks, so a translation
// always fits in the single raw line it replaces.
type lineSafe struct {
	Provider
}

func (p lineSafe) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	out, err := p.Provider.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	return hardBreaks.Replace(strings.TrimRight(out, "\r\n")), nil
}
