package facts

import (
	"context"
	"time"

	"github.com/karlseguin/ccache"
)

type cachedSource struct {
	Source
	ttl   time.Duration
	cache *ccache.Cache
}

// Cached remembers the facts of a successful collection for ttl so that
// later runs of a long lived agent do not query the source again. Failures
// are not cached.
func Cached(src Source, ttl time.Duration) Source {
	return &cachedSource{
		Source: src,
		ttl:    ttl,
		cache:  ccache.New(ccache.Configure().MaxSize(16).ItemsToPrune(1)),
	}
}

func (c *cachedSource) Collect(ctx context.Context) (Facts, error) {
	if item := c.cache.Get(c.Name()); item != nil && !item.Expired() {
		if facts, ok := item.Value().(Facts); ok {
			// Copy to protect the cached facts from later merges.
			return facts.clone(), nil
		}
	}
	facts, err := c.Source.Collect(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(c.Name(), facts.clone(), c.ttl)
	return facts, nil
}

func (f Facts) clone() Facts {
	out := make(Facts, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
