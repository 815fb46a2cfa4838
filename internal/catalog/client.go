package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
)

// DefaultTTL bounds how long fetched lists are reused.
const DefaultTTL = 5 * time.Minute

// ErrTemplateNotFound is returned by Client.Template for unknown IDs.
var ErrTemplateNotFound = errors.New("catalog: template not found")

const (
	keyPhases    = "phases"
	keyTemplates = "templates"
)

// Catalog is one consistent view of both lists.
type Catalog struct {
	Phases    []model.PhaseDefinition
	Templates []model.TimelineTemplate
}

// FindTemplate looks a template up by ID.
func (c Catalog) FindTemplate(id string) (model.TimelineTemplate, bool) {
	for _, tpl := range c.Templates {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return model.TimelineTemplate{}, false
}

// ActivePhases filters out inactive catalog entries.
func ActivePhases(defs []model.PhaseDefinition) []model.PhaseDefinition {
	out := make([]model.PhaseDefinition, 0, len(defs))
	for _, d := range defs {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out
}

type cached[V any] struct {
	value     V
	expiresAt time.Time
}

// Client caches a Source. Concurrent fetches of the same list share one
// call. Failed fetches are not cached.
type Client struct {
	src   Source
	ttl   time.Duration
	now   func() time.Time
	log   *logging.Logger
	group singleflight.Group

	mu        sync.RWMutex
	phases    *cached[[]model.PhaseDefinition]
	templates *cached[[]model.TimelineTemplate]
}

type ClientOption func(*Client)

func WithTTL(ttl time.Duration) ClientOption {
	return func(c *Client) { c.ttl = ttl }
}

func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.log = l.With("catalog") }
}

func NewClient(src Source, opts ...ClientOption) *Client {
	c := &Client{src: src, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phases returns the phase catalog.
func (c *Client) Phases(ctx context.Context) ([]model.PhaseDefinition, error) {
	defs, err := fetchCached(ctx, c, keyPhases, &c.phases, c.src.FetchChallengePhases)
	if err != nil {
		return nil, err
	}
	return clonePhaseDefs(defs), nil
}

// Templates returns the timeline templates.
func (c *Client) Templates(ctx context.Context) ([]model.TimelineTemplate, error) {
	tpls, err := fetchCached(ctx, c, keyTemplates, &c.templates, c.src.FetchTimelineTemplates)
	if err != nil {
		return nil, err
	}
	return cloneTemplates(tpls), nil
}

// fetchCached serves slot while fresh and otherwise fetches through the
// singleflight group. The slot is checked again inside the group so a
// caller that missed just before another fetch finished reuses its result.
func fetchCached[V any](ctx context.Context, c *Client, key string, slot **cached[V], fetch func(context.Context) (V, error)) (V, error) {
	fresh := func() (V, bool) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if *slot != nil && c.now().Before((*slot).expiresAt) {
			return (*slot).value, true
		}
		var zero V
		return zero, false
	}
	if v, ok := fresh(); ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		if v, ok := fresh(); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		*slot = &cached[V]{value: v, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		c.log.Debugf("catalog_fetched list=%s", key)
		return v, nil
	})
	if err != nil {
		c.log.Warnf("catalog_fetch_failed list=%s error=%v", key, err)
		var zero V
		return zero, fmt.Errorf("catalog: fetch %s: %w", key, err)
	}
	if shared {
		c.log.Debugf("catalog_fetch_shared list=%s", key)
	}
	return v.(V), nil
}

// Load fetches both lists in parallel.
func (c *Client) Load(ctx context.Context) (Catalog, error) {
	var cat Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defs, err := c.Phases(gctx)
		cat.Phases = defs
		return err
	})
	g.Go(func() error {
		tpls, err := c.Templates(gctx)
		cat.Templates = tpls
		return err
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Template returns one template by ID.
func (c *Client) Template(ctx context.Context, id string) (model.TimelineTemplate, error) {
	tpls, err := c.Templates(ctx)
	if err != nil {
		return model.TimelineTemplate{}, err
	}
	tpl, ok := Catalog{Templates: tpls}.FindTemplate(id)
	if !ok {
		return model.TimelineTemplate{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
	return tpl, nil
}

// Invalidate drops both cached lists.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phases = nil
	c.templates = nil
}
