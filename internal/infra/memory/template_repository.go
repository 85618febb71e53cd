package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"writing-game-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// TemplateLoader fetches question templates from a backing store (e.g., Postgres).
type TemplateLoader interface {
	LoadTemplate(ctx context.Context, id string) (domain.Template, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)
}

// TemplateRepository caches templates with TTL to avoid repeated DB hits.
type TemplateRepository struct {
	loader TemplateLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedTemplate
}

type cachedTemplate struct {
	template  domain.Template
	expiresAt time.Time
}

func NewTemplateRepository(loader TemplateLoader, ttl time.Duration) *TemplateRepository {
	return &TemplateRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTemplate),
	}
}

func (r *TemplateRepository) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	if tpl, ok := r.cached(id); ok {
		return tpl, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		if tpl, ok := r.cached(id); ok {
			return tpl, nil
		}

		tpl, err := r.loader.LoadTemplate(ctx, id)
		if err != nil {
			return domain.Template{}, err
		}

		r.mu.Lock()
		r.cache[id] = cachedTemplate{
			template:  tpl,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return tpl, nil
	})
	if err != nil {
		return domain.Template{}, err
	}
	return result.(domain.Template), nil
}

// ListTemplates always asks the loader; only single lookups are cached.
func (r *TemplateRepository) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	return r.loader.ListTemplates(ctx)
}

func (r *TemplateRepository) cached(id string) (domain.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[id]; ok && entry.expiresAt.After(r.clock()) {
		return entry.template, true
	}
	return domain.Template{}, false
}

func (r *TemplateRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticTemplateLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticTemplateLoader struct {
	templates map[string]domain.Template
}

func NewStaticTemplateLoader(templates map[string]domain.Template) *StaticTemplateLoader {
	return &StaticTemplateLoader{templates: templates}
}

func (l *StaticTemplateLoader) LoadTemplate(_ context.Context, id string) (domain.Template, error) {
	if tpl, ok := l.templates[id]; ok {
		return tpl, nil
	}
	return domain.Template{}, domain.ErrTemplateNotFound
}

func (l *StaticTemplateLoader) ListTemplates(context.Context) ([]domain.Template, error) {
	out := make([]domain.Template, 0, len(l.templates))
	for _, tpl := range l.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// BuiltinTemplates are served when no Postgres is configured.
func BuiltinTemplates() map[string]domain.Template {
	return map[string]domain.Template{
		"synonym-hunt": {
			ID:     "synonym-hunt",
			Name:   "Synonym Hunt",
			Prompt: `Find a synonym or paraphrase for: "have effect on teenagers"`,
			Rubric: `Score from 0-3:
- 0 points: completely wrong
- 1 point: simple but correct synonym
- 2 points: good collocation or academic word
- 3 points: excellent, formal paraphrase`,
			TimeLimit: 5,
		},
	}
}
