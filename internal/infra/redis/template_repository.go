package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"writing-game-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TemplateLoader fetches question templates from a backing store (e.g., Postgres).
type TemplateLoader interface {
	LoadTemplate(ctx context.Context, id string) (domain.Template, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)
}

// TemplateRepository caches templates in Redis and falls back to a loader on cache miss.
// Templates are stored as JSON: SET template:{id} {json} EX ttl
type TemplateRepository struct {
	client *redis.Client
	loader TemplateLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewTemplateRepository(client *redis.Client, loader TemplateLoader, ttl time.Duration) *TemplateRepository {
	return &TemplateRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TemplateRepository) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	if tpl, ok := r.cached(ctx, id); ok {
		return tpl, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if tpl, ok := r.cached(ctx, id); ok {
			return tpl, nil
		}

		tpl, err := r.loader.LoadTemplate(ctx, id)
		if err != nil {
			return domain.Template{}, err
		}
		if data, err := json.Marshal(tpl); err == nil {
			_ = r.client.Set(ctx, r.key(id), data, r.ttlWithJitter()).Err()
		}
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

func (r *TemplateRepository) cached(ctx context.Context, id string) (domain.Template, bool) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		return domain.Template{}, false
	}
	var tpl domain.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return domain.Template{}, false
	}
	return tpl, true
}

func (r *TemplateRepository) key(id string) string {
	return "template:" + id
}

func (r *TemplateRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
