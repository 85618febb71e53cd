package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"writing-game-service/internal/app"
	"writing-game-service/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const mirrorTimeout = 2 * time.Second

// The PIN key holds the owner's token; only the owner may extend or delete it.
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions still live in a local map to reuse the in-process broadcast logic.
//   - PINs are reserved with SETNX under a per-game token and kept alive while the game is active,
//     so two instances never hand out the same live PIN.
//   - Every mutation mirrors the JSON state to game:state:{pin} and publishes it on
//     game:updates:{pin} for cross-instance observers.
type SessionStore struct {
	client     *redis.Client
	ttl        time.Duration
	renewEvery time.Duration
	now        func() time.Time
	mu         sync.RWMutex
	sessions   map[string]*app.Session
	leases     map[string]*lease
}

type lease struct {
	token string
	stop  chan struct{}
	once  sync.Once
}

func (l *lease) cancel() {
	l.once.Do(func() { close(l.stop) })
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:     client,
		ttl:        ttl,
		renewEvery: ttl / 3,
		now:        time.Now,
		sessions:   make(map[string]*app.Session),
		leases:     make(map[string]*lease),
	}
}

func (s *SessionStore) Create(ctx context.Context, pin string) (*app.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[pin]; ok && existing.Active() {
		return nil, domain.ErrPINTaken
	}

	token := uuid.NewString()
	reserved, err := s.client.SetNX(ctx, PINKey(pin), token, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve pin: %w", err)
	}
	if !reserved {
		return nil, domain.ErrPINTaken
	}

	if old, ok := s.leases[pin]; ok {
		old.cancel()
	}
	l := &lease{token: token, stop: make(chan struct{})}
	s.leases[pin] = l
	if s.ttl > 0 && s.renewEvery > 0 {
		go s.keepAlive(pin, l)
	}

	session := app.NewSessionWithClock(pin, s.now)
	session.Subscribe(s.mirror(pin))
	s.sessions[pin] = session
	return session, nil
}

func (s *SessionStore) Get(pin string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[pin]
	return session, ok
}

// Release drops this instance's PIN reservation; a reservation taken by another instance is left alone.
// The mirrored final state expires with the TTL.
func (s *SessionStore) Release(ctx context.Context, pin string) {
	s.mu.Lock()
	l, ok := s.leases[pin]
	delete(s.leases, pin)
	s.mu.Unlock()
	if !ok {
		return
	}
	l.cancel()
	if err := releaseScript.Run(ctx, s.client, []string{PINKey(pin)}, l.token).Err(); err != nil {
		log.Printf("release pin %s: %v", pin, err)
	}
}

// keepAlive extends the PIN reservation until the lease is cancelled or lost to another owner.
func (s *SessionStore) keepAlive(pin string, l *lease) {
	ticker := time.NewTicker(s.renewEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
			renewed, err := renewScript.Run(ctx, s.client, []string{PINKey(pin)}, l.token, s.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				log.Printf("renew pin %s: %v", pin, err)
			case renewed == 0:
				log.Printf("pin %s reservation lost", pin)
				return
			}
		}
	}
}

// mirror writes each state to Redis. It runs under the session lock, so writes keep mutation order.
func (s *SessionStore) mirror(pin string) app.Listener {
	return func(state domain.GameState) {
		data, err := json.Marshal(state)
		if err != nil {
			log.Printf("encode state %s: %v", pin, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()

		pipe := s.client.Pipeline()
		pipe.Set(ctx, StateKey(pin), data, s.ttl)
		pipe.Publish(ctx, UpdatesChannel(pin), data)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("mirror state %s: %v", pin, err)
		}
	}
}

func PINKey(pin string) string {
	return "game:pin:" + pin
}

func StateKey(pin string) string {
	return "game:state:" + pin
}

func UpdatesChannel(pin string) string {
	return "game:updates:" + pin
}
