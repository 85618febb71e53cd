package app

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"writing-game-service/internal/domain"
)

const maxPINAttempts = 32

// PINSource yields candidate PINs.
type PINSource interface {
	Next() string
}

// RandomPINs draws 4-digit PINs (1000-9999) uniformly at random.
type RandomPINs struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomPINs(seed int64) *RandomPINs {
	return &RandomPINs{rnd: rand.New(rand.NewSource(seed))}
}

func (g *RandomPINs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return strconv.Itoa(1000 + g.rnd.Intn(9000))
}

func defaultPINs() *RandomPINs {
	return NewRandomPINs(time.Now().UnixNano())
}

// openSession creates a session under a fresh PIN, regenerating on collision with a live session.
func openSession(ctx context.Context, store *GameStore, pins PINSource) (domain.GameState, error) {
	for i := 0; i < maxPINAttempts; i++ {
		state, err := store.CreateSession(ctx, pins.Next())
		if errors.Is(err, domain.ErrPINTaken) {
			continue
		}
		return state, err
	}
	return domain.GameState{}, domain.ErrNoFreePIN
}
