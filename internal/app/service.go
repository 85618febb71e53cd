package app

import (
	"context"
	"sync"

	"writing-game-service/internal/domain"
)

// Grader grades one answer. Implementations never fail; failures are encoded in the returned Grade.
type Grader interface {
	Grade(ctx context.Context, question, rubric, answer string) domain.Grade
}

// TemplateRepository loads question templates (from cache/backing store).
type TemplateRepository interface {
	GetTemplate(ctx context.Context, id string) (domain.Template, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)
}

// GameService wires the store, the grader and templates into the teacher and student protocols.
type GameService struct {
	store     *GameStore
	grader    Grader
	templates TemplateRepository
	gate      *TeacherGate
	pins      PINSource
}

func NewGameService(store *GameStore, grader Grader, templates TemplateRepository, gate *TeacherGate) *GameService {
	if gate == nil {
		gate = &TeacherGate{}
	}
	return &GameService{
		store:     store,
		grader:    grader,
		templates: templates,
		gate:      gate,
		pins:      defaultPINs(),
	}
}

// WithPINs swaps the PIN source; useful for deterministic tests.
func (s *GameService) WithPINs(pins PINSource) *GameService {
	s.pins = pins
	return s
}

func (s *GameService) Store() *GameStore {
	return s.store
}

// OpenHost checks the teacher passphrase and starts a host in the setup phase.
func (s *GameService) OpenHost(passphrase string) (*Host, error) {
	if err := s.gate.Check(passphrase); err != nil {
		return nil, err
	}
	return newHost(s), nil
}

// JoinGame validates the join request and registers (or resumes) the student.
func (s *GameService) JoinGame(ctx context.Context, req domain.JoinRequest) (*Player, error) {
	req, err := NormalizeJoin(req)
	if err != nil {
		return nil, err
	}
	gameID, record, _, err := s.store.join(req.PIN, req.Name)
	if err != nil {
		return nil, err
	}
	return newPlayer(s, req.PIN, gameID, record), nil
}

// Templates lists the available question templates.
func (s *GameService) Templates(ctx context.Context) ([]domain.Template, error) {
	if s.templates == nil {
		return nil, nil
	}
	return s.templates.ListTemplates(ctx)
}

// Subscribe returns a channel that receives state updates for a game, starting with the current state.
// Slow readers only see the newest state. The channel is closed after the final state of an ended game
// or when the returned cancel function is invoked; callers must cancel to avoid leaks.
func (s *GameService) Subscribe(ctx context.Context, pin string) (<-chan domain.GameState, func(), error) {
	ch := make(chan domain.GameState, 8)
	closed := false

	// Runs under the session lock, so pushes and close never race each other.
	push := func(state domain.GameState) {
		if closed {
			return
		}
		select {
		case ch <- state:
		default:
			// drop the stale update so a slow client never blocks the game
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
		if !state.Active {
			closed = true
			close(ch)
		}
	}

	_, detach, err := s.store.Subscribe(ctx, pin, push)
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			// detach takes the session lock; no push runs after it returns.
			detach()
			if !closed {
				closed = true
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}
