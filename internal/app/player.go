package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"writing-game-service/internal/domain"
)

// Player drives one student's side of a game: waiting -> answering <-> submitting.
// It stays bound to the game it joined even if the PIN is later reused.
type Player struct {
	svc    *GameService
	pin    string
	gameID string
	name   string

	mu         sync.Mutex
	submitting bool
	history    []domain.Submission
}

func newPlayer(svc *GameService, pin, gameID string, record domain.StudentRecord) *Player {
	return &Player{
		svc:     svc,
		pin:     pin,
		gameID:  gameID,
		name:    record.Name,
		history: append([]domain.Submission(nil), record.Submissions...),
	}
}

func (p *Player) PIN() string  { return p.pin }
func (p *Player) Name() string { return p.name }

// History returns the student's own submissions in submission order.
func (p *Player) History() []domain.Submission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Submission(nil), p.history...)
}

// Phase derives the student's phase from the game state and any pending submission.
func (p *Player) Phase(ctx context.Context) domain.PlayerPhase {
	state, err := p.svc.store.State(ctx, p.pin)
	if err != nil || !state.Active || state.GameID != p.gameID {
		return domain.PlayerEnded
	}
	p.mu.Lock()
	submitting := p.submitting
	p.mu.Unlock()
	switch {
	case submitting:
		return domain.PlayerSubmitting
	case state.CurrentQuestion == nil:
		return domain.PlayerWaiting
	default:
		return domain.PlayerAnswering
	}
}

// Submit grades answer against the current question and records it. The question index is captured
// before grading, so a question published meanwhile does not change attribution. Grading failures
// still produce a (zero score) submission. Only one submission per player may be in flight.
func (p *Player) Submit(ctx context.Context, answer string) (domain.Submission, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return domain.Submission{}, fmt.Errorf("%w: answer is required", domain.ErrValidation)
	}

	p.mu.Lock()
	if p.submitting {
		p.mu.Unlock()
		return domain.Submission{}, domain.ErrSubmissionInFlight
	}
	p.submitting = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.submitting = false
		p.mu.Unlock()
	}()

	state, err := p.svc.store.State(ctx, p.pin)
	if err != nil {
		return domain.Submission{}, err
	}
	if !state.Active || state.GameID != p.gameID {
		return domain.Submission{}, domain.ErrSessionEnded
	}
	if state.CurrentQuestion == nil {
		return domain.Submission{}, domain.ErrNoQuestion
	}
	q := *state.CurrentQuestion

	grade := p.svc.grader.Grade(ctx, q.Prompt, q.Rubric, answer)

	sub, err := p.svc.store.RecordSubmission(ctx, SubmissionInput{
		PIN:           p.pin,
		GameID:        p.gameID,
		Student:       p.name,
		Answer:        answer,
		Score:         grade.Score,
		Feedback:      grade.Feedback,
		QuestionIndex: state.QuestionIndex,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Submission{}, domain.ErrSessionEnded
		}
		return domain.Submission{}, err
	}

	p.mu.Lock()
	p.history = append(p.history, sub)
	p.mu.Unlock()
	return sub, nil
}
