package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"writing-game-service/internal/domain"
)

// Host drives one teacher's game: setup -> (testing) -> live -> setup ... -> terminated.
type Host struct {
	svc *GameService

	mu    sync.Mutex
	phase domain.HostPhase
	draft domain.Question
	tests []domain.TestResult
	pin   string
}

func newHost(svc *GameService) *Host {
	return &Host{
		svc:   svc,
		phase: domain.PhaseSetup,
		draft: domain.Question{TimeLimit: 5},
	}
}

func (h *Host) Phase() domain.HostPhase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// PIN is empty until the first publish.
func (h *Host) PIN() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pin
}

func (h *Host) Draft() domain.Question {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.draft
}

// TestResults lists the rubric trials of the current draft, oldest first.
func (h *Host) TestResults() []domain.TestResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.TestResult(nil), h.tests...)
}

// EditDraft replaces the draft question. From testing it goes back to setup and drops earlier trials.
func (h *Host) EditDraft(q domain.Question) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.requireLocked(domain.PhaseSetup, domain.PhaseTesting); err != nil {
		return err
	}
	h.draft = q
	h.tests = nil
	h.phase = domain.PhaseSetup
	return nil
}

// LoadTemplate copies a stored template into the draft.
func (h *Host) LoadTemplate(ctx context.Context, id string) (domain.Question, error) {
	if h.svc.templates == nil {
		return domain.Question{}, domain.ErrTemplateNotFound
	}
	tpl, err := h.svc.templates.GetTemplate(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	q := tpl.Question()
	if err := h.EditDraft(q); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// TestAnswer grades a sample answer against the draft without touching the store.
func (h *Host) TestAnswer(ctx context.Context, answer string) (domain.TestResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return domain.TestResult{}, fmt.Errorf("%w: answer is required", domain.ErrValidation)
	}

	h.mu.Lock()
	if err := h.requireLocked(domain.PhaseSetup, domain.PhaseTesting); err != nil {
		h.mu.Unlock()
		return domain.TestResult{}, err
	}
	draft := h.draft
	q, err := NormalizeQuestion(draft)
	if err != nil {
		h.mu.Unlock()
		return domain.TestResult{}, err
	}
	h.phase = domain.PhaseTesting
	h.mu.Unlock()

	result := domain.TestResult{
		Answer: answer,
		Grade:  h.svc.grader.Grade(ctx, q.Prompt, q.Rubric, answer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Drop the trial if the draft changed while it was being graded.
	if h.phase == domain.PhaseTesting && h.draft == draft {
		h.tests = append(h.tests, result)
	}
	return result, nil
}

// Publish exposes the draft to students. The first publish opens a session under a fresh PIN;
// later ones reuse it. Publishing from testing requires at least one trial.
func (h *Host) Publish(ctx context.Context) (domain.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.requireLocked(domain.PhaseSetup, domain.PhaseTesting); err != nil {
		return domain.GameState{}, err
	}
	if h.phase == domain.PhaseTesting && len(h.tests) == 0 {
		return domain.GameState{}, fmt.Errorf("%w: test the rubric before publishing", domain.ErrInvalidTransition)
	}
	q, err := NormalizeQuestion(h.draft)
	if err != nil {
		return domain.GameState{}, err
	}

	if h.pin == "" {
		state, err := openSession(ctx, h.svc.store, h.svc.pins)
		if err != nil {
			return domain.GameState{}, err
		}
		h.pin = state.PIN
	}

	state, err := h.svc.store.PublishQuestion(ctx, h.pin, q)
	if err != nil {
		return domain.GameState{}, err
	}
	h.draft = q
	h.tests = nil
	h.phase = domain.PhaseLive
	return state, nil
}

// NextQuestion leaves the live phase for a new round in the same session.
// The prompt and rubric are cleared; the time limit is kept.
func (h *Host) NextQuestion() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.requireLocked(domain.PhaseLive); err != nil {
		return err
	}
	h.draft = domain.Question{TimeLimit: h.draft.TimeLimit}
	h.tests = nil
	h.phase = domain.PhaseSetup
	return nil
}

// End terminates the game. Students can no longer join or submit.
func (h *Host) End(ctx context.Context) (domain.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.phase == domain.PhaseTerminated {
		return domain.GameState{}, domain.ErrInvalidTransition
	}
	h.phase = domain.PhaseTerminated
	if h.pin == "" {
		return domain.GameState{}, nil
	}
	return h.svc.store.EndSession(ctx, h.pin)
}

func (h *Host) requireLocked(allowed ...domain.HostPhase) error {
	for _, p := range allowed {
		if h.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidTransition, h.phase)
}
