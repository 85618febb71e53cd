package app_test

import (
	"context"
	"errors"
	"testing"

	"writing-game-service/internal/app"
	"writing-game-service/internal/domain"
	"writing-game-service/internal/infra/memory"
)

func TestHostLifecycle(t *testing.T) {
	ctx := context.Background()
	grader := &scriptedGrader{grades: []domain.Grade{graded(2, "Nice")}}
	service := newTestService(t, grader).WithPINs(&fixedPINs{pins: []string{"4821"}})

	host, err := service.OpenHost("")
	if err != nil {
		t.Fatalf("open host: %v", err)
	}
	if host.Phase() != domain.PhaseSetup {
		t.Fatalf("expected setup, got %s", host.Phase())
	}
	if err := host.EditDraft(sampleQuestion()); err != nil {
		t.Fatalf("edit: %v", err)
	}

	result, err := host.TestAnswer(ctx, "influence teenagers")
	if err != nil {
		t.Fatalf("test answer: %v", err)
	}
	if result.Grade.Score != 2 || host.Phase() != domain.PhaseTesting || len(host.TestResults()) != 1 {
		t.Fatalf("unexpected test state: %+v phase=%s", result, host.Phase())
	}
	if _, err := service.Store().State(ctx, "4821"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("testing must not touch the store, got %v", err)
	}

	state, err := host.Publish(ctx)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if host.Phase() != domain.PhaseLive || host.PIN() != "4821" || state.QuestionIndex != 1 {
		t.Fatalf("unexpected live state phase=%s pin=%s index=%d", host.Phase(), host.PIN(), state.QuestionIndex)
	}
	if err := host.EditDraft(sampleQuestion()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("editing while live must fail, got %v", err)
	}

	if err := host.NextQuestion(); err != nil {
		t.Fatalf("next: %v", err)
	}
	draft := host.Draft()
	if host.Phase() != domain.PhaseSetup || draft.Prompt != "" || draft.Rubric != "" || draft.TimeLimit != 5 {
		t.Fatalf("next question should clear the draft, got %+v", draft)
	}

	next := domain.Question{Prompt: "Paraphrase: make a decision", Rubric: "0-3", TimeLimit: 3}
	if err := host.EditDraft(next); err != nil {
		t.Fatalf("edit 2: %v", err)
	}
	state, err = host.Publish(ctx)
	if err != nil {
		t.Fatalf("publish 2: %v", err)
	}
	if state.PIN != "4821" || state.QuestionIndex != 2 || state.CurrentQuestion.Prompt != next.Prompt {
		t.Fatalf("expected same session with index 2, got %+v", state)
	}

	state, err = host.End(ctx)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if state.Active || host.Phase() != domain.PhaseTerminated {
		t.Fatalf("expected terminated game")
	}
	if _, err := host.Publish(ctx); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("publish after end must fail, got %v", err)
	}
	if _, err := host.End(ctx); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second end must fail, got %v", err)
	}
}

func TestHostPublishValidation(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, &scriptedGrader{})
	host, _ := service.OpenHost("")

	cases := []domain.Question{
		{Prompt: "", Rubric: "r", TimeLimit: 5},
		{Prompt: "p", Rubric: "   ", TimeLimit: 5},
		{Prompt: "p", Rubric: "r", TimeLimit: 0},
		{Prompt: "p", Rubric: "r", TimeLimit: 11},
	}
	for _, q := range cases {
		if err := host.EditDraft(q); err != nil {
			t.Fatalf("edit: %v", err)
		}
		if _, err := host.Publish(ctx); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", q, err)
		}
	}
	if host.PIN() != "" {
		t.Fatalf("no session should be created on invalid publish")
	}
}

func TestHostTestingRequiresTrialBeforePublish(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, &scriptedGrader{})
	host, _ := service.OpenHost("")
	_ = host.EditDraft(sampleQuestion())

	if _, err := host.TestAnswer(ctx, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty trial, got %v", err)
	}
	if _, err := host.TestAnswer(ctx, "a trial"); err != nil {
		t.Fatalf("trial: %v", err)
	}
	if err := host.EditDraft(sampleQuestion()); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if host.Phase() != domain.PhaseSetup || len(host.TestResults()) != 0 {
		t.Fatalf("editing should return to setup and drop trials")
	}
	if _, err := host.Publish(ctx); err != nil {
		t.Fatalf("publishing straight from setup: %v", err)
	}
}

func TestHostLoadTemplate(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, &scriptedGrader{})
	host, _ := service.OpenHost("")

	q, err := host.LoadTemplate(ctx, "synonym-hunt")
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if host.Draft() != q || q.TimeLimit != 5 || q.Rubric == "" {
		t.Fatalf("template not loaded into draft: %+v", host.Draft())
	}
	if _, err := host.LoadTemplate(ctx, "missing"); !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("expected template not found, got %v", err)
	}
}

func TestPINCollisionRegenerates(t *testing.T) {
	ctx := context.Background()
	pins := &fixedPINs{pins: []string{"1111", "1111", "1111", "2222"}}
	service := newTestService(t, &scriptedGrader{}).WithPINs(pins)

	first, _ := service.OpenHost("")
	_ = first.EditDraft(sampleQuestion())
	if _, err := first.Publish(ctx); err != nil {
		t.Fatalf("publish first: %v", err)
	}
	second, _ := service.OpenHost("")
	_ = second.EditDraft(sampleQuestion())
	if _, err := second.Publish(ctx); err != nil {
		t.Fatalf("publish second: %v", err)
	}
	if first.PIN() != "1111" || second.PIN() != "2222" {
		t.Fatalf("expected pins 1111 and 2222, got %s and %s", first.PIN(), second.PIN())
	}
}

func TestPINExhaustion(t *testing.T) {
	ctx := context.Background()
	store := app.NewGameStore(memory.NewSessionStore())
	_, _ = store.CreateSession(ctx, "1111")
	service := app.NewGameService(store, &scriptedGrader{}, nil, nil).WithPINs(&fixedPINs{pins: []string{"1111"}})

	host, _ := service.OpenHost("")
	_ = host.EditDraft(sampleQuestion())
	if _, err := host.Publish(ctx); !errors.Is(err, domain.ErrNoFreePIN) {
		t.Fatalf("expected no free pin, got %v", err)
	}
}

func TestRandomPINsAreFourDigits(t *testing.T) {
	pins := app.NewRandomPINs(42)
	for i := 0; i < 500; i++ {
		pin := pins.Next()
		if len(pin) != 4 || pin < "1000" || pin > "9999" {
			t.Fatalf("unexpected pin %q", pin)
		}
	}
}

func TestTeacherGate(t *testing.T) {
	gate, err := app.NewTeacherGate("lime2024", "")
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	service := app.NewGameService(app.NewGameStore(memory.NewSessionStore()), &scriptedGrader{}, nil, gate)

	if _, err := service.OpenHost("wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := service.OpenHost("lime2024"); err != nil {
		t.Fatalf("expected access, got %v", err)
	}

	open, _ := app.NewTeacherGate("", "")
	if !open.Open() || open.Check("anything") != nil {
		t.Fatalf("gate without passphrase should be open")
	}
	if _, err := app.NewTeacherGate("", "not-a-bcrypt-hash"); err == nil {
		t.Fatalf("expected invalid hash error")
	}
}
