package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"writing-game-service/internal/app"
	"writing-game-service/internal/domain"
	"writing-game-service/internal/infra/memory"
)

// scriptedGrader returns the queued grades in order, then zero grades.
type scriptedGrader struct {
	mu     sync.Mutex
	grades []domain.Grade
	calls  []string
}

func (g *scriptedGrader) Grade(_ context.Context, _, _, answer string) domain.Grade {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, answer)
	if len(g.grades) == 0 {
		return domain.Grade{Feedback: "ok", Status: domain.GradeOK}
	}
	next := g.grades[0]
	g.grades = g.grades[1:]
	return next
}

func (g *scriptedGrader) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// blockingGrader parks each call until release is closed.
type blockingGrader struct {
	started chan struct{}
	release chan struct{}
	grade   domain.Grade
}

func newBlockingGrader(grade domain.Grade) *blockingGrader {
	return &blockingGrader{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
		grade:   grade,
	}
}

func (g *blockingGrader) Grade(context.Context, string, string, string) domain.Grade {
	g.started <- struct{}{}
	<-g.release
	return g.grade
}

type fixedPINs struct {
	mu   sync.Mutex
	pins []string
}

func (f *fixedPINs) Next() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	pin := f.pins[0]
	if len(f.pins) > 1 {
		f.pins = f.pins[1:]
	}
	return pin
}

func newTestService(t *testing.T, grader app.Grader) *app.GameService {
	t.Helper()
	templates := memory.NewTemplateRepository(memory.NewStaticTemplateLoader(memory.BuiltinTemplates()), 5*time.Minute)
	return app.NewGameService(app.NewGameStore(memory.NewSessionStore()), grader, templates, nil)
}

func graded(score int, feedback string) domain.Grade {
	return domain.Grade{Score: score, Feedback: feedback, Status: domain.GradeOK}
}

func sampleQuestion() domain.Question {
	return domain.Question{
		Prompt:    `Paraphrase: "have effect on teenagers"`,
		Rubric:    "Score 0-3 for synonym quality",
		TimeLimit: 5,
	}
}
