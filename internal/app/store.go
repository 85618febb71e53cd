package app

import (
	"context"
	"log"

	"writing-game-service/internal/domain"
)

// SessionRepository abstracts where sessions live (in-memory, Redis, etc).
type SessionRepository interface {
	// Create registers a fresh session for pin. It fails with domain.ErrPINTaken while an active session holds the PIN.
	Create(ctx context.Context, pin string) (*Session, error)
	Get(pin string) (*Session, bool)
	// Release frees the PIN of an ended session.
	Release(ctx context.Context, pin string)
}

// SubmissionInput carries a graded answer into the store.
// QuestionIndex is the index captured when the student submitted; zero means the current one.
// A non-empty GameID must match the game currently under PIN, otherwise the answer belongs to an ended game.
type SubmissionInput struct {
	PIN           string
	GameID        string
	Student       string
	Answer        string
	Score         int
	Feedback      string
	QuestionIndex int
}

// GameStore is the single owner of session state. Mutations to one PIN are serialized;
// different PINs proceed independently.
type GameStore struct {
	sessions SessionRepository
}

func NewGameStore(sessions SessionRepository) *GameStore {
	return &GameStore{sessions: sessions}
}

// CreateSession opens a session under pin. Picking a free PIN is the caller's job.
func (s *GameStore) CreateSession(ctx context.Context, pin string) (domain.GameState, error) {
	session, err := s.sessions.Create(ctx, pin)
	if err != nil {
		return domain.GameState{}, err
	}
	log.Printf("game %s created", pin)
	return session.State(), nil
}

// PublishQuestion replaces the current question and bumps the question index.
func (s *GameStore) PublishQuestion(_ context.Context, pin string, q domain.Question) (domain.GameState, error) {
	session, ok := s.sessions.Get(pin)
	if !ok {
		return domain.GameState{}, domain.ErrSessionNotFound
	}
	return session.publish(q)
}

// JoinSession adds name to the roster. Joining again with the same name resumes the existing record;
// created reports whether a new record was inserted.
func (s *GameStore) JoinSession(_ context.Context, pin, name string) (record domain.StudentRecord, created bool, err error) {
	_, record, created, err = s.join(pin, name)
	return record, created, err
}

// join also reports the ID of the game that was joined.
func (s *GameStore) join(pin, name string) (string, domain.StudentRecord, bool, error) {
	session, ok := s.sessions.Get(pin)
	if !ok {
		return "", domain.StudentRecord{}, false, domain.ErrSessionNotFound
	}
	record, created, err := session.join(name)
	return session.ID(), record, created, err
}

// RecordSubmission appends a graded answer to the student's history and adds its score to the total.
func (s *GameStore) RecordSubmission(_ context.Context, in SubmissionInput) (domain.Submission, error) {
	session, ok := s.sessions.Get(in.PIN)
	if !ok {
		return domain.Submission{}, domain.ErrSessionNotFound
	}
	return session.record(in)
}

// Subscribe registers fn for every mutation of pin. fn first receives the current state, which is also returned.
func (s *GameStore) Subscribe(_ context.Context, pin string, fn Listener) (domain.GameState, func(), error) {
	session, ok := s.sessions.Get(pin)
	if !ok {
		return domain.GameState{}, nil, domain.ErrSessionNotFound
	}
	state, detach := session.Subscribe(fn)
	return state, detach, nil
}

// EndSession terminates the game: later joins and submissions fail with domain.ErrSessionEnded.
func (s *GameStore) EndSession(ctx context.Context, pin string) (domain.GameState, error) {
	session, ok := s.sessions.Get(pin)
	if !ok {
		return domain.GameState{}, domain.ErrSessionNotFound
	}
	state, err := session.end()
	if err != nil {
		return domain.GameState{}, err
	}
	s.sessions.Release(ctx, pin)
	log.Printf("game %s ended", pin)
	return state, nil
}

// State returns the current state of pin.
func (s *GameStore) State(_ context.Context, pin string) (domain.GameState, error) {
	session, ok := s.sessions.Get(pin)
	if !ok {
		return domain.GameState{}, domain.ErrSessionNotFound
	}
	return session.State(), nil
}
