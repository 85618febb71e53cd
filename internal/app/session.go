package app

import (
	"sort"
	"sync"
	"time"

	"writing-game-service/internal/domain"

	"github.com/google/uuid"
)

// Listener receives the full session state after every mutation.
// It runs synchronously while the session is locked and must not call back into the same session.
type Listener func(domain.GameState)

type subscriber struct {
	id int
	fn Listener
}

// Session is the in-memory state of one game, serialized by its own lock.
type Session struct {
	id        string
	pin       string
	createdAt time.Time
	now       func() time.Time

	mu            sync.Mutex
	active        bool
	question      *domain.Question
	publishedAt   time.Time
	questionIndex int
	students      map[string]*domain.StudentRecord
	subscribers   []subscriber
	nextSubID     int
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(pin string) *Session {
	return NewSessionWithClock(pin, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(pin string, now func() time.Time) *Session {
	return &Session{
		id:        uuid.NewString(),
		pin:       pin,
		createdAt: now(),
		now:       now,
		active:    true,
		students:  make(map[string]*domain.StudentRecord),
	}
}

func (s *Session) PIN() string {
	return s.pin
}

// ID distinguishes this game from earlier or later games under the same PIN.
func (s *Session) ID() string {
	return s.id
}

// Active reports whether the session still accepts joins and submissions.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State returns a copy of the current session state.
func (s *Session) State() domain.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn and immediately delivers the current state to it.
// Listeners run in registration order. On an ended session fn only sees the final state.
// The returned detach function is idempotent.
func (s *Session) Subscribe(fn Listener) (domain.GameState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	initial := s.snapshotLocked()
	fn(initial)
	if !s.active {
		return initial, func() {}
	}

	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	detach := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
	return initial, detach
}

func (s *Session) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Session) publish(q domain.Question) (domain.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return domain.GameState{}, domain.ErrSessionEnded
	}
	s.question = &q
	s.questionIndex++
	s.publishedAt = s.now()
	return s.broadcastLocked(), nil
}

// join inserts a record for name unless it already exists; an existing record is resumed untouched.
func (s *Session) join(name string) (domain.StudentRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return domain.StudentRecord{}, false, domain.ErrSessionEnded
	}
	if existing, ok := s.students[name]; ok {
		return copyRecord(existing), false, nil
	}
	record := &domain.StudentRecord{
		Name:        name,
		Submissions: []domain.Submission{},
		JoinedAt:    s.now(),
	}
	s.students[name] = record
	s.broadcastLocked()
	return copyRecord(record), true, nil
}

func (s *Session) record(in SubmissionInput) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || (in.GameID != "" && in.GameID != s.id) {
		return domain.Submission{}, domain.ErrSessionEnded
	}
	student, ok := s.students[in.Student]
	if !ok {
		return domain.Submission{}, domain.ErrStudentNotFound
	}
	if s.questionIndex == 0 {
		return domain.Submission{}, domain.ErrNoQuestion
	}
	index := in.QuestionIndex
	if index == 0 {
		index = s.questionIndex
	}
	if index < 1 || index > s.questionIndex {
		return domain.Submission{}, domain.ErrInvalidQuestionIndex
	}
	score := in.Score
	if score < 0 {
		score = 0
	}

	sub := domain.Submission{
		ID:            uuid.NewString(),
		Answer:        in.Answer,
		Score:         score,
		Feedback:      in.Feedback,
		QuestionIndex: index,
		SubmittedAt:   s.now(),
	}
	student.Submissions = append(student.Submissions, sub)
	student.TotalScore += score
	s.broadcastLocked()
	return sub, nil
}

// end marks the session inactive, notifies listeners one last time and detaches them.
func (s *Session) end() (domain.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return domain.GameState{}, domain.ErrSessionEnded
	}
	s.active = false
	state := s.broadcastLocked()
	s.subscribers = nil
	return state, nil
}

func (s *Session) broadcastLocked() domain.GameState {
	state := s.snapshotLocked()
	for _, sub := range s.subscribers {
		sub.fn(state)
	}
	return state
}

func (s *Session) snapshotLocked() domain.GameState {
	state := domain.GameState{
		PIN:           s.pin,
		GameID:        s.id,
		CreatedAt:     s.createdAt,
		Active:        s.active,
		QuestionIndex: s.questionIndex,
		Students:      make(map[string]domain.StudentRecord, len(s.students)),
		Leaderboard:   make([]domain.LeaderboardEntry, 0, len(s.students)),
		UpdatedAt:     s.now(),
	}
	if s.question != nil {
		q := *s.question
		publishedAt := s.publishedAt
		state.CurrentQuestion = &q
		state.PublishedAt = &publishedAt
	}

	for name, student := range s.students {
		state.Students[name] = copyRecord(student)
		current := 0
		for _, sub := range student.Submissions {
			if sub.QuestionIndex == s.questionIndex {
				current++
			}
		}
		state.Leaderboard = append(state.Leaderboard, domain.LeaderboardEntry{
			Name:            name,
			TotalScore:      student.TotalScore,
			Submissions:     len(student.Submissions),
			CurrentAnswered: current,
		})
	}

	sort.Slice(state.Leaderboard, func(i, j int) bool {
		a, b := state.Leaderboard[i], state.Leaderboard[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.Name < b.Name
	})
	return state
}

func copyRecord(r *domain.StudentRecord) domain.StudentRecord {
	out := *r
	out.Submissions = append([]domain.Submission(nil), r.Submissions...)
	if out.Submissions == nil {
		out.Submissions = []domain.Submission{}
	}
	return out
}
