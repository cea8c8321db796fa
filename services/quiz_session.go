package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"studydeck/models"
)

// QuestionSource loads a course and its questions for a quiz session.
type QuestionSource interface {
	GetCourse(ctx context.Context, courseID uint) (*models.Course, error)
	GetQuestions(ctx context.Context, courseID uint) ([]models.Question, error)
}

type SessionState string

const (
	StateWelcome  SessionState = "WELCOME"
	StateQuestion SessionState = "QUESTION"
	StateAnswer   SessionState = "ANSWER"
	StateEmpty    SessionState = "EMPTY"
)

const noQuestionsMessage = "No questions found"

type QuestionView struct {
	ID          uint     `json:"id"`
	Text        string   `json:"question"`
	Choices     []string `json:"choices"`
	ChoiceCount int      `json:"choice_count"`
	Difficulty  int      `json:"difficulty"`
	Position    int      `json:"position"`
}

type AnswerResult struct {
	QuestionID      uint    `json:"question_id"`
	ChoiceIndex     int     `json:"choice_index"`
	IsCorrect       bool    `json:"is_correct"`
	Answer          string  `json:"answer"`
	Explanation     string  `json:"explanation"`
	IncorrectChoice *string `json:"incorrect_choice,omitempty"`
}

// SessionView is a rendering snapshot of a quiz session.
type SessionView struct {
	ID         string        `json:"id"`
	State      SessionState  `json:"state"`
	CourseID   uint          `json:"course_id,omitempty"`
	CourseName string        `json:"course_name,omitempty"`
	Question   *QuestionView `json:"question,omitempty"`
	Result     *AnswerResult `json:"result,omitempty"`
	Total      int           `json:"total"`
	Remaining  int           `json:"remaining"`
	Answered   int           `json:"answered"`
	Correct    int           `json:"correct"`
	Message    string        `json:"message,omitempty"`
}

type SessionOption func(*QuizSession)

// WithShuffle randomizes question order on every Load using r.
func WithShuffle(r *rand.Rand) SessionOption {
	return func(s *QuizSession) {
		s.rng = r
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *QuizSession) {
		s.now = now
	}
}

// QuizSession walks a learner through a course one question at a time:
// WELCOME -> QUESTION -> ANSWER -> QUESTION ... -> WELCOME.
// The current question is never a member of the remaining queue.
type QuizSession struct {
	id     string
	source QuestionSource
	rng    *rand.Rand
	now    func() time.Time

	mutex      sync.Mutex
	state      SessionState
	course     *models.Course
	remaining  []models.Question
	current    *models.Question
	result     *AnswerResult
	total      int
	answered   int
	correct    int
	message    string
	closed     bool
	lastActive time.Time
}

func NewQuizSession(id string, source QuestionSource, opts ...SessionOption) *QuizSession {
	s := &QuizSession{
		id:     id,
		source: source,
		now:    time.Now,
		state:  StateWelcome,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActive = s.now()
	return s
}

func (s *QuizSession) ID() string {
	return s.id
}

// Load resets the session and starts the given course. A missing course or
// one without questions leaves the session in EMPTY and returns ErrNotFound;
// a storage failure also lands in EMPTY but returns ErrStorage.
func (s *QuizSession) Load(ctx context.Context, courseID uint) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.reset()

	course, err := s.source.GetCourse(ctx, courseID)
	if err != nil {
		return s.fail(err)
	}

	questions, err := s.source.GetQuestions(ctx, courseID)
	if err != nil {
		return s.fail(err)
	}

	s.course = course
	if len(questions) == 0 {
		s.state = StateEmpty
		s.message = noQuestionsMessage
		return fmt.Errorf("%w: course %d has no questions", ErrNotFound, courseID)
	}

	s.remaining = make([]models.Question, len(questions))
	copy(s.remaining, questions)
	if s.rng != nil {
		s.rng.Shuffle(len(s.remaining), func(i, j int) {
			s.remaining[i], s.remaining[j] = s.remaining[j], s.remaining[i]
		})
	}
	s.total = len(s.remaining)

	s.advance()
	return nil
}

// fail leaves the session in EMPTY. Only a missing course reads as
// "No questions found"; any other failure shows its own text.
func (s *QuizSession) fail(err error) error {
	s.state = StateEmpty
	if errors.Is(err, ErrNotFound) {
		s.message = noQuestionsMessage
	} else {
		s.message = err.Error()
	}
	return err
}

func (s *QuizSession) reset() {
	s.state = StateWelcome
	s.course = nil
	s.remaining = nil
	s.current = nil
	s.result = nil
	s.total = 0
	s.answered = 0
	s.correct = 0
	s.message = ""
	s.lastActive = s.now()
}

// advance pops the next question, or completes the session when none remain.
func (s *QuizSession) advance() {
	s.result = nil
	s.lastActive = s.now()

	if len(s.remaining) == 0 {
		s.current = nil
		s.state = StateWelcome
		return
	}

	next := s.remaining[0]
	s.remaining = s.remaining[1:]
	s.current = &next
	s.state = StateQuestion
}

// Choose records the learner's pick for the current question. It is only
// valid in QUESTION and index must be within the question's choices.
func (s *QuizSession) Choose(index int) (AnswerResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return AnswerResult{}, ErrSessionClosed
	}
	if s.state != StateQuestion || s.current == nil {
		return AnswerResult{}, fmt.Errorf("%w: choose is not valid in state %s", ErrContractViolation, s.state)
	}
	if index < 0 || index >= len(s.current.Choices) {
		return AnswerResult{}, fmt.Errorf("%w: choice index %d out of range [0, %d)", ErrContractViolation, index, len(s.current.Choices))
	}

	result := AnswerResult{
		QuestionID:  s.current.ID,
		ChoiceIndex: index,
		IsCorrect:   s.current.IsCorrect(index),
		Answer:      s.current.Answer,
		Explanation: s.current.Explanation,
	}
	if !result.IsCorrect {
		picked := s.current.Choices[index]
		result.IncorrectChoice = &picked
	}

	s.answered++
	if result.IsCorrect {
		s.correct++
	}
	s.result = &result
	s.state = StateAnswer
	s.lastActive = s.now()

	return result, nil
}

// Continue moves on from ANSWER to the next question or back to WELCOME.
func (s *QuizSession) Continue() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateAnswer {
		return fmt.Errorf("%w: continue is not valid in state %s", ErrContractViolation, s.state)
	}

	s.advance()
	return nil
}

// Close discards the session; every later transition fails.
func (s *QuizSession) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed = true
	s.remaining = nil
	s.current = nil
	s.result = nil
}

func (s *QuizSession) State() SessionState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *QuizSession) LastActive() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastActive
}

func (s *QuizSession) View() SessionView {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	view := SessionView{
		ID:        s.id,
		State:     s.state,
		Total:     s.total,
		Remaining: len(s.remaining),
		Answered:  s.answered,
		Correct:   s.correct,
		Message:   s.message,
	}
	if s.course != nil {
		view.CourseID = s.course.ID
		view.CourseName = s.course.Name
	}

	if s.current != nil && (s.state == StateQuestion || s.state == StateAnswer) {
		choices := make([]string, len(s.current.Choices))
		copy(choices, s.current.Choices)
		view.Question = &QuestionView{
			ID:          s.current.ID,
			Text:        s.current.Text,
			Choices:     choices,
			ChoiceCount: len(choices),
			Difficulty:  s.current.Difficulty,
			Position:    s.total - len(s.remaining),
		}
	}

	if s.result != nil && s.state == StateAnswer {
		result := *s.result
		view.Result = &result
	}

	return view
}
