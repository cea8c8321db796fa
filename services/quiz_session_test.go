package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"studydeck/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type memorySource struct {
	courses      map[uint]*models.Course
	questions    map[uint][]models.Question
	questionsErr error
}

func newMemorySource() *memorySource {
	return &memorySource{
		courses:   map[uint]*models.Course{},
		questions: map[uint][]models.Question{},
	}
}

func (m *memorySource) add(id uint, name string, qs ...models.Question) {
	m.courses[id] = &models.Course{ID: id, Name: name}
	for i := range qs {
		qs[i].CourseID = id
		if qs[i].ID == 0 {
			qs[i].ID = id*100 + uint(i)
		}
	}
	m.questions[id] = qs
}

func (m *memorySource) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	course, ok := m.courses[courseID]
	if !ok {
		return nil, fmt.Errorf("%w: course %d", ErrNotFound, courseID)
	}
	return course, nil
}

func (m *memorySource) GetQuestions(ctx context.Context, courseID uint) ([]models.Question, error) {
	if m.questionsErr != nil {
		return nil, m.questionsErr
	}
	return m.questions[courseID], nil
}

func mq(text, answer string, choices ...string) models.Question {
	return models.Question{
		Text:        text,
		Answer:      answer,
		Choices:     datatypes.NewJSONSlice(choices),
		Explanation: "because " + answer,
		Difficulty:  1,
	}
}

func TestColorsScenario(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors", mq("Red+Blue=?", "Purple", "Purple", "Green", "Orange"))

	s := NewQuizSession("s1", src)
	require.NoError(t, s.Load(context.Background(), 1))

	view := s.View()
	assert.Equal(t, StateQuestion, view.State)
	assert.Equal(t, "Colors", view.CourseName)
	require.NotNil(t, view.Question)
	assert.Equal(t, "Red+Blue=?", view.Question.Text)
	assert.Equal(t, 3, view.Question.ChoiceCount)
	assert.Equal(t, []string{"Purple", "Green", "Orange"}, view.Question.Choices)

	result, err := s.Choose(1)
	require.NoError(t, err)
	assert.False(t, result.IsCorrect)
	require.NotNil(t, result.IncorrectChoice)
	assert.Equal(t, "Green", *result.IncorrectChoice)
	assert.Equal(t, "Purple", result.Answer)
	assert.Equal(t, "because Purple", result.Explanation)

	view = s.View()
	assert.Equal(t, StateAnswer, view.State)
	require.NotNil(t, view.Result)
	assert.Equal(t, 1, view.Answered)
	assert.Equal(t, 0, view.Correct)

	require.NoError(t, s.Continue())
	view = s.View()
	assert.Equal(t, StateWelcome, view.State)
	assert.Nil(t, view.Question)
	assert.Nil(t, view.Result)
}

func TestCorrectChoiceHasNoIncorrectFeedback(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors", mq("Red+Blue=?", "Purple", "Green", "Purple"))

	s := NewQuizSession("s1", src)
	require.NoError(t, s.Load(context.Background(), 1))

	result, err := s.Choose(1)
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Nil(t, result.IncorrectChoice)
	assert.Equal(t, 1, s.View().Correct)
}

func TestSessionVisitsEveryQuestionInOrder(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Capitals",
		mq("France?", "Paris", "Paris", "Lyon"),
		mq("Spain?", "Madrid", "Madrid", "Seville", "Bilbao"),
		mq("Italy?", "Rome", "Milan", "Rome", "Turin", "Naples"),
	)

	s := NewQuizSession("s1", src)
	require.NoError(t, s.Load(context.Background(), 1))

	var seen []string
	for s.State() == StateQuestion {
		view := s.View()
		seen = append(seen, view.Question.Text)
		assert.Equal(t, len(seen), view.Question.Position)
		assert.Equal(t, 3-len(seen), view.Remaining)

		_, err := s.Choose(0)
		require.NoError(t, err)
		require.NoError(t, s.Continue())
	}

	assert.Equal(t, []string{"France?", "Spain?", "Italy?"}, seen)
	view := s.View()
	assert.Equal(t, StateWelcome, view.State)
	assert.Equal(t, 3, view.Answered)
	assert.Equal(t, 2, view.Correct)
	assert.Zero(t, view.Remaining)
}

func TestChooseBoundsFollowChoiceCount(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Pairs", mq("Yes or no?", "Yes", "Yes", "No"))

	s := NewQuizSession("s1", src)
	require.NoError(t, s.Load(context.Background(), 1))
	assert.Equal(t, 2, s.View().Question.ChoiceCount)

	for _, index := range []int{-1, 2, 3} {
		_, err := s.Choose(index)
		assert.ErrorIs(t, err, ErrContractViolation, "index %d", index)
	}
	assert.Equal(t, StateQuestion, s.State())

	_, err := s.Choose(1)
	require.NoError(t, err)
}

func TestTransitionsOutOfState(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors", mq("Red+Blue=?", "Purple", "Purple", "Green"))

	s := NewQuizSession("s1", src)

	_, err := s.Choose(0)
	assert.ErrorIs(t, err, ErrContractViolation, "choose in WELCOME")
	assert.ErrorIs(t, s.Continue(), ErrContractViolation, "continue in WELCOME")

	require.NoError(t, s.Load(context.Background(), 1))
	assert.ErrorIs(t, s.Continue(), ErrContractViolation, "continue in QUESTION")

	_, err = s.Choose(0)
	require.NoError(t, err)
	_, err = s.Choose(0)
	assert.ErrorIs(t, err, ErrContractViolation, "choose in ANSWER")
	assert.Equal(t, 1, s.View().Answered)
}

func TestLoadMissingCourseIsEmpty(t *testing.T) {
	s := NewQuizSession("s1", newMemorySource())

	err := s.Load(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)

	view := s.View()
	assert.Equal(t, StateEmpty, view.State)
	assert.Equal(t, noQuestionsMessage, view.Message)
	assert.Nil(t, view.Question)

	_, err = s.Choose(0)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestLoadCourseWithoutQuestionsIsEmpty(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Hollow")

	s := NewQuizSession("s1", src)
	err := s.Load(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	view := s.View()
	assert.Equal(t, StateEmpty, view.State)
	assert.Equal(t, "Hollow", view.CourseName)
	assert.Zero(t, view.Total)
}

func TestLoadStorageFailureKeepsItsMessage(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors", mq("Red+Blue=?", "Purple", "Purple", "Green"))
	src.questionsErr = storageError("get questions", errors.New("database is locked"))

	s := NewQuizSession("s1", src)
	err := s.Load(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrNotFound)

	view := s.View()
	assert.Equal(t, StateEmpty, view.State)
	assert.NotEqual(t, noQuestionsMessage, view.Message)
	assert.Contains(t, view.Message, "database is locked")

	src.questionsErr = nil
	require.NoError(t, s.Load(context.Background(), 1))
	assert.Empty(t, s.View().Message)
}

func TestReloadResetsSession(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors",
		mq("Red+Blue=?", "Purple", "Purple", "Green"),
		mq("Blue+Yellow=?", "Green", "Purple", "Green"),
	)
	src.add(2, "Pairs", mq("Yes or no?", "Yes", "Yes", "No"))

	s := NewQuizSession("s1", src)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, 1))
	_, err := s.Choose(0)
	require.NoError(t, err)

	// re-entering mid-course discards progress
	require.NoError(t, s.Load(ctx, 2))
	view := s.View()
	assert.Equal(t, StateQuestion, view.State)
	assert.Equal(t, "Pairs", view.CourseName)
	assert.Equal(t, "Yes or no?", view.Question.Text)
	assert.Zero(t, view.Answered)
	assert.Equal(t, 1, view.Total)

	require.NoError(t, s.Load(ctx, 1))
	assert.Equal(t, "Red+Blue=?", s.View().Question.Text)
	assert.Equal(t, 1, s.View().Remaining)

	assert.ErrorIs(t, s.Load(ctx, 99), ErrNotFound)
	require.NoError(t, s.Load(ctx, 1))
	assert.Equal(t, StateQuestion, s.State())
}

func TestCurrentQuestionNotInRemaining(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors",
		mq("A?", "a", "a", "b"),
		mq("B?", "b", "a", "b"),
	)

	s := NewQuizSession("s1", src)
	require.NoError(t, s.Load(context.Background(), 1))

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, q := range s.remaining {
		assert.NotEqual(t, s.current.ID, q.ID)
	}
}

func TestLoadDoesNotMutateSource(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors",
		mq("A?", "a", "a", "b"),
		mq("B?", "b", "a", "b"),
		mq("C?", "c", "c", "b"),
	)

	s := NewQuizSession("s1", src, WithShuffle(rand.New(rand.NewSource(1))))
	require.NoError(t, s.Load(context.Background(), 1))

	assert.Equal(t, "A?", src.questions[1][0].Text)
	assert.Equal(t, "B?", src.questions[1][1].Text)
	assert.Equal(t, "C?", src.questions[1][2].Text)
}

func TestShuffleVisitsEveryQuestionOnce(t *testing.T) {
	src := newMemorySource()
	var qs []models.Question
	for i := 0; i < 5; i++ {
		qs = append(qs, mq(fmt.Sprintf("Q%d", i), "a", "a", "b"))
	}
	src.add(1, "Many", qs...)

	s := NewQuizSession("s1", src, WithShuffle(rand.New(rand.NewSource(42))))
	require.NoError(t, s.Load(context.Background(), 1))

	seen := map[string]int{}
	for s.State() == StateQuestion {
		seen[s.View().Question.Text]++
		_, err := s.Choose(0)
		require.NoError(t, err)
		require.NoError(t, s.Continue())
	}

	assert.Len(t, seen, 5)
	for text, n := range seen {
		assert.Equal(t, 1, n, text)
	}
}

func TestClosedSessionRejectsTransitions(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors", mq("Red+Blue=?", "Purple", "Purple", "Green"))

	s := NewQuizSession("s1", src)
	require.NoError(t, s.Load(context.Background(), 1))
	s.Close()

	_, err := s.Choose(0)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, err, ErrContractViolation)
	assert.ErrorIs(t, s.Continue(), ErrSessionClosed)
	assert.ErrorIs(t, s.Load(context.Background(), 1), ErrSessionClosed)
}

func TestLastActiveTracksTransitions(t *testing.T) {
	src := newMemorySource()
	src.add(1, "Colors", mq("Red+Blue=?", "Purple", "Purple", "Green"))

	clock := steppingClock(time.Unix(1_700_000_000, 0))
	s := NewQuizSession("s1", src, WithClock(clock))
	created := s.LastActive()

	require.NoError(t, s.Load(context.Background(), 1))
	loaded := s.LastActive()
	assert.True(t, loaded.After(created))

	_, err := s.Choose(0)
	require.NoError(t, err)
	assert.True(t, s.LastActive().After(loaded))
}

func TestSessionWithStoredCourse(t *testing.T) {
	courses := NewCourseService(newTestDB(t), nil)
	id, err := courses.CreateCourseWithQuestions(context.Background(), samplePayload("Colors"))
	require.NoError(t, err)

	s := NewQuizSession("s1", courses)
	require.NoError(t, s.Load(context.Background(), id))

	view := s.View()
	assert.Equal(t, "Red+Blue=?", view.Question.Text)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 2, view.Remaining)
}
