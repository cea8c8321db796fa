package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// SessionStore keeps the open quiz sessions of the local UI by id.
type SessionStore struct {
	source  QuestionSource
	shuffle bool
	now     func() time.Time

	mutex    sync.RWMutex
	sessions map[string]*QuizSession
}

func NewSessionStore(source QuestionSource, shuffle bool) *SessionStore {
	return &SessionStore{
		source:   source,
		shuffle:  shuffle,
		now:      time.Now,
		sessions: make(map[string]*QuizSession),
	}
}

// Open creates a session and loads courseID into it. A session that lands in
// EMPTY is returned with the load error but is not kept.
func (s *SessionStore) Open(ctx context.Context, courseID uint) (*QuizSession, error) {
	opts := []SessionOption{WithClock(s.now)}
	if s.shuffle {
		opts = append(opts, WithShuffle(rand.New(rand.NewSource(s.now().UnixNano()))))
	}

	session := NewQuizSession(uuid.NewString(), s.source, opts...)
	if err := session.Load(ctx, courseID); err != nil {
		return session, err
	}

	s.mutex.Lock()
	s.sessions[session.ID()] = session
	s.mutex.Unlock()

	log.Printf("Quiz session %s opened on course %d", session.ID(), courseID)
	return session, nil
}

func (s *SessionStore) Get(id string) (*QuizSession, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return session, nil
}

func (s *SessionStore) Close(id string) error {
	s.mutex.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mutex.Unlock()

	if !ok {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	session.Close()
	return nil
}

func (s *SessionStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// Sweep closes every session idle for longer than maxIdle and returns how many were evicted.
func (s *SessionStore) Sweep(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mutex.Lock()
	var stale []*QuizSession
	for id, session := range s.sessions {
		if session.LastActive().Before(cutoff) {
			stale = append(stale, session)
			delete(s.sessions, id)
		}
	}
	s.mutex.Unlock()

	for _, session := range stale {
		session.Close()
	}
	return len(stale)
}

// StartSweeper schedules Sweep on schedule. The caller stops the returned cron.
func StartSweeper(store *SessionStore, schedule string, maxIdle time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		if n := store.Sweep(maxIdle); n > 0 {
			log.Printf("Evicted %d idle quiz sessions", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule session sweep %q: %w", schedule, err)
	}

	log.Printf("Session sweep scheduled %q, idle timeout %s", schedule, maxIdle)
	c.Start()
	return c, nil
}
