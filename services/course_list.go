package services

import (
	"context"
	"log"
	"sync"

	"studydeck/models"
)

// CourseReader is the read side of the course store.
type CourseReader interface {
	ListCourses(ctx context.Context) ([]models.CourseSummary, error)
	GetCourse(ctx context.Context, courseID uint) (*models.Course, error)
	GetQuestions(ctx context.Context, courseID uint) ([]models.Question, error)
}

// CourseList keeps the newest-first course list current with course events.
type CourseList struct {
	courses CourseReader
	hub     *Hub

	mutex sync.RWMutex
	items []models.CourseSummary
}

func NewCourseList(courses CourseReader, hub *Hub) *CourseList {
	return &CourseList{courses: courses, hub: hub}
}

func (l *CourseList) Refresh(ctx context.Context) ([]models.CourseSummary, error) {
	items, err := l.courses.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	l.mutex.Lock()
	l.items = items
	l.mutex.Unlock()

	l.hub.Publish(Event{Type: EventCoursesRefreshed, Payload: map[string]interface{}{"courses": items}})
	return items, nil
}

// Items returns the last refreshed snapshot.
func (l *CourseList) Items() []models.CourseSummary {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	out := make([]models.CourseSummary, len(l.items))
	copy(out, l.items)
	return out
}

// Listen refreshes once per course_created or course_deleted event until ctx is done.
func (l *CourseList) Listen(ctx context.Context) {
	sub := l.hub.Subscribe(EventCourseCreated, EventCourseDeleted)
	defer l.hub.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if _, err := l.Refresh(ctx); err != nil {
				log.Printf("Failed to refresh course list after %s(%d): %v", ev.Type, ev.CourseID, err)
			}
		}
	}
}

// Select emits open_course for an existing course.
func (l *CourseList) Select(ctx context.Context, courseID uint) error {
	if _, err := l.courses.GetCourse(ctx, courseID); err != nil {
		return err
	}
	l.hub.Publish(Event{Type: EventOpenCourse, CourseID: courseID})
	return nil
}

// PromptIfEmpty emits open_new_course_form when no course exists yet.
func (l *CourseList) PromptIfEmpty(ctx context.Context) error {
	items, err := l.Refresh(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		l.hub.Publish(Event{Type: EventOpenNewCourseForm})
	}
	return nil
}
