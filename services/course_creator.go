package services

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// CourseWriter persists a generated course.
type CourseWriter interface {
	CreateCourseWithQuestions(ctx context.Context, payload *CoursePayload) (uint, error)
}

type SubmitRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// CourseCreator bridges a prompt submission to a persisted course.
type CourseCreator struct {
	generator Generator
	courses   CourseWriter
	events    Publisher
}

func NewCourseCreator(generator Generator, courses CourseWriter, events Publisher) *CourseCreator {
	return &CourseCreator{
		generator: generator,
		courses:   courses,
		events:    events,
	}
}

// Submit generates, validates and stores a course, then emits course_created.
// Nothing is persisted on failure. A response arriving after ctx is done is
// discarded with ErrDiscarded.
func (c *CourseCreator) Submit(ctx context.Context, req *SubmitRequest) (uint, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return 0, &ValidationError{Fields: map[string]string{"prompt": "is required"}}
	}

	payload, err := c.generator.Generate(ctx, GenerationRequest{
		Prompt:   prompt,
		Endpoint: req.Endpoint,
		APIKey:   req.APIKey,
		Model:    req.Model,
	})
	if ctx.Err() != nil {
		log.Printf("Discarding generation result: %v", ctx.Err())
		return 0, fmt.Errorf("%w: %v", ErrDiscarded, ctx.Err())
	}
	if err != nil {
		log.Printf("Course generation failed: %v", err)
		return 0, err
	}

	if err := ValidatePayload(payload); err != nil {
		return 0, err
	}

	courseID, err := c.courses.CreateCourseWithQuestions(ctx, payload)
	if err != nil {
		log.Printf("Failed to store generated course: %v", err)
		return 0, err
	}

	if c.events != nil {
		c.events.Publish(Event{Type: EventCourseCreated, CourseID: courseID})
	}
	return courseID, nil
}
