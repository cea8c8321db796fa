package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"studydeck/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CourseService is the relational store for courses and their questions.
type CourseService struct {
	db    *gorm.DB
	cache CourseCache
	now   func() time.Time
}

func NewCourseService(db *gorm.DB, cache CourseCache) *CourseService {
	return &CourseService{db: db, cache: cache, now: time.Now}
}

func (s *CourseService) CreateCourse(ctx context.Context, name, description string) (uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, &ValidationError{Fields: map[string]string{"name": "is required"}}
	}

	course := models.Course{
		Name:        name,
		Description: description,
		CreatedAt:   s.now().Unix(),
	}

	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return 0, storageError("create course", err)
	}

	s.invalidate(ctx)
	return course.ID, nil
}

// CreateQuestions inserts the batch in one transaction; on any failure no row persists.
func (s *CourseService) CreateQuestions(ctx context.Context, courseID uint, items []QuestionInput) error {
	if err := ValidateQuestions(items); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Course{}).Where("id = ?", courseID).Count(&count).Error; err != nil {
			return storageError("lookup course", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: course %d", ErrNotFound, courseID)
		}
		return insertQuestions(tx, courseID, items, s.now().Unix())
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// CreateCourseWithQuestions persists a validated payload as one unit.
func (s *CourseService) CreateCourseWithQuestions(ctx context.Context, payload *CoursePayload) (uint, error) {
	if err := ValidatePayload(payload); err != nil {
		return 0, err
	}

	createdAt := s.now().Unix()
	course := models.Course{
		Name:        payload.Name,
		Description: payload.Description,
		CreatedAt:   createdAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&course).Error; err != nil {
			return storageError("create course", err)
		}
		return insertQuestions(tx, course.ID, payload.Questions, createdAt)
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx)
	log.Printf("Created course %d (%q) with %d questions", course.ID, course.Name, len(payload.Questions))
	return course.ID, nil
}

func insertQuestions(tx *gorm.DB, courseID uint, items []QuestionInput, createdAt int64) error {
	for i, item := range items {
		question := models.Question{
			Text:        item.Question,
			Answer:      item.Answer,
			Choices:     datatypes.NewJSONSlice(item.Choices),
			Explanation: item.Explanation,
			Difficulty:  item.Difficulty,
			CreatedAt:   createdAt,
			CourseID:    courseID,
		}

		if err := tx.Create(&question).Error; err != nil {
			return storageError(fmt.Sprintf("create question %d", i), err)
		}
	}
	return nil
}

// ListCourses returns every course, newest first.
func (s *CourseService) ListCourses(ctx context.Context) ([]models.CourseSummary, error) {
	var token int64
	if s.cache != nil {
		courses, generation, ok := s.cache.Get(ctx)
		if ok {
			return courses, nil
		}
		token = generation
	}

	courses := []models.CourseSummary{}
	err := s.db.WithContext(ctx).Model(&models.Course{}).
		Select("id", "name", "created_at").
		Order("created_at DESC").
		Order("id DESC").
		Find(&courses).Error
	if err != nil {
		return nil, storageError("list courses", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, token, courses)
	}
	return courses, nil
}

func (s *CourseService) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	var course models.Course
	err := s.db.WithContext(ctx).First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: course %d", ErrNotFound, courseID)
	}
	if err != nil {
		return nil, storageError("get course", err)
	}
	return &course, nil
}

// GetQuestions returns the course's questions in insertion order.
func (s *CourseService) GetQuestions(ctx context.Context, courseID uint) ([]models.Question, error) {
	questions := []models.Question{}
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id").
		Find(&questions).Error
	if err != nil {
		return nil, storageError("get questions", err)
	}
	return questions, nil
}

// DeleteCourse removes the course and every question it owns.
func (s *CourseService) DeleteCourse(ctx context.Context, courseID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// questions are removed explicitly too, for drivers running without foreign keys
		if err := tx.Where("course_id = ?", courseID).Delete(&models.Question{}).Error; err != nil {
			return storageError("delete questions", err)
		}

		result := tx.Delete(&models.Course{}, courseID)
		if result.Error != nil {
			return storageError("delete course", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: course %d", ErrNotFound, courseID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
