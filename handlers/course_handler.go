package handlers

import (
	"log"
	"net/http"

	"studydeck/services"

	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	courseService *services.CourseService
	creator       *services.CourseCreator
	courseList    *services.CourseList
	events        services.Publisher
}

func NewCourseHandler(courseService *services.CourseService, creator *services.CourseCreator, courseList *services.CourseList, events services.Publisher) *CourseHandler {
	return &CourseHandler{
		courseService: courseService,
		creator:       creator,
		courseList:    courseList,
		events:        events,
	}
}

// CreateCourse blocks until the course is generated and stored.
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	courseID, err := h.creator.Submit(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": courseID})
}

func (h *CourseHandler) GetCourses(c *gin.Context) {
	courses, err := h.courseService.ListCourses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, courses)
}

func (h *CourseHandler) GetCourseByID(c *gin.Context) {
	courseID, ok := parseCourseID(c)
	if !ok {
		return
	}

	course, err := h.courseService.GetCourse(c.Request.Context(), courseID)
	if err != nil {
		respondError(c, err)
		return
	}

	questions, err := h.courseService.GetQuestions(c.Request.Context(), courseID)
	if err != nil {
		respondError(c, err)
		return
	}
	course.Questions = questions

	c.JSON(http.StatusOK, course)
}

func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	courseID, ok := parseCourseID(c)
	if !ok {
		return
	}

	if err := h.courseService.DeleteCourse(c.Request.Context(), courseID); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("Deleted course %d", courseID)
	h.events.Publish(services.Event{Type: services.EventCourseDeleted, CourseID: courseID})
	c.JSON(http.StatusOK, gin.H{"message": "Course deleted successfully"})
}

// OpenCourse emits open_course for the UI to start a session on it.
func (h *CourseHandler) OpenCourse(c *gin.Context) {
	courseID, ok := parseCourseID(c)
	if !ok {
		return
	}

	if err := h.courseList.Select(c.Request.Context(), courseID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"course_id": courseID})
}
