package handlers

import (
	"net/http"

	"studydeck/services"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions *services.SessionStore
}

func NewSessionHandler(sessions *services.SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type loadCourseRequest struct {
	CourseID uint `json:"course_id" binding:"required"`
}

type chooseRequest struct {
	ChoiceIndex *int `json:"choice_index" binding:"required"`
}

func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req loadCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.Open(c.Request.Context(), req.CourseID)
	if err != nil {
		respondSessionError(c, session, err)
		return
	}

	c.JSON(http.StatusCreated, session.View())
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, session.View())
}

// LoadCourse restarts an existing session on another (or the same) course.
func (h *SessionHandler) LoadCourse(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req loadCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := session.Load(c.Request.Context(), req.CourseID); err != nil {
		respondSessionError(c, session, err)
		return
	}

	c.JSON(http.StatusOK, session.View())
}

func (h *SessionHandler) Choose(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req chooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := session.Choose(*req.ChoiceIndex)
	if err != nil {
		respondSessionError(c, session, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result, "session": session.View()})
}

func (h *SessionHandler) Continue(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := session.Continue(); err != nil {
		respondSessionError(c, session, err)
		return
	}

	c.JSON(http.StatusOK, session.View())
}

func (h *SessionHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

func (h *SessionHandler) lookup(c *gin.Context) (*services.QuizSession, bool) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session, true
}

// respondSessionError keeps the session view next to the error so the UI can
// render the EMPTY state.
func respondSessionError(c *gin.Context, session *services.QuizSession, err error) {
	body := gin.H{"error": err.Error()}
	if session != nil {
		body["session"] = session.View()
	}
	c.JSON(statusFor(err), body)
}
