package handlers

import (
	"net/http"

	"studydeck/services"

	"github.com/gin-gonic/gin"
)

type NavigationHandler struct {
	events services.Publisher
}

func NewNavigationHandler(events services.Publisher) *NavigationHandler {
	return &NavigationHandler{events: events}
}

func (h *NavigationHandler) ShowCourses(c *gin.Context) {
	h.events.Publish(services.Event{Type: services.EventOpenCoursesList})
	c.Status(http.StatusAccepted)
}

func (h *NavigationHandler) ShowNewCourseForm(c *gin.Context) {
	h.events.Publish(services.Event{Type: services.EventOpenNewCourseForm})
	c.Status(http.StatusAccepted)
}
