package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"studydeck/services"

	"github.com/gin-gonic/gin"
)

// statusClientClosedRequest reports a generation whose caller went away.
const statusClientClosedRequest = 499

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrContractViolation):
		return http.StatusConflict
	case errors.Is(err, services.ErrDiscarded):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}

	c.JSON(statusFor(err), body)
}

func parseCourseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course ID"})
		return 0, false
	}
	return uint(id), true
}
