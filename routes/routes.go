package routes

import (
	"log"
	"net/http"

	"studydeck/handlers"
	"studydeck/middleware"
	"studydeck/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// the API only listens on the local bind address
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func SetupRoutes(
	router *gin.Engine,
	courseHandler *handlers.CourseHandler,
	sessionHandler *handlers.SessionHandler,
	navigationHandler *handlers.NavigationHandler,
	hub *services.Hub,
	jwtSecret string,
) {
	auth := middleware.AuthMiddleware(jwtSecret)

	api := router.Group("/api")
	api.Use(auth)
	{
		courses := api.Group("/courses")
		{
			courses.GET("", courseHandler.GetCourses)
			courses.POST("", courseHandler.CreateCourse)
			courses.GET("/:id", courseHandler.GetCourseByID)
			courses.DELETE("/:id", courseHandler.DeleteCourse)
			courses.POST("/:id/open", courseHandler.OpenCourse)
		}

		navigation := api.Group("/navigation")
		{
			navigation.POST("/courses", navigationHandler.ShowCourses)
			navigation.POST("/new-course", navigationHandler.ShowNewCourseForm)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("", sessionHandler.OpenSession)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.POST("/:id/load", sessionHandler.LoadCourse)
			sessions.POST("/:id/choose", sessionHandler.Choose)
			sessions.POST("/:id/continue", sessionHandler.Continue)
			sessions.DELETE("/:id", sessionHandler.CloseSession)
		}
	}

	// WebSocket event stream for the UI
	router.GET("/ws", auth, func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := hub.RegisterClient(conn)
		log.Printf("WebSocket connection established: %s", client.ID())
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": hub.ClientCount()})
	})
}
