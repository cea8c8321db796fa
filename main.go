package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"studydeck/config"
	"studydeck/handlers"
	"studydeck/middleware"
	"studydeck/models"
	"studydeck/routes"
	"studydeck/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := models.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Redis only backs the course list cache
	var cache services.CourseCache
	if redisClient := config.InitRedis(cfg); redisClient != nil {
		cache = services.NewRedisCourseCache(redisClient, cfg.CourseCacheTTL)
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	courseService := services.NewCourseService(db, cache)
	generator := services.NewOpenAIGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.GenerationTimeout)
	sessionStore := services.NewSessionStore(courseService, cfg.ShuffleQuestions)

	hub := services.NewHub()
	courseCreator := services.NewCourseCreator(generator, courseService, hub)
	courseList := services.NewCourseList(courseService, hub)

	hub.SetStateSync(func(ctx context.Context) (interface{}, error) {
		courses, err := courseService.ListCourses(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"courses": courses}, nil
	})
	go hub.Run(ctx)
	go courseList.Listen(ctx)

	if err := courseList.PromptIfEmpty(ctx); err != nil {
		log.Printf("Failed to load course list: %v", err)
	}

	sweeper, err := services.StartSweeper(sessionStore, cfg.SessionSweepSpec, cfg.SessionIdleTimeout)
	if err != nil {
		log.Fatal("Failed to start session sweeper:", err)
	}

	if cfg.JWTSecret != "" {
		if err := middleware.WriteTokenFile(cfg.UITokenFile, cfg.JWTSecret, "local-ui", 24*time.Hour); err != nil {
			log.Fatal("Failed to write UI token:", err)
		}
		log.Printf("UI token (24h) written to %s", cfg.UITokenFile)
	}

	// Initialize handlers
	courseHandler := handlers.NewCourseHandler(courseService, courseCreator, courseList, hub)
	sessionHandler := handlers.NewSessionHandler(sessionStore)
	navigationHandler := handlers.NewNavigationHandler(hub)

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.CORS())
	routes.SetupRoutes(router, courseHandler, sessionHandler, navigationHandler, hub, cfg.JWTSecret)

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.BindAddress, cfg.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	<-sweeper.Stop().Done()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
