package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "zerotrust-rag/internal/app"
	"zerotrust-rag/internal/bootstrap"
	"zerotrust-rag/internal/cache"
	"zerotrust-rag/internal/kb"
	"zerotrust-rag/internal/platform/rabbitmq"
	"zerotrust-rag/internal/repository"
	"zerotrust-rag/internal/transport/http/handler"
	"zerotrust-rag/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	auditRepo := repository.NewAuditRepository(app.MySQL)

	answerCache := cache.NewAnswerCache(
		app.Redis,
		time.Duration(app.Config.Cache.AnswerTTLSeconds)*time.Second,
	)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	kbClient := kb.NewClient(app.AWS.AgentRuntime, app.AWS.ModelRuntime, kb.Config{
		KnowledgeBaseID:  app.Config.AWS.KnowledgeBaseID,
		GenerationModel:  app.Config.AWS.GenerationModel,
		RetrievalResults: app.Config.AWS.RetrievalResults,
	})
	requestPublisher := rabbitmq.NewAccessRequestPublisher(app.MQConn, app.Config.RabbitMQ.AccessRequestQueue)
	auditPublisher := rabbitmq.NewAuditPublisher(app.MQConn, app.Config.RabbitMQ.AuditQueue)
	messagePublisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.HistoryQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	queryService := appsvc.NewQueryService(answerCache, kbClient, requestPublisher, auditPublisher)
	sessionService := appsvc.NewSessionService(sessionRepo, messageRepo, messagePublisher, historyCache)

	authHandler := handler.NewAuthHandler(authService)
	queryHandler := handler.NewQueryHandler(authService, queryService, sessionService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	auditHandler := handler.NewAuditHandler(auditRepo)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	queryGroup := v1.Group("/query")
	queryGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	queryGroup.POST("/ask", queryHandler.Ask)

	sessionGroup := v1.Group("/sessions")
	sessionGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	sessionGroup.POST("", sessionHandler.CreateSession)
	sessionGroup.GET("", sessionHandler.ListSessions)
	sessionGroup.DELETE("/:id", sessionHandler.DeleteSession)
	sessionGroup.GET("/history", sessionHandler.GetHistory)

	auditGroup := v1.Group("/audit")
	auditGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	auditGroup.GET("", auditHandler.List)

	return router
}
