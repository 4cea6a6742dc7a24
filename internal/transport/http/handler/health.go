package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zerotrust-rag/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	mysqlStatus := h.checkMySQL(ctx)
	redisStatus := h.checkRedis(ctx)
	rmqStatus := h.checkRabbitMQ()
	kbStatus := h.checkKnowledgeBase()

	allOK := mysqlStatus.OK && redisStatus.OK && rmqStatus.OK && kbStatus.OK
	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":        h.app.Config.App.Name,
		"env":        h.app.Config.App.Env,
		"uptime_sec": int(time.Since(h.app.StartedAt).Seconds()),
		"dependencies": gin.H{
			"mysql":          mysqlStatus,
			"redis":          redisStatus,
			"rabbitmq":       rmqStatus,
			"knowledge_base": kbStatus,
		},
	})
}

func (h *HealthHandler) checkMySQL(ctx context.Context) dependencyStatus {
	sqlDB, err := h.app.MySQL.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}

// checkKnowledgeBase verifies the retrieval path is configured and wired.
// There is no cheap liveness ping for Bedrock, so this reports readiness:
// a knowledge base id, a generation model, and initialized clients.
func (h *HealthHandler) checkKnowledgeBase() dependencyStatus {
	if h.app.Config.AWS.KnowledgeBaseID == "" {
		return dependencyStatus{OK: false, Message: "knowledge base id not configured"}
	}
	if h.app.Config.AWS.GenerationModel == "" {
		return dependencyStatus{OK: false, Message: "generation model not configured"}
	}
	if h.app.AWS == nil {
		return dependencyStatus{OK: false, Message: "aws clients not initialized"}
	}
	return dependencyStatus{OK: true}
}
