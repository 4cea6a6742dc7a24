package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"zerotrust-rag/internal/repository"
	"zerotrust-rag/internal/transport/http/middleware"
	"zerotrust-rag/internal/transport/http/response"
)

type AuditHandler struct {
	auditRepo *repository.AuditRepository
}

func NewAuditHandler(auditRepo *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

// List returns the caller's own audit trail, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	username, ok := getStringFromContext(c, middleware.ContextUsernameKey)
	if !ok || username == "" {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := h.auditRepo.ListByUsername(username, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list audit events failed")
		return
	}

	response.OK(c, events)
}
