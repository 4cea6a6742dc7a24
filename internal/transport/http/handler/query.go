package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"zerotrust-rag/internal/access"
	"zerotrust-rag/internal/app"
	"zerotrust-rag/internal/transport/http/response"
)

type QueryHandler struct {
	authService    *app.AuthService
	queryService   *app.QueryService
	sessionService *app.SessionService
}

type AskRequest struct {
	Question  string `json:"question" binding:"required,max=2000"`
	SessionID uint   `json:"session_id"`
}

func NewQueryHandler(authService *app.AuthService, queryService *app.QueryService, sessionService *app.SessionService) *QueryHandler {
	return &QueryHandler{
		authService:    authService,
		queryService:   queryService,
		sessionService: sessionService,
	}
}

func (h *QueryHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	// The stored user record is the authority on role, re-read on every
	// query; the token only identifies the caller.
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch user failed")
		return
	}
	if user == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unknown identity")
		return
	}

	result, err := h.queryService.Ask(c.Request.Context(), app.AskInput{
		UserID:     user.ID,
		Username:   user.Username,
		EmployeeID: user.EmployeeID,
		Role:       access.Role(user.Role),
		Question:   req.Question,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrQuestionEmpty), errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, access.ErrUnknownRole):
			response.Error(c, http.StatusForbidden, response.CodeUnknownRole, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "query failed")
		}
		return
	}

	if req.SessionID != 0 {
		if err := h.sessionService.AppendExchange(c.Request.Context(), userID, req.SessionID, req.Question, result.Answer); err != nil {
			// The answer was produced; a history write failure only costs
			// the transcript entry.
			log.Printf("append session history failed: %v", err)
		}
	}

	response.OK(c, result)
}
