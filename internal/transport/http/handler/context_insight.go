package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"contextinsight/internal/app"
	"contextinsight/internal/transport/http/response"
)

type ContextInsightHandler struct {
	service *app.ContextInsightService
}

func NewContextInsightHandler(service *app.ContextInsightService) *ContextInsightHandler {
	return &ContextInsightHandler{service: service}
}

func (h *ContextInsightHandler) Save(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	data, ok := bindContextData(c)
	if !ok {
		return
	}

	writeResult(c, h.service.Save(c.Request.Context(), sessionID, data))
}

func (h *ContextInsightHandler) Get(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	writeResult(c, h.service.Get(c.Request.Context(), sessionID))
}

func (h *ContextInsightHandler) Update(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	data, ok := bindContextData(c)
	if !ok {
		return
	}

	writeResult(c, h.service.Update(c.Request.Context(), sessionID, data))
}

func (h *ContextInsightHandler) Delete(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	writeResult(c, h.service.Delete(c.Request.Context(), sessionID))
}

func (h *ContextInsightHandler) List(c *gin.Context) {
	result := h.service.List(c.Request.Context())
	if !result.Success {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, result.Error)
		return
	}
	response.OK(c, result.Data)
}

func sessionIDParam(c *gin.Context) (string, bool) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return "", false
	}
	return sessionID, true
}

func bindContextData(c *gin.Context) (app.ContextData, bool) {
	var data app.ContextData
	// An empty body is an empty mapping: every field takes its default.
	if err := c.ShouldBindJSON(&data); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return app.ContextData{}, false
	}
	return data, true
}

func writeResult(c *gin.Context, result app.Result) {
	if result.Success {
		response.OK(c, result)
		return
	}
	if errors.Is(result.Err, app.ErrInsightNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeInsightNotFound, result.Error)
		return
	}
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, result.Error)
}

// Register mounts the insight routes on rg.
func (h *ContextInsightHandler) Register(rg gin.IRoutes) {
	rg.POST("/sessions/:session_id/context-insight", h.Save)
	rg.GET("/sessions/:session_id/context-insight", h.Get)
	rg.PUT("/sessions/:session_id/context-insight", h.Update)
	rg.DELETE("/sessions/:session_id/context-insight", h.Delete)
	rg.GET("/context-insights", h.List)
}
