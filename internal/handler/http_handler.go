package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/service"
	"github.com/weiawesome/cycredit-chat/pkg/log"
	"github.com/weiawesome/cycredit-chat/pkg/response"
)

type HTTPHandler struct {
	history      service.HistoryService
	chat         service.ChatService
	defaultLimit int
}

func NewHTTPHandler(history service.HistoryService, chat service.ChatService, defaultLimit int) *HTTPHandler {
	if defaultLimit <= 0 {
		defaultLimit = service.DefaultHistoryLimit
	}
	return &HTTPHandler{
		history:      history,
		chat:         chat,
		defaultLimit: defaultLimit,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/chat")
	{
		api.GET("/:scope/:channel/history", h.GetHistory)
		api.GET("/:scope/:channel/online", h.GetOnline)
	}

	r.GET("/health", h.HealthCheck)
	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "no route for "+c.Request.URL.Path)
	})
}

// GetHistory returns a bare JSON array of the room's newest messages.
func (h *HTTPHandler) GetHistory(c *gin.Context) {
	scope := c.Param("scope")
	channel := c.Param("channel")
	c.Set(log.FieldRoom, domain.RoomKey(scope, channel))

	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	messages, err := h.history.GetHistory(c.Request.Context(), scope, channel, limit)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldScope, scope).Str(log.FieldChannel, channel).Msg("history query failed")
		response.InternalError(c, "failed to get chat history")
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *HTTPHandler) GetOnline(c *gin.Context) {
	scope := c.Param("scope")
	channel := c.Param("channel")

	c.JSON(http.StatusOK, gin.H{
		"room":        domain.RoomKey(scope, channel),
		"connections": h.chat.OnlineCount(scope, channel),
	})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
