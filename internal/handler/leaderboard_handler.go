package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/service"
	"github.com/weiawesome/cycredit-chat/pkg/log"
	"github.com/weiawesome/cycredit-chat/pkg/response"
)

type LeaderboardHandler struct {
	service service.LeaderboardService
}

func NewLeaderboardHandler(svc service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: svc}
}

type addScoreRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Delta       *int   `json:"delta"`
}

type setScoreRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       *int   `json:"score"`
}

type scoreResponse struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h *LeaderboardHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/leaderboard")
	{
		api.GET("/top", h.Top)
		api.POST("/add", h.Add)
		api.POST("/set", h.Set)
		api.POST("/addForUser", h.AddForUser)
	}
}

func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit := service.LeaderboardSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	top, err := h.service.Top(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}

func (h *LeaderboardHandler) Add(c *gin.Context) {
	var req addScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Delta == nil {
		response.BadRequest(c, "body must be {userId, displayName, delta}")
		return
	}
	h.respond(c, func() (*domain.LeaderboardScore, error) {
		return h.service.AddScore(c.Request.Context(), req.UserID, req.DisplayName, *req.Delta)
	})
}

func (h *LeaderboardHandler) Set(c *gin.Context) {
	var req setScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Score == nil {
		response.BadRequest(c, "body must be {userId, displayName, score}")
		return
	}
	h.respond(c, func() (*domain.LeaderboardScore, error) {
		return h.service.SetScore(c.Request.Context(), req.UserID, req.DisplayName, *req.Score)
	})
}

// AddForUser is the query-string form of Add.
func (h *LeaderboardHandler) AddForUser(c *gin.Context) {
	delta, err := strconv.Atoi(c.Query("delta"))
	if err != nil {
		response.BadRequest(c, "delta must be an integer")
		return
	}
	h.respond(c, func() (*domain.LeaderboardScore, error) {
		return h.service.AddScore(c.Request.Context(), c.Query("userId"), c.Query("displayName"), delta)
	})
}

func (h *LeaderboardHandler) respond(c *gin.Context, update func() (*domain.LeaderboardScore, error)) {
	s, err := update()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, scoreResponse{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		Score:       s.Score,
		UpdatedAt:   s.UpdatedAt,
	})
}

func (h *LeaderboardHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrInvalidUser) {
		response.BadRequest(c, err.Error())
		return
	}
	l := log.Ctx(c.Request.Context())
	l.Error().Err(err).Msg("leaderboard request failed")
	response.InternalError(c, "leaderboard unavailable")
}
