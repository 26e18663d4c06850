package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/middleware"
	"github.com/feedfuse/feedfuse/internal/ranking"
	"github.com/feedfuse/feedfuse/pkg/models"
)

type RankingHandler struct {
	logger       *logrus.Logger
	orchestrator *ranking.Orchestrator
}

func NewRankingHandler(logger *logrus.Logger, orchestrator *ranking.Orchestrator) *RankingHandler {
	return &RankingHandler{
		logger:       logger,
		orchestrator: orchestrator,
	}
}

// Rank orders a candidate set for the authenticated user.
func (h *RankingHandler) Rank(c *gin.Context) {
	var req models.RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to bind rank request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	authUserID, interestToken := middleware.GetUserFromContext(c)
	userID := req.UserID
	if userID == "" {
		userID = authUserID
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "MISSING_USER_ID",
				"message": "user_id is required",
			},
		})
		return
	}

	resp := h.orchestrator.Rank(c.Request.Context(), userID, req.Candidates, req.Limit, interestToken)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Insights reports the engine's current view of a user: cold-start state,
// boost, interests, and the ranking method in effect.
func (h *RankingHandler) Insights(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "MISSING_USER_ID",
				"message": "user id path parameter is required",
			},
		})
		return
	}

	_, interestToken := middleware.GetUserFromContext(c)
	insights := h.orchestrator.Insights(c.Request.Context(), userID, interestToken)
	c.JSON(http.StatusOK, gin.H{"data": insights})
}
