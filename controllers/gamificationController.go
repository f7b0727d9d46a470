package controllers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"civicsync-be/middlewares"
	"civicsync-be/services"
)

type GamificationController struct {
	game   *services.GamificationService
	logger *slog.Logger
}

func NewGamificationController(game *services.GamificationService, logger *slog.Logger) *GamificationController {
	return &GamificationController{game: game, logger: logger}
}

func (h *GamificationController) GetCommunityDashboard(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	d, err := h.game.CommunityDashboard(ctx, c.DefaultQuery("timeframe", "all"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *GamificationController) GetNeighborhoodStats(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := h.game.NeighborhoodStats(ctx, c.Query("pincode"), c.DefaultQuery("timeframe", "all"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *GamificationController) GetPersonalContributions(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	pc, err := h.game.PersonalContributions(ctx, middlewares.CurrentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pc)
}

func (h *GamificationController) ClaimReward(c *gin.Context) {
	var input struct {
		RewardID string `json:"rewardId" binding:"required"`
		Cost     int64  `json:"cost" binding:"required,gt=0"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	claim, err := h.game.ClaimReward(ctx, middlewares.CurrentUser(c), input.RewardID, input.Cost)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Reward claimed successfully",
		"rewardId":         claim.RewardID,
		"creditsDeducted":  claim.CreditsDeducted,
		"remainingCredits": claim.RemainingCredits,
	})
}
