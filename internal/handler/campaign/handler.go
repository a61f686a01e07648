package campaign

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/handler"
	"github.com/mondo989/ReallyGoodJob/internal/middleware"
	campaignService "github.com/mondo989/ReallyGoodJob/internal/service/campaign"
	scheduleService "github.com/mondo989/ReallyGoodJob/internal/service/schedule"
)

type Handler struct {
	campaigns *campaignService.Service
	schedules *scheduleService.Service
}

func NewHandler(campaigns *campaignService.Service, schedules *scheduleService.Service) *Handler {
	return &Handler{campaigns: campaigns, schedules: schedules}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	campaigns := r.Group("/campaigns")
	{
		campaigns.POST("", h.Submit)
		campaigns.GET("", h.List)
		campaigns.GET("/mine", h.ListMine)
		campaigns.GET("/:id", h.Get)
		campaigns.GET("/:id/stats", h.Stats)
		campaigns.POST("/:id/send", h.SendNow)
	}
}

func (h *Handler) Submit(c *gin.Context) {
	var req campaignService.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	claims := middleware.GetClaims(c)
	campaign, err := h.campaigns.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(campaign))
}

// List returns active campaigns anyone may send through.
func (h *Handler) List(c *gin.Context) {
	campaigns, err := h.campaigns.ListActive(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaigns))
}

// ListMine returns the caller's own submissions, in any status.
func (h *Handler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)
	campaigns, err := h.campaigns.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaigns))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	claims := middleware.GetClaims(c)
	campaign, err := h.campaigns.Get(c.Request.Context(), id, claims.UserID, claims.IsAdmin)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaign))
}

func (h *Handler) Stats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	claims := middleware.GetClaims(c)
	stats, err := h.campaigns.Stats(c.Request.Context(), id, claims.UserID, claims.IsAdmin)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

type sendNowRequest struct {
	Mood       string  `json:"mood" binding:"required"`
	SenderNote *string `json:"sender_note,omitempty"`
}

func (h *Handler) SendNow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	var req sendNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	claims := middleware.GetClaims(c)
	result, err := h.schedules.SendNow(c.Request.Context(), claims.UserID, id, req.Mood, req.SenderNote)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"sent":    result.Sent,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	}))
}
