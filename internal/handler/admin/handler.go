package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/handler"
	"github.com/mondo989/ReallyGoodJob/internal/middleware"
	campaignService "github.com/mondo989/ReallyGoodJob/internal/service/campaign"
)

type Handler struct {
	campaigns *campaignService.Service
}

func NewHandler(campaigns *campaignService.Service) *Handler {
	return &Handler{campaigns: campaigns}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin", middleware.AdminOnly())
	{
		admin.GET("/campaigns", h.ListPending)
		admin.POST("/campaigns/:id/approve", h.Approve)
		admin.POST("/campaigns/:id/reject", h.Reject)
	}
}

func (h *Handler) ListPending(c *gin.Context) {
	campaigns, err := h.campaigns.ListPending(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaigns))
}

func (h *Handler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	claims := middleware.GetClaims(c)
	if err := h.campaigns.Approve(c.Request.Context(), id, claims.UserID); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"approved": id}))
}

func (h *Handler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	claims := middleware.GetClaims(c)
	if err := h.campaigns.Reject(c.Request.Context(), id, claims.UserID); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"rejected": id}))
}
