package mood

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mondo989/ReallyGoodJob/internal/handler"
	templateService "github.com/mondo989/ReallyGoodJob/internal/service/template"
)

type Handler struct {
	templates *templateService.Service
}

func NewHandler(templates *templateService.Service) *Handler {
	return &Handler{templates: templates}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/moods", h.List)
}

func (h *Handler) List(c *gin.Context) {
	moods, err := h.templates.List(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(moods))
}
