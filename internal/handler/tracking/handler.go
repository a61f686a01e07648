package tracking

import (
	"bytes"
	"image"
	"image/png"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	campaignService "github.com/mondo989/ReallyGoodJob/internal/service/campaign"
)

// pixel is the 1x1 transparent PNG served by the open-tracking endpoint,
// rendered once at startup.
var pixel = func() []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

type Handler struct {
	campaigns *campaignService.Service
}

func NewHandler(campaigns *campaignService.Service) *Handler {
	return &Handler{campaigns: campaigns}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/track/open.png", h.Open)
}

// Open records the first open for the referenced email log. The pixel is
// always served with 200 so a bad id never breaks image rendering in the
// recipient's client.
func (h *Handler) Open(c *gin.Context) {
	if id, err := uuid.Parse(c.Query("emailLogId")); err == nil {
		h.campaigns.TrackOpen(c.Request.Context(), id)
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", pixel)
}
