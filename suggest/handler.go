package suggest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the direct (non-debounced) suggestion endpoint used by
// input fields outside the intake session, e.g. the allergies and
// medications pickers on the profile sheet.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/suggestions", h.getSuggestions)
}

func (h *Handler) getSuggestions(c *gin.Context) {
	kind, ok := ParseKind(c.DefaultQuery("kind", string(KindSymptoms)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown suggestion kind"})
		return
	}
	q := c.Query("q")
	// Fetch swallows failures; this endpoint never errors on upstream
	// trouble, the field simply shows no chips.
	items := h.client.Fetch(c.Request.Context(), q, kind)
	c.JSON(http.StatusOK, gin.H{"suggestions": items})
}
