package profile

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler exposes the case-record history for the app. Read-only: records
// are written exclusively by the intake engine at session completion.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/case-records", h.list)
	r.GET("/case-records/:session_id", h.get)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	recs, err := h.store.ListCaseRecords(c.Request.Context(), limit)
	if err != nil {
		log.Printf("[profile][error] list case records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load case records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.store.GetCaseRecord(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		log.Printf("[profile][error] get case record: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load case record"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case record not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
