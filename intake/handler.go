package intake

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"intake-backend/suggest"
)

// Handler exposes the session consumer API over HTTP. These endpoints are
// the only entry points the app may call into the engine.
type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/intake/start", h.start)
	r.POST("/intake/symptoms", h.upsertSymptom)
	r.POST("/intake/typeahead", h.typeahead)
	r.POST("/intake/symptoms-input", h.symptomsInput)
	r.POST("/intake/message", h.submitSymptoms)
	r.POST("/intake/answer", h.mutateAnswer)
	r.POST("/intake/answers", h.submitAnswers)
	r.POST("/intake/reset", h.reset)
	r.GET("/intake/state/:id", h.state)
}

func (h *Handler) start(c *gin.Context) {
	snap := h.mgr.StartSession()
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) state(c *gin.Context) {
	snap, err := h.mgr.Snapshot(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

type symptomReq struct {
	SessionID string `json:"session_id"`
	SymptomID string `json:"symptom_id"` // set for updates
	Name      string `json:"name"`
	Severity  int    `json:"severity"`
	Frequency string `json:"frequency"`
	BodyPart  string `json:"body_part"`
}

func (h *Handler) upsertSymptom(c *gin.Context) {
	var req symptomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.Severity < 0 || req.Severity > 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be between 0 and 10"})
		return
	}
	freq, ok := ParseFrequency(req.Frequency)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown frequency"})
		return
	}
	if req.SymptomID != "" {
		if err := h.mgr.UpdateSymptom(req.SessionID, req.SymptomID, req.Severity, freq); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"symptom_id": req.SymptomID})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symptom name required"})
		return
	}
	sym, err := h.mgr.AddSymptom(req.SessionID, req.Name, req.Severity, freq, req.BodyPart)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sym)
}

type typeaheadReq struct {
	SessionID string `json:"session_id"`
	Query     string `json:"q"`
	Kind      string `json:"kind"`
}

func (h *Handler) typeahead(c *gin.Context) {
	var req typeaheadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	kind, ok := suggest.ParseKind(req.Kind)
	if !ok {
		kind = suggest.KindSymptoms
	}
	if err := h.mgr.TypeAhead(c.Request.Context(), req.SessionID, req.Query, kind); err != nil {
		h.fail(c, err)
		return
	}
	// The fetch resolves after the quiescence window; the client polls
	// the state endpoint, whose suggestions cache is last-write-wins.
	c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
}

// symptomsInput previews the exact summary string an analyze call would
// receive for the current sheet plus free text. The app shows it in the
// confirmation step before submission.
func (h *Handler) symptomsInput(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	input, err := h.mgr.GetSymptomsInput(req.SessionID, req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"input": input})
}

type messageReq struct {
	SessionID  string `json:"session_id"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"` // already-transcribed voice input
}

func (h *Handler) submitSymptoms(c *gin.Context) {
	var req messageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	text := req.Text
	if t := strings.TrimSpace(req.Transcript); t != "" {
		if strings.TrimSpace(text) != "" {
			text += "\n\n[Voice transcript]:\n" + t
		} else {
			text = t
		}
	}
	snap, err := h.mgr.SubmitSymptoms(c.Request.Context(), req.SessionID, text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) mutateAnswer(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		AnswerMutation
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	submittable, err := h.mgr.MutateAnswer(req.SessionID, req.AnswerMutation)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submittable": submittable})
}

type answersReq struct {
	SessionID string  `json:"session_id"`
	Answers   Answers `json:"answers"` // optional; draft is used when omitted
}

func (h *Handler) submitAnswers(c *gin.Context) {
	var req answersReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	snap, err := h.mgr.SubmitRoundAnswers(c.Request.Context(), req.SessionID, req.Answers)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) reset(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.mgr.ResetAnalysis(req.SessionID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// fail maps engine errors to HTTP statuses. Guard rejections are client
// errors with the state retained; analysis failures are upstream trouble.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAnalysisInFlight), errors.Is(err, ErrNotIdle),
		errors.Is(err, ErrNotAwaitingAnswers), errors.Is(err, ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrIncompleteRound), errors.Is(err, ErrNoSymptoms),
		errors.Is(err, ErrUnknownSymptom), errors.Is(err, ErrUnknownQuestion),
		errors.Is(err, ErrUnknownAnswerOp):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		// Analysis/backend failure: non-fatal, the session kept its
		// pre-call state and the client may retry.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
