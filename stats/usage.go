package stats

import (
	"database/sql"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"intake-backend/cost"
)

// ModelUsage aggregates token spend for one model.
type ModelUsage struct {
	Model            string  `json:"model"`
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Recorder keeps in-memory usage counters and optionally appends each
// sample to the usage_log table. It implements analysis.Recorder.
type Recorder struct {
	mu     sync.Mutex
	db     *sql.DB
	totals map[string]*ModelUsage
}

// NewRecorder builds a recorder; db may be nil for memory-only operation.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, totals: make(map[string]*ModelUsage)}
}

// Record accumulates one completed backend call. Never fails: the DB
// append is best-effort observability.
func (r *Recorder) Record(model string, usage cost.Usage, costUSD float64) {
	r.mu.Lock()
	mu, ok := r.totals[model]
	if !ok {
		mu = &ModelUsage{Model: model}
		r.totals[model] = mu
	}
	mu.Requests++
	mu.PromptTokens += usage.PromptTokens
	mu.CompletionTokens += usage.CompletionTokens
	mu.CostUSD += costUSD
	r.mu.Unlock()

	if r.db != nil {
		if _, err := r.db.Exec(
			"INSERT INTO usage_log (model, prompt_tokens, completion_tokens, cost_usd) VALUES (?, ?, ?, ?)",
			model, usage.PromptTokens, usage.CompletionTokens, costUSD); err != nil {
			log.Printf("[stats][warn] usage_log insert failed: %v", err)
		}
	}
}

// Totals returns a copy of the per-model aggregates, sorted by model id.
func (r *Recorder) Totals() []ModelUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ModelUsage, 0, len(r.totals))
	for _, mu := range r.totals {
		out = append(out, *mu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// RegisterAdminRoutes exposes the usage dashboard endpoint.
func (r *Recorder) RegisterAdminRoutes(e *gin.Engine) {
	e.GET("/admin/usage", func(c *gin.Context) {
		totals := r.Totals()
		var grand ModelUsage
		grand.Model = "total"
		for _, t := range totals {
			grand.Requests += t.Requests
			grand.PromptTokens += t.PromptTokens
			grand.CompletionTokens += t.CompletionTokens
			grand.CostUSD += t.CostUSD
		}
		c.JSON(http.StatusOK, gin.H{"models": totals, "total": grand})
	})
}
