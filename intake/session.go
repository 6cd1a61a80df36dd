package intake

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"intake-backend/analysis"
	"intake-backend/suggest"
)

// Analyzer is the slice of the analysis client the orchestrator needs.
type Analyzer interface {
	Analyze(ctx context.Context, symptomSummary string, round int, over *analysis.CallOptions) (*analysis.Result, error)
}

// CaseRecord is the final structured summary handed to the external
// profile store once a session completes. The engine never reads it back.
type CaseRecord struct {
	SessionID        string    `json:"session_id"`
	Summary          string    `json:"summary"`
	Transcript       []Message `json:"transcript"`
	RoundsCompleted  int       `json:"rounds_completed"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	Model            string    `json:"model"`
	CreatedAt        time.Time `json:"created_at"`
}

// CaseStore receives completed case records. Handoff is best-effort and
// never blocks or fails the session.
type CaseStore interface {
	SaveCaseRecord(ctx context.Context, rec CaseRecord) error
}

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrAnalysisInFlight   = errors.New("an analysis is already in flight for this session")
	ErrNotIdle            = errors.New("symptoms already submitted for this session")
	ErrNotAwaitingAnswers = errors.New("no active round awaiting answers")
	ErrIncompleteRound    = errors.New("round answers are incomplete")
	ErrNoSymptoms         = errors.New("nothing to analyze: no symptoms committed")
	ErrUnknownSymptom     = errors.New("unknown symptom id")
	ErrUnknownQuestion    = errors.New("question is not part of the active round")
	ErrUnknownAnswerOp    = errors.New("unsupported answer operation")
	ErrSuperseded         = errors.New("session was reset while analyzing")
)

// DefaultRoundBudget caps the follow-up rounds per session. Round numbers
// progress from broad triage toward narrowing questions; the budget is a
// product convention, not intrinsic to the flow, hence env-tunable.
const DefaultRoundBudget = 3

type session struct {
	id           string
	state        State
	symptoms     []Symptom
	messages     []Message
	suggestions  []string
	draft        Answers
	activeRound  *analysis.FollowUpRound
	currentRound int
	lastAccepted int
	showCTAs     bool

	// generation guards every asynchronous completion: bumped on reset
	// so a stale analyze or suggestion result cannot touch a session it
	// no longer belongs to.
	generation   uint64
	debouncer    *suggest.Debouncer
	debouncerGen uint64

	promptTokens     int
	completionTokens int
	costUSD          float64
	createdAt        time.Time
}

// Manager owns every live intake session. One mutex guards the whole
// table; all mutations are cheap map/slice updates, and the only slow
// work (the analyze call) happens unlocked.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	analyzer    Analyzer
	suggester   *suggest.Client
	store       CaseStore
	model       string
	roundBudget int
	window      time.Duration
}

// NewManager reads its knobs from env: INTAKE_ROUND_BUDGET (default 3)
// and INTAKE_DEBOUNCE_MS (default 350).
func NewManager(analyzer Analyzer, suggester *suggest.Client) *Manager {
	budget := DefaultRoundBudget
	if s := strings.TrimSpace(os.Getenv("INTAKE_ROUND_BUDGET")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			budget = v
		}
	}
	window := suggest.DefaultWindow
	if s := strings.TrimSpace(os.Getenv("INTAKE_DEBOUNCE_MS")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			window = time.Duration(v) * time.Millisecond
		}
	}
	return &Manager{
		sessions:    make(map[string]*session),
		analyzer:    analyzer,
		suggester:   suggester,
		roundBudget: budget,
		window:      window,
	}
}

// SetCaseStore wires the external record store. Optional.
func (m *Manager) SetCaseStore(s CaseStore) { m.store = s }

// SetModel records which model id completed records are attributed to.
func (m *Manager) SetModel(id string) { m.model = id }

// StartSession creates a fresh idle session and returns its snapshot.
func (m *Manager) StartSession() Snapshot {
	s := &session{
		id:        uuid.NewString(),
		state:     StateIdle,
		draft:     make(Answers),
		createdAt: time.Now(),
	}
	m.mu.Lock()
	m.sessions[s.id] = s
	snap := m.snapshotLocked(s)
	m.mu.Unlock()
	return snap
}

// Snapshot returns the current read model for a session.
func (m *Manager) Snapshot(sessionID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return m.snapshotLocked(s), nil
}

func (m *Manager) snapshotLocked(s *session) Snapshot {
	var round *analysis.FollowUpRound
	if s.activeRound != nil {
		r := *s.activeRound
		r.Questions = append([]analysis.Question(nil), s.activeRound.Questions...)
		round = &r
	}
	return Snapshot{
		SessionID:    s.id,
		State:        s.state,
		Symptoms:     append([]Symptom(nil), s.symptoms...),
		Messages:     append([]Message(nil), s.messages...),
		Suggestions:  append([]string(nil), s.suggestions...),
		IsAnalyzing:  s.state == StateAnalyzing,
		CurrentRound: s.currentRound,
		ActiveRound:  round,
		Answers:      s.draft.Clone(),
		Submittable:  s.state == StateAwaitingAnswers && IsComplete(s.activeRound, s.draft),
		ShowCTAs:     s.showCTAs,
	}
}

// AddSymptom commits one symptom to the session sheet.
func (m *Manager) AddSymptom(sessionID, name string, severity int, freq Frequency, bodyPart string) (Symptom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Symptom{}, ErrSessionNotFound
	}
	sym := Symptom{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Severity:  severity,
		Frequency: freq,
		BodyPart:  strings.TrimSpace(bodyPart),
	}
	s.symptoms = append(s.symptoms, sym)
	return sym, nil
}

// UpdateSymptom mutates severity/frequency in place. Symptoms are never
// deleted mid-session.
func (m *Manager) UpdateSymptom(sessionID, symptomID string, severity int, freq Frequency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for i := range s.symptoms {
		if s.symptoms[i].ID == symptomID {
			s.symptoms[i].Severity = severity
			s.symptoms[i].Frequency = freq
			return nil
		}
	}
	return ErrUnknownSymptom
}

// GetSymptomsInput renders the committed symptom sheet plus trailing free
// text into the exact summary string submitted for analysis.
func (m *Manager) GetSymptomsInput(sessionID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return symptomsInput(s.symptoms, text), nil
}

func symptomsInput(symptoms []Symptom, text string) string {
	parts := make([]string, 0, len(symptoms)+1)
	for _, sym := range symptoms {
		parts = append(parts, sym.render())
	}
	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, ", ")
}

// TypeAhead registers one keystroke against the session's suggestion
// cache. Fetches are debounced and generation-guarded; the cache only
// ever reflects the latest input.
func (m *Manager) TypeAhead(ctx context.Context, sessionID, partial string, kind suggest.Kind) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if s.debouncer == nil || s.debouncerGen != s.generation {
		gen := s.generation
		id := s.id
		s.debouncer = suggest.NewDebouncer(m.suggester, m.window, func(_ suggest.Kind, items []string) {
			m.mu.Lock()
			if cur, ok := m.sessions[id]; ok && cur.generation == gen {
				cur.suggestions = items
			}
			m.mu.Unlock()
		})
		s.debouncerGen = s.generation
	}
	d := s.debouncer
	m.mu.Unlock()
	d.Type(ctx, partial, kind)
	return nil
}

// SubmitSymptoms starts the follow-up dialogue: renders the symptom sheet
// (plus optional free text) into the first user message, runs one analyze
// call and ingests the returned round. Valid only from the idle state;
// exactly one analyze call may be in flight per session.
func (m *Manager) SubmitSymptoms(ctx context.Context, sessionID, rawText string) (Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	if s.state == StateAnalyzing {
		m.mu.Unlock()
		return Snapshot{}, ErrAnalysisInFlight
	}
	if s.state != StateIdle {
		m.mu.Unlock()
		return Snapshot{}, ErrNotIdle
	}
	content := symptomsInput(s.symptoms, rawText)
	if content == "" {
		m.mu.Unlock()
		return Snapshot{}, ErrNoSymptoms
	}
	s.state = StateAnalyzing
	gen := s.generation
	m.mu.Unlock()

	res, err := m.analyzer.Analyze(ctx, content, 1, nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[sessionID]
	if !ok || cur.generation != gen {
		log.Printf("[intake][stale] discarding analyze result for reset session=%s", sessionID)
		return Snapshot{}, ErrSuperseded
	}
	if err != nil {
		// Pre-call state retained so the user can retry.
		cur.state = StateIdle
		return m.snapshotLocked(cur), err
	}
	m.ingestLocked(cur, content, res)
	return m.snapshotLocked(cur), nil
}

// SubmitRoundAnswers submits the active round. answers may be nil to use
// the draft accumulated through MutateAnswer. Guard-rejected calls (wrong
// state, incomplete answers) are no-ops with a reported reason.
func (m *Manager) SubmitRoundAnswers(ctx context.Context, sessionID string, answers Answers) (Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	if s.state == StateAnalyzing {
		m.mu.Unlock()
		return Snapshot{}, ErrAnalysisInFlight
	}
	if s.state != StateAwaitingAnswers || s.activeRound == nil {
		m.mu.Unlock()
		return Snapshot{}, ErrNotAwaitingAnswers
	}
	if answers == nil {
		answers = s.draft
	}
	if !IsComplete(s.activeRound, answers) {
		snap := m.snapshotLocked(s)
		m.mu.Unlock()
		log.Printf("[intake][reject] incomplete round %d submission session=%s", s.activeRound.Round, sessionID)
		return snap, ErrIncompleteRound
	}
	content := renderAnswers(s.activeRound, answers)
	answered := s.activeRound.Round
	s.draft = answers
	s.state = StateAnalyzing
	gen := s.generation
	m.mu.Unlock()

	res, err := m.analyzer.Analyze(ctx, content, answered+1, nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[sessionID]
	if !ok || cur.generation != gen {
		log.Printf("[intake][stale] discarding analyze result for reset session=%s", sessionID)
		return Snapshot{}, ErrSuperseded
	}
	if err != nil {
		cur.state = StateAwaitingAnswers
		return m.snapshotLocked(cur), err
	}
	m.ingestLocked(cur, content, res)
	return m.snapshotLocked(cur), nil
}

// ingestLocked applies one successful analyze result: appends the user
// and assistant messages and advances or terminates the round state.
func (m *Manager) ingestLocked(s *session, userContent string, res *analysis.Result) {
	r := res.FollowUp
	if r != nil && r.Round <= s.lastAccepted {
		// Duplicate of an already-accepted round (upstream retry); drop
		// the whole turn without touching the transcript or round state.
		log.Printf("[intake][stale] round %d <= last accepted %d, discarding turn session=%s", r.Round, s.lastAccepted, s.id)
		if s.activeRound != nil {
			s.state = StateAwaitingAnswers
		} else {
			s.state = StateIdle
		}
		return
	}

	s.messages = append(s.messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   userContent,
		Timestamp: nowMillis(),
	})
	assistant := strings.Join(res.Messages, "\n\n")
	if strings.TrimSpace(assistant) == "" {
		assistant = "Thank you, your answers were recorded."
	}
	msg := Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   assistant,
		Timestamp: nowMillis(),
	}
	if r != nil {
		for _, q := range r.Questions {
			msg.FollowUpOptions = append(msg.FollowUpOptions, q.Question)
		}
	}
	s.messages = append(s.messages, msg)

	s.promptTokens += res.Usage.PromptTokens
	s.completionTokens += res.Usage.CompletionTokens
	s.costUSD += res.CostUSD

	if r != nil && r.Round <= m.roundBudget {
		s.activeRound = r
		s.currentRound = r.Round
		s.lastAccepted = r.Round
		s.draft = make(Answers)
		s.state = StateAwaitingAnswers
		return
	}
	if r != nil {
		log.Printf("[intake][budget] round %d exceeds budget %d, terminating session=%s", r.Round, m.roundBudget, s.id)
	}
	s.activeRound = nil
	s.state = StateCompleted
	s.showCTAs = true
	m.handoffLocked(s)
}

// handoffLocked ships the final case record to the external store.
// Best-effort: failures are logged, never surfaced to the session.
func (m *Manager) handoffLocked(s *session) {
	if m.store == nil {
		return
	}
	rec := CaseRecord{
		SessionID:        s.id,
		Summary:          symptomsInput(s.symptoms, ""),
		Transcript:       append([]Message(nil), s.messages...),
		RoundsCompleted:  s.lastAccepted,
		PromptTokens:     s.promptTokens,
		CompletionTokens: s.completionTokens,
		CostUSD:          s.costUSD,
		Model:            m.model,
		CreatedAt:        time.Now(),
	}
	store := m.store
	go func() {
		if err := store.SaveCaseRecord(context.Background(), rec); err != nil {
			log.Printf("[intake][warn] case record handoff failed session=%s: %v", rec.SessionID, err)
		}
	}()
}

// AnswerMutation is one UI interaction with the active round.
type AnswerMutation struct {
	Question string `json:"question"`
	Op       string `json:"op"` // toggle | multi-toggle | frequency | slider
	Option   string `json:"option,omitempty"`
	Part     string `json:"part,omitempty"` // duration | frequency
	Value    string `json:"value,omitempty"`
	Number   int    `json:"number,omitempty"`
}

// MutateAnswer applies one answer mutation to the draft and reports
// whether the round became submittable. Slider values are clamped to the
// question bounds here, before they reach the answer model.
func (m *Manager) MutateAnswer(sessionID string, mut AnswerMutation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false, ErrSessionNotFound
	}
	if s.state != StateAwaitingAnswers || s.activeRound == nil {
		return false, ErrNotAwaitingAnswers
	}
	var q *analysis.Question
	for i := range s.activeRound.Questions {
		if s.activeRound.Questions[i].Question == mut.Question {
			q = &s.activeRound.Questions[i]
			break
		}
	}
	if q == nil {
		return false, ErrUnknownQuestion
	}
	switch mut.Op {
	case analysis.TypeToggle:
		s.draft.Toggle(mut.Question, mut.Option)
	case analysis.TypeMultiToggle:
		s.draft.MultiToggle(mut.Question, mut.Option)
	case analysis.TypeFrequency:
		s.draft.SetFrequency(mut.Question, mut.Part, mut.Value)
	case analysis.TypeSlider:
		n := mut.Number
		if n < q.Min {
			n = q.Min
		}
		if n > q.Max {
			n = q.Max
		}
		s.draft.SetSlider(mut.Question, n)
	default:
		return false, ErrUnknownAnswerOp
	}
	return IsComplete(s.activeRound, s.draft), nil
}

// ResetAnalysis clears the session back to idle. Legal from any state;
// bumping the generation makes any in-flight completion stale.
func (m *Manager) ResetAnalysis(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.generation++
	s.state = StateIdle
	s.symptoms = nil
	s.messages = nil
	s.suggestions = nil
	s.draft = make(Answers)
	s.activeRound = nil
	s.currentRound = 0
	s.lastAccepted = 0
	s.showCTAs = false
	s.promptTokens = 0
	s.completionTokens = 0
	s.costUSD = 0
	return nil
}
