package intake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"intake-backend/analysis"
	"intake-backend/cost"
	"intake-backend/suggest"
)

// scriptedAnalyzer pops one result per Analyze call. A non-nil gate makes
// the call block until the channel is closed.
type scriptedAnalyzer struct {
	mu      sync.Mutex
	calls   int
	results []*analysis.Result
	err     error
	gate    chan struct{}
}

func (a *scriptedAnalyzer) Analyze(ctx context.Context, summary string, round int, over *analysis.CallOptions) (*analysis.Result, error) {
	a.mu.Lock()
	a.calls++
	var res *analysis.Result
	if len(a.results) > 0 {
		res = a.results[0]
		a.results = a.results[1:]
	}
	err := a.err
	gate := a.gate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &analysis.Result{Messages: []string{"Noted."}}
	}
	return res, nil
}

func (a *scriptedAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func roundResult(n int) *analysis.Result {
	return &analysis.Result{
		Messages: []string{"A few more questions."},
		FollowUp: &analysis.FollowUpRound{
			Round: n,
			Questions: []analysis.Question{
				{Question: "Where is the pain?", Type: analysis.TypeToggle, Options: []string{"Front", "Back"}},
				{Question: "Rate the pain", Type: analysis.TypeSlider, Min: 1, Max: 10},
			},
		},
		Usage: cost.Usage{PromptTokens: 10, CompletionTokens: 5},
	}
}

func terminalResult() *analysis.Result {
	return &analysis.Result{Messages: []string{"That is everything I need, thank you."}}
}

func answerActiveRound(t *testing.T, m *Manager, id string) {
	t.Helper()
	if _, err := m.MutateAnswer(id, AnswerMutation{Question: "Where is the pain?", Op: analysis.TypeToggle, Option: "Front"}); err != nil {
		t.Fatalf("MutateAnswer: %v", err)
	}
	if _, err := m.MutateAnswer(id, AnswerMutation{Question: "Rate the pain", Op: analysis.TypeSlider, Number: 6}); err != nil {
		t.Fatalf("MutateAnswer: %v", err)
	}
}

func newTestManager(a Analyzer) *Manager {
	return NewManager(a, suggest.NewClient(nullSource{}, 5))
}

type nullSource struct{}

func (nullSource) Completions(ctx context.Context, partial, kind string, n int) ([]string, error) {
	return nil, nil
}

func TestSubmitSymptomsStartsRoundOne(t *testing.T) {
	fa := &scriptedAnalyzer{results: []*analysis.Result{roundResult(1)}}
	m := newTestManager(fa)
	snap := m.StartSession()
	if _, err := m.AddSymptom(snap.SessionID, "Headache", 6, FreqOften, ""); err != nil {
		t.Fatalf("AddSymptom: %v", err)
	}

	got, err := m.SubmitSymptoms(context.Background(), snap.SessionID, "")
	if err != nil {
		t.Fatalf("SubmitSymptoms: %v", err)
	}
	if fa.callCount() != 1 {
		t.Errorf("expected exactly 1 analyze call, got %d", fa.callCount())
	}
	if got.State != StateAwaitingAnswers || got.CurrentRound != 1 {
		t.Errorf("state=%s round=%d; want awaiting round 1", got.State, got.CurrentRound)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != RoleUser || got.Messages[1].Role != RoleAssistant {
		t.Fatalf("transcript wrong: %+v", got.Messages)
	}
	wantUser := "Headache (Severity: 6/10, Frequency: Often)"
	if got.Messages[0].Content != wantUser {
		t.Errorf("user message = %q; want %q", got.Messages[0].Content, wantUser)
	}
}

func TestRoundBudgetTermination(t *testing.T) {
	fa := &scriptedAnalyzer{results: []*analysis.Result{
		roundResult(1), roundResult(2), roundResult(3), terminalResult(),
	}}
	m := newTestManager(fa)
	snap := m.StartSession()
	id := snap.SessionID
	if _, err := m.AddSymptom(id, "Headache", 6, FreqOften, "Forehead"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitSymptoms(context.Background(), id, ""); err != nil {
		t.Fatal(err)
	}
	for round := 1; round <= 3; round++ {
		answerActiveRound(t, m, id)
		got, err := m.SubmitRoundAnswers(context.Background(), id, nil)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if round < 3 {
			if got.State != StateAwaitingAnswers || got.CurrentRound != round+1 {
				t.Fatalf("after round %d: state=%s round=%d", round, got.State, got.CurrentRound)
			}
		} else {
			if got.State != StateCompleted || !got.ShowCTAs {
				t.Fatalf("after final round: state=%s showCTAs=%v", got.State, got.ShowCTAs)
			}
		}
	}
}

func TestRoundBeyondBudgetTerminates(t *testing.T) {
	// The backend keeps inventing rounds; the budget must cut it off.
	fa := &scriptedAnalyzer{results: []*analysis.Result{
		roundResult(3), roundResult(4),
	}}
	m := newTestManager(fa)
	m.roundBudget = 3
	snap := m.StartSession()
	id := snap.SessionID
	if _, err := m.AddSymptom(id, "Cough", 4, FreqSometimes, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitSymptoms(context.Background(), id, ""); err != nil {
		t.Fatal(err)
	}
	answerActiveRound(t, m, id)
	got, err := m.SubmitRoundAnswers(context.Background(), id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateCompleted || !got.ShowCTAs {
		t.Errorf("round 4 must not start: state=%s", got.State)
	}
}

func TestStaleRoundDiscarded(t *testing.T) {
	fa := &scriptedAnalyzer{results: []*analysis.Result{
		roundResult(2), roundResult(1), // second response duplicates an accepted round
	}}
	m := newTestManager(fa)
	snap := m.StartSession()
	id := snap.SessionID
	if _, err := m.AddSymptom(id, "Headache", 5, FreqOften, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitSymptoms(context.Background(), id, ""); err != nil {
		t.Fatal(err)
	}
	before, _ := m.Snapshot(id)

	answerActiveRound(t, m, id)
	got, err := m.SubmitRoundAnswers(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("SubmitRoundAnswers: %v", err)
	}
	if got.State != StateAwaitingAnswers || got.CurrentRound != before.CurrentRound {
		t.Errorf("stale round mutated state: %s round=%d", got.State, got.CurrentRound)
	}
	if len(got.Messages) != len(before.Messages) {
		t.Errorf("stale round touched the transcript: %d -> %d messages", len(before.Messages), len(got.Messages))
	}
}

func TestAtMostOneInFlightAnalysis(t *testing.T) {
	gate := make(chan struct{})
	fa := &scriptedAnalyzer{results: []*analysis.Result{roundResult(1)}, gate: gate}
	m := newTestManager(fa)
	snap := m.StartSession()
	id := snap.SessionID
	if _, err := m.AddSymptom(id, "Headache", 6, FreqOften, ""); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.SubmitSymptoms(context.Background(), id, "")
		done <- err
	}()

	// Wait until the first call is parked in the analyzer.
	for i := 0; i < 100 && fa.callCount() == 0; i++ {
		time.Sleep(time.Millisecond)
	}

	if _, err := m.SubmitSymptoms(context.Background(), id, ""); !errors.Is(err, ErrAnalysisInFlight) {
		t.Errorf("second submit: got %v; want ErrAnalysisInFlight", err)
	}
	if _, err := m.SubmitRoundAnswers(context.Background(), id, nil); !errors.Is(err, ErrAnalysisInFlight) {
		t.Errorf("answers during analyze: got %v; want ErrAnalysisInFlight", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if fa.callCount() != 1 {
		t.Errorf("expected exactly 1 analyze call, got %d", fa.callCount())
	}
}

func TestResetDiscardsInFlightResult(t *testing.T) {
	gate := make(chan struct{})
	fa := &scriptedAnalyzer{results: []*analysis.Result{roundResult(1)}, gate: gate}
	m := newTestManager(fa)
	snap := m.StartSession()
	id := snap.SessionID
	if _, err := m.AddSymptom(id, "Headache", 6, FreqOften, ""); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.SubmitSymptoms(context.Background(), id, "")
		done <- err
	}()
	for i := 0; i < 100 && fa.callCount() == 0; i++ {
		time.Sleep(time.Millisecond)
	}

	if err := m.ResetAnalysis(id); err != nil {
		t.Fatalf("ResetAnalysis: %v", err)
	}
	close(gate)
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("in-flight result after reset: got %v; want ErrSuperseded", err)
	}
	got, _ := m.Snapshot(id)
	if got.State != StateIdle || len(got.Messages) != 0 {
		t.Errorf("reset session not idle/empty: %s, %d messages", got.State, len(got.Messages))
	}
}

func TestIncompleteSubmissionIsNoOp(t *testing.T) {
	fa := &scriptedAnalyzer{results: []*analysis.Result{roundResult(1)}}
	m := newTestManager(fa)
	snap := m.StartSession()
	id := snap.SessionID
	if _, err := m.AddSymptom(id, "Headache", 6, FreqOften, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitSymptoms(context.Background(), id, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.MutateAnswer(id, AnswerMutation{Question: "Where is the pain?", Op: analysis.TypeToggle, Option: "Front"}); err != nil {
		t.Fatal(err)
	}
	_, err := m.SubmitRoundAnswers(context.Background(), id, nil)
	if !errors.Is(err, ErrIncompleteRound) {
		t.Fatalf("got %v; want ErrIncompleteRound", err)
	}
	got, _ := m.Snapshot(id)
	if got.State != StateAwaitingAnswers {
		t.Errorf("guard rejection must not change state, got %s", got.State)
	}
	if fa.callCount() != 1 {
		t.Errorf("guard rejection must not reach the analyzer, saw %d calls", fa.callCount())
	}
}

func TestAnalysisErrorRetainsStateForRetry(t *testing.T) {
	fa := &scriptedAnalyzer{err: errors.New("upstream 500")}
	m := newTestManager(fa)
	snap := m.StartSession()
	id := snap.SessionID
	if _, err := m.AddSymptom(id, "Headache", 6, FreqOften, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitSymptoms(context.Background(), id, ""); err == nil {
		t.Fatal("expected error from failing analyzer")
	}
	got, _ := m.Snapshot(id)
	if got.State != StateIdle || len(got.Messages) != 0 {
		t.Errorf("failed analyze must retain pre-call state: %s, %d messages", got.State, len(got.Messages))
	}

	// Retry succeeds once upstream recovers.
	fa.mu.Lock()
	fa.err = nil
	fa.results = []*analysis.Result{roundResult(1)}
	fa.mu.Unlock()
	if _, err := m.SubmitSymptoms(context.Background(), id, ""); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
}

// recordingStore captures the final handoff.
type recordingStore struct {
	mu   sync.Mutex
	recs []CaseRecord
}

func (r *recordingStore) SaveCaseRecord(ctx context.Context, rec CaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func TestCompletionHandsOffCaseRecord(t *testing.T) {
	fa := &scriptedAnalyzer{results: []*analysis.Result{roundResult(1), terminalResult()}}
	m := newTestManager(fa)
	store := &recordingStore{}
	m.SetCaseStore(store)
	m.SetModel("gpt-4o-mini")

	snap := m.StartSession()
	id := snap.SessionID
	if _, err := m.AddSymptom(id, "Headache", 6, FreqOften, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitSymptoms(context.Background(), id, ""); err != nil {
		t.Fatal(err)
	}
	answerActiveRound(t, m, id)
	got, err := m.SubmitRoundAnswers(context.Background(), id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateCompleted {
		t.Fatalf("state = %s; want completed", got.State)
	}

	// Handoff is asynchronous; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.recs)
		store.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.recs) != 1 {
		t.Fatalf("expected 1 case record, got %d", len(store.recs))
	}
	rec := store.recs[0]
	if rec.SessionID != id || rec.RoundsCompleted != 1 || rec.Model != "gpt-4o-mini" {
		t.Errorf("record wrong: %+v", rec)
	}
	if len(rec.Transcript) != 4 {
		t.Errorf("expected full transcript in record, got %d messages", len(rec.Transcript))
	}
}

type cancelAwareSource struct{ items []string }

func (s cancelAwareSource) Completions(ctx context.Context, partial, kind string, n int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.items, nil
}

func TestTypeAheadDeliversAfterRequestContextEnds(t *testing.T) {
	t.Setenv("INTAKE_DEBOUNCE_MS", "10")
	src := cancelAwareSource{items: []string{"Headache", "Heartburn"}}
	m := NewManager(&scriptedAnalyzer{}, suggest.NewClient(src, 5))
	snap := m.StartSession()

	// The registering HTTP request returns 202 (and its context dies)
	// well before the quiescence window elapses.
	ctx, cancel := context.WithCancel(context.Background())
	if err := m.TypeAhead(ctx, snap.SessionID, "hea", suggest.KindSymptoms); err != nil {
		t.Fatalf("TypeAhead: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := m.Snapshot(snap.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Suggestions) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("suggestion cache never populated after the request context ended")
}

func TestMutateAnswerRejectsUnsupportedOp(t *testing.T) {
	fa := &scriptedAnalyzer{results: []*analysis.Result{roundResult(1)}}
	m := newTestManager(fa)
	snap := m.StartSession()
	if _, err := m.AddSymptom(snap.SessionID, "Headache", 6, FreqOften, "Head"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitSymptoms(context.Background(), snap.SessionID, ""); err != nil {
		t.Fatal(err)
	}

	_, err := m.MutateAnswer(snap.SessionID, AnswerMutation{Question: "Where is the pain?", Op: "spinner", Option: "Front"})
	if !errors.Is(err, ErrUnknownAnswerOp) {
		t.Fatalf("err = %v; want ErrUnknownAnswerOp", err)
	}
	// The question itself was found, so the unknown-question error would
	// misreport the failure.
	if errors.Is(err, ErrUnknownQuestion) {
		t.Fatal("bad op reported as unknown question")
	}
}
