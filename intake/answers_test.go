package intake

import (
	"reflect"
	"testing"

	"intake-backend/analysis"
)

func sampleRound() *analysis.FollowUpRound {
	return &analysis.FollowUpRound{
		Round: 1,
		Questions: []analysis.Question{
			{Question: "Where is the pain?", Type: analysis.TypeToggle, Options: []string{"Front", "Back"}},
			{Question: "Any of these apply?", Type: analysis.TypeMultiToggle, Options: []string{"Nausea", "Dizziness", "Blurred vision"}},
			{Question: "How long and how often?", Type: analysis.TypeFrequency, Frequency: &analysis.FrequencySpec{
				Duration:  []string{"Hours", "Days", "Weeks"},
				Frequency: []string{"Once", "Daily", "Constant"},
			}},
			{Question: "Rate the pain", Type: analysis.TypeSlider, Min: 1, Max: 10},
		},
	}
}

func TestIsComplete(t *testing.T) {
	round := sampleRound()
	a := make(Answers)
	if IsComplete(round, a) {
		t.Fatal("empty answers must not be complete")
	}
	a.Toggle("Where is the pain?", "Front")
	a.MultiToggle("Any of these apply?", "Nausea")
	a.SetSlider("Rate the pain", 6)
	if IsComplete(round, a) {
		t.Fatal("missing frequency answer must not be complete")
	}
	a.SetFrequency("How long and how often?", PartDuration, "Days")
	if IsComplete(round, a) {
		t.Fatal("frequency answer without both sub-fields must not be complete")
	}
	a.SetFrequency("How long and how often?", PartFrequency, "Daily")
	if !IsComplete(round, a) {
		t.Fatal("all questions answered, expected complete")
	}
	// Duration set earlier must survive the frequency merge.
	if got := a["How long and how often?"]; got.Duration != "Days" || got.Frequency != "Daily" {
		t.Errorf("frequency merge lost a part: %+v", got)
	}
}

func TestIsCompleteNilRound(t *testing.T) {
	if IsComplete(nil, make(Answers)) {
		t.Fatal("nil round is never submittable")
	}
}

func TestToggleSelectDeselectReplace(t *testing.T) {
	a := make(Answers)
	a.Toggle("Q", "Front")
	if a["Q"].Text != "Front" {
		t.Fatalf("select failed: %+v", a["Q"])
	}
	a.Toggle("Q", "Back")
	if a["Q"].Text != "Back" {
		t.Fatalf("replace failed: %+v", a["Q"])
	}
	a.Toggle("Q", "Back")
	if _, ok := a["Q"]; ok {
		t.Fatal("re-selecting the chosen option must clear the answer")
	}
}

func TestMultiToggleIdempotentAndNeverEmpty(t *testing.T) {
	a := make(Answers)
	a.MultiToggle("Q", "Nausea")
	a.MultiToggle("Q", "Dizziness")
	if !reflect.DeepEqual(a["Q"].Values, []string{"Nausea", "Dizziness"}) {
		t.Fatalf("membership wrong: %v", a["Q"].Values)
	}
	// Double-application of the same option restores the original state.
	a.MultiToggle("Q", "Dizziness")
	if !reflect.DeepEqual(a["Q"].Values, []string{"Nausea"}) {
		t.Fatalf("double toggle not idempotent: %v", a["Q"].Values)
	}
	a.MultiToggle("Q", "Nausea")
	if _, ok := a["Q"]; ok {
		t.Fatal("empty selection must remove the entry, not store an empty answer")
	}
}

func TestRenderAnswers(t *testing.T) {
	round := sampleRound()
	a := make(Answers)
	a.Toggle("Where is the pain?", "Front")
	a.MultiToggle("Any of these apply?", "Nausea")
	a.MultiToggle("Any of these apply?", "Dizziness")
	a.SetFrequency("How long and how often?", PartDuration, "Days")
	a.SetFrequency("How long and how often?", PartFrequency, "Daily")
	a.SetSlider("Rate the pain", 7)
	got := renderAnswers(round, a)
	want := "Where is the pain?: Front\n" +
		"Any of these apply?: Nausea, Dizziness\n" +
		"How long and how often?: Days, Daily\n" +
		"Rate the pain: 7"
	if got != want {
		t.Errorf("renderAnswers:\n%s\nwant:\n%s", got, want)
	}
}
