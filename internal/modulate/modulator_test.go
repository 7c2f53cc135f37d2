package modulate

import (
	"math"
	"testing"
	"time"

	"affectd/internal/emotion"
)

func TestNeutralStateReturnsExactBaseline(t *testing.T) {
	cfg := DefaultConfig()
	s := emotion.Neutral(time.Now())

	params, line := cfg.Modulate(s, Context{Topic: "weekend plans"})

	assertNear(t, params.Sarcasm, cfg.Baseline.Sarcasm)
	assertNear(t, params.Formality, cfg.Baseline.Formality)
	assertNear(t, params.Warmth, cfg.Baseline.Warmth)
	assertNear(t, params.Humor, cfg.Baseline.Humor)
	assertNear(t, params.SelfDeprecation, cfg.Baseline.SelfDeprecation)
	assertNear(t, params.Emoji, cfg.Baseline.Emoji)
	assertNear(t, params.Nickname, cfg.Baseline.Nickname)
	if params.ResponseLength != cfg.Baseline.ResponseLength {
		t.Fatalf("expected baseline length %d, got %d", cfg.Baseline.ResponseLength, params.ResponseLength)
	}
	if params.Seeking || params.Tender || params.Guarded || params.Deflecting {
		t.Fatalf("expected no tone flags on a neutral state")
	}
	if line != "" {
		t.Fatalf("expected no self-awareness line on a neutral state, got %q", line)
	}
}

func TestSeriousContextOverridesToBaselineRegardlessOfState(t *testing.T) {
	cfg := DefaultConfig()
	s := emotion.Neutral(time.Now())
	s.Values[emotion.Affection] = 0.95
	s.Values[emotion.Loneliness] = 0.85

	params, line := cfg.Modulate(s, Context{Topic: "my dog died"})

	if params != cfg.Baseline {
		t.Fatalf("serious-context output should equal baseline exactly, got %+v", params)
	}
	if line != "" {
		t.Fatalf("expected no self-awareness line under the situational gate")
	}
}

func TestForceSeriousAlwaysOverrides(t *testing.T) {
	cfg := DefaultConfig()
	s := emotion.Neutral(time.Now())
	s.Values[emotion.Frustration] = 0.9

	params, _ := cfg.Modulate(s, Context{Topic: "totally normal topic", ForceSerious: true})
	if params != cfg.Baseline {
		t.Fatalf("force_serious should override to baseline, got %+v", params)
	}
}

func TestNonSeriousDivergesFromBaselineWhenElevated(t *testing.T) {
	cfg := DefaultConfig()
	s := emotion.Neutral(time.Now())
	s.Values[emotion.Affection] = 0.95
	s.Values[emotion.Loneliness] = 0.85

	params, _ := cfg.Modulate(s, Context{Topic: "my dog did something funny"})
	if params == cfg.Baseline {
		t.Fatalf("expected divergence from baseline with elevated dimensions")
	}
}

func TestResponseLengthStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	s := emotion.Neutral(time.Now())
	for _, d := range emotion.Dimensions() {
		s.Values[d] = 0.99
	}
	params, _ := cfg.Modulate(s, Context{Topic: "anything"})
	if params.ResponseLength < 35 || params.ResponseLength > 300 {
		t.Fatalf("response length out of bounds: %d", params.ResponseLength)
	}
}

func TestTenderFlagFiresOnHighAffection(t *testing.T) {
	cfg := DefaultConfig()
	s := emotion.Neutral(time.Now())
	s.Values[emotion.Affection] = 0.75
	params, _ := cfg.Modulate(s, Context{Topic: "chatting"})
	if !params.Tender {
		t.Fatalf("expected tender flag to fire")
	}
}

func TestValidateFlagsOutOfVarianceParameters(t *testing.T) {
	cfg := DefaultConfig()
	extreme := cfg.Baseline
	extreme.Warmth = cfg.Baseline.Warmth * 2
	results := cfg.Validate(extreme)
	if results["warmth"] {
		t.Fatalf("expected warmth to be flagged out of variance bounds")
	}
	if !results["sarcasm"] {
		t.Fatalf("expected sarcasm (unchanged) to remain within variance bounds")
	}
}

func assertNear(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Fatalf("value mismatch: got=%.6f want=%.6f", got, want)
	}
}
