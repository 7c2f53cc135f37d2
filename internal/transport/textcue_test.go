package transport

import (
	"testing"

	"affectd/internal/interaction"
)

func TestInferKindPositiveMessage(t *testing.T) {
	kind, ok := InferKind("thanks so much, that was awesome")
	if !ok {
		t.Fatalf("expected a match")
	}
	if kind != interaction.PositiveMessage {
		t.Fatalf("expected positive_message, got %s", kind)
	}
}

func TestInferKindNegativeMessage(t *testing.T) {
	kind, ok := InferKind("this is so stupid and useless")
	if !ok {
		t.Fatalf("expected a match")
	}
	if kind != interaction.NegativeMessage {
		t.Fatalf("expected negative_message, got %s", kind)
	}
}

func TestInferKindNoMatchReturnsFalse(t *testing.T) {
	_, ok := InferKind("what time is it")
	if ok {
		t.Fatalf("expected no match for neutral text")
	}
}

func TestInferKindErrorOccurred(t *testing.T) {
	kind, ok := InferKind("got a panic: nil pointer dereference in the handler")
	if !ok {
		t.Fatalf("expected a match")
	}
	if kind != interaction.ErrorOccurred {
		t.Fatalf("expected error_occurred, got %s", kind)
	}
}
