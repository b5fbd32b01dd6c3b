package domain

import (
	"errors"
	"testing"
)

func TestWrapErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrRetrievalUnavailable, "dense search", cause)

	if !IsKind(err, ErrRetrievalUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause to match, got %v", err)
	}
	if err.Error() != "dense search: retrieval unavailable: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if WrapError(ErrTemporary, "op", nil) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestKindLabelRoundTrip(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{errors.New("plain"), "internal"},
		{WrapError(ErrInvalidInput, "ask", errors.New("empty")), "invalid_input"},
		{WrapError(ErrGenerationFailure, "generate", WrapError(ErrTemporary, "ollama", errors.New("503"))), "generation_failure"},
		{WrapError(ErrTemporary, "nats ask", errors.New("no responders")), "temporary"},
	}
	for _, tc := range tests {
		if got := KindLabel(tc.err); got != tc.want {
			t.Fatalf("KindLabel(%v) = %q, want %q", tc.err, got, tc.want)
		}
		if tc.want == "none" || tc.want == "internal" {
			continue
		}
		kind, ok := KindByLabel(tc.want)
		if !ok || !IsKind(tc.err, kind) {
			t.Fatalf("KindByLabel(%q) = %v, %v", tc.want, kind, ok)
		}
	}
	if _, ok := KindByLabel("internal"); ok {
		t.Fatal("internal is not a kind")
	}
}
