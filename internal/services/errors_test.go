package services_test

import (
	"errors"
	"strings"
	"testing"

	"metasync/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "season 2", "fetch", "season metadata", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"season 2", "fetch", "season metadata"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker by default, got %v", err)
	}
	if !strings.Contains(err.Error(), "sync failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureOutcomeMapping(t *testing.T) {
	malformed := services.Wrap(services.ErrMalformedDescriptor, "/lib/Foo/.metas.json", "parse", "", errors.New("eof"))
	if got := services.FailureOutcome(malformed); got != services.OutcomeMalformed {
		t.Fatalf("expected malformed outcome, got %s", got)
	}

	unresolved := services.Wrap(services.ErrUnresolved, "Foo", "search", "no confident match", nil)
	if got := services.FailureOutcome(unresolved); got != services.OutcomeUnresolved {
		t.Fatalf("expected unresolved outcome, got %s", got)
	}

	joined := errors.Join(services.Wrap(services.ErrTransient, "season 1", "fetch", "", errors.New("io")))
	if got := services.FailureOutcome(joined); got != services.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", got)
	}
}
