package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRequiresUserPlaceholder(t *testing.T) {
	if _, err := New("no placeholders here"); !errors.Is(err, ErrMissingUserPlaceholder) {
		t.Fatalf("expected ErrMissingUserPlaceholder, got %v", err)
	}
	if _, err := New("Question: {{user_text}}"); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}
}

func TestSetTemplateRejectsInvalid(t *testing.T) {
	a, _ := New("Q: {{user_text}}")
	a.SetUserText("hello")

	if err := a.SetTemplate("broken"); !errors.Is(err, ErrMissingUserPlaceholder) {
		t.Fatalf("expected rejection, got %v", err)
	}
	// The previous template stays active after a rejected update.
	if got := a.CurrentPrompt(); got != "Q: hello" {
		t.Errorf("prompt after rejected template: %q", got)
	}
}

func TestNoContextSentinel(t *testing.T) {
	a, _ := New("Context: {{retrieved_context}}\nQ: {{user_text}}")
	a.SetUserText("what happened?")

	if got := a.CurrentPrompt(); !strings.Contains(got, NoContextSentinel) {
		t.Errorf("empty context must substitute the sentinel, got %q", got)
	}

	a.SetRetrievedContext("   \n  ")
	if got := a.CurrentPrompt(); !strings.Contains(got, NoContextSentinel) {
		t.Errorf("whitespace context must substitute the sentinel, got %q", got)
	}

	a.SetRetrievedContext("real context")
	got := a.CurrentPrompt()
	if strings.Contains(got, NoContextSentinel) {
		t.Errorf("sentinel must vanish once context arrives, got %q", got)
	}
	if !strings.Contains(got, "real context") {
		t.Errorf("context missing from prompt: %q", got)
	}
}

func TestBlankLineRunsCollapsed(t *testing.T) {
	a, _ := New("start\n\n\n\n{{user_text}}\n\n\n\nend")
	a.SetUserText("middle")

	got := a.CurrentPrompt()
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank-line runs must collapse to one blank line: %q", got)
	}
	if !strings.Contains(got, "start\n\nmiddle\n\nend") {
		t.Errorf("unexpected prompt: %q", got)
	}
}

func TestSubscribersNotifiedSynchronously(t *testing.T) {
	a, _ := New("Q: {{user_text}}")

	var seen []string
	a.OnUpdate(func(p string) { seen = append(seen, p) })

	a.SetUserText("first")
	a.SetUserText("second")

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if seen[1] != "Q: second" {
		t.Errorf("last notification: %q", seen[1])
	}
}

func TestSubscriberPanicIsolated(t *testing.T) {
	a, _ := New("Q: {{user_text}}")

	called := false
	a.OnUpdate(func(string) { panic("bad subscriber") })
	a.OnUpdate(func(string) { called = true })

	a.SetUserText("hello")

	if !called {
		t.Error("a panicking subscriber must not starve the others")
	}
	if a.CurrentPrompt() != "Q: hello" {
		t.Error("assembler state must survive a subscriber panic")
	}
}

func TestValidate(t *testing.T) {
	a, _ := New("Q: {{user_text}}")
	a.SetUserText("ok")
	if err := a.Validate(); err != nil {
		t.Errorf("valid prompt rejected: %v", err)
	}

	big, _ := New("{{user_text}}")
	big.SetUserText(strings.Repeat("x", MaxPromptLength+1))
	if err := big.Validate(); err == nil {
		t.Error("oversized prompt must fail validation")
	}
}
