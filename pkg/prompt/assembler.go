package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const (
	// PlaceholderUserText must appear in every template.
	PlaceholderUserText = "{{user_text}}"
	// PlaceholderContext is replaced by the retrieved document context.
	PlaceholderContext = "{{retrieved_context}}"

	// NoContextSentinel substitutes the context placeholder when no
	// relevant context was retrieved, so the model sees an explicit signal
	// instead of an empty hole.
	NoContextSentinel = "No relevant document context was found."

	// MaxPromptLength is a conservative ceiling for assembled prompts.
	MaxPromptLength = 100000
)

// ErrMissingUserPlaceholder is returned when a template lacks the required
// user-text placeholder.
var ErrMissingUserPlaceholder = fmt.Errorf("template must contain the %s placeholder", PlaceholderUserText)

var blankLineRuns = regexp.MustCompile(`\n{3,}`)

// UpdateFunc receives the freshly assembled prompt after every rebuild.
type UpdateFunc func(prompt string)

// Assembler owns a prompt template and the latest user/context inputs, and
// rebuilds the final prompt synchronously on every change.
type Assembler struct {
	mu               sync.Mutex
	template         string
	userText         string
	retrievedContext string
	lastBuilt        string
	subscribers      []UpdateFunc
}

// New creates an assembler. The template must contain the user-text
// placeholder; this is a hard precondition.
func New(template string) (*Assembler, error) {
	a := &Assembler{}
	if err := a.SetTemplate(template); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Assembler) SetTemplate(template string) error {
	if !strings.Contains(template, PlaceholderUserText) {
		return ErrMissingUserPlaceholder
	}
	a.mu.Lock()
	a.template = template
	prompt, subs := a.rebuildLocked()
	a.mu.Unlock()

	notify(subs, prompt)
	return nil
}

func (a *Assembler) SetUserText(text string) {
	a.mu.Lock()
	a.userText = text
	prompt, subs := a.rebuildLocked()
	a.mu.Unlock()

	notify(subs, prompt)
}

func (a *Assembler) SetRetrievedContext(context string) {
	a.mu.Lock()
	a.retrievedContext = context
	prompt, subs := a.rebuildLocked()
	a.mu.Unlock()

	notify(subs, prompt)
}

// Template returns the active template text.
func (a *Assembler) Template() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.template
}

// CurrentPrompt returns the last assembled prompt.
func (a *Assembler) CurrentPrompt() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastBuilt
}

// OnUpdate registers a subscriber invoked after every successful rebuild.
func (a *Assembler) OnUpdate(fn UpdateFunc) {
	a.mu.Lock()
	a.subscribers = append(a.subscribers, fn)
	a.mu.Unlock()
}

// rebuildLocked substitutes placeholders and collapses blank-line runs.
// Returns the prompt and a subscriber snapshot so delivery happens outside
// the lock.
func (a *Assembler) rebuildLocked() (string, []UpdateFunc) {
	context := a.retrievedContext
	if strings.TrimSpace(context) == "" {
		context = NoContextSentinel
	}

	prompt := strings.ReplaceAll(a.template, PlaceholderUserText, a.userText)
	prompt = strings.ReplaceAll(prompt, PlaceholderContext, context)
	prompt = blankLineRuns.ReplaceAllString(prompt, "\n\n")

	a.lastBuilt = prompt

	subs := make([]UpdateFunc, len(a.subscribers))
	copy(subs, a.subscribers)
	return prompt, subs
}

// notify delivers to every subscriber; one panicking subscriber does not
// prevent the rest from running.
func notify(subs []UpdateFunc, prompt string) {
	for _, fn := range subs {
		func() {
			defer func() { _ = recover() }()
			fn(prompt)
		}()
	}
}

// Validate checks an assembled prompt: non-empty, under the length ceiling,
// and no unresolved placeholder whose input is non-empty.
func (a *Assembler) Validate() error {
	a.mu.Lock()
	prompt := a.lastBuilt
	userText := a.userText
	context := a.retrievedContext
	a.mu.Unlock()

	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("assembled prompt is empty")
	}
	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("assembled prompt exceeds %d characters (%d)", MaxPromptLength, len(prompt))
	}
	if userText != "" && strings.Contains(prompt, PlaceholderUserText) {
		return fmt.Errorf("unresolved placeholder %s", PlaceholderUserText)
	}
	if context != "" && strings.Contains(prompt, PlaceholderContext) {
		return fmt.Errorf("unresolved placeholder %s", PlaceholderContext)
	}
	return nil
}
