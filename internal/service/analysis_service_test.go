package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-docinsight-be/internal/constant"
	"ai-docinsight-be/internal/dto"
	"ai-docinsight-be/internal/pkg/logger"
	"ai-docinsight-be/internal/repository/memory"
	"ai-docinsight-be/pkg/cache"
	"ai-docinsight-be/pkg/chunking"
	"ai-docinsight-be/pkg/llm"
	"ai-docinsight-be/pkg/ratelimit"
)

type fakeProvider struct {
	mu         sync.Mutex
	calls      int
	err        error
	onGenerate func()
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onGenerate != nil {
		f.onGenerate()
	}
	if f.err != nil {
		return "", f.err
	}
	return "analysis of: " + prompt[:min(40, len(prompt))], nil
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.Generate(ctx, history[len(history)-1].Content, options...)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type fakePusher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePusher) Push(userID string, event string, data map[string]interface{}) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
}

func (f *fakePusher) has(event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == event {
			return true
		}
	}
	return false
}

type pipeline struct {
	sessions  *memory.SessionRepository
	documents IDocumentService
	limiter   *ratelimit.Limiter
	provider  *fakeProvider
	pusher    *fakePusher
	analysis  IAnalysisService
}

func newPipeline(t *testing.T, provider *fakeProvider, budgets map[ratelimit.Tier]ratelimit.TierBudget) *pipeline {
	t.Helper()
	log := logger.NewNop()

	sessions := memory.NewSessionRepository()
	documents := NewDocumentService(nil, log)
	chunker := chunking.NewChunker(chunking.Config{})
	contentCache := cache.New(cache.Config{}, log)
	limiter := ratelimit.New(ratelimit.Config{Budgets: budgets}, log)
	pusher := &fakePusher{}

	analysis := NewAnalysisService(sessions, documents, chunker, contentCache, limiter, provider, pusher, log)
	return &pipeline{
		sessions:  sessions,
		documents: documents,
		limiter:   limiter,
		provider:  provider,
		pusher:    pusher,
		analysis:  analysis,
	}
}

func uploadDoc(t *testing.T, p *pipeline, userId, text string) {
	t.Helper()
	_, err := p.documents.Upload(context.Background(), userId, &dto.UploadDocumentRequest{
		Name: "report.txt",
		Text: text,
	})
	if err != nil {
		t.Fatal(err)
	}
}

const reportText = "Revenue for the quarter was $142.5 million, up 18% year over year, with EBITDA of $38.1 million and continued gross margin expansion."

func TestRequestAnalysisMissThenHit(t *testing.T) {
	provider := &fakeProvider{}
	p := newPipeline(t, provider, nil)
	uploadDoc(t, p, "u1", reportText)

	req := &dto.AnalyzeRequest{UserId: "u1", SessionId: "s1", Query: "What was the revenue?"}

	first, err := p.analysis.RequestAnalysis(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.FromCache {
		t.Error("first request must be a cache miss")
	}
	if first.Analysis == "" {
		t.Error("expected an analysis result")
	}
	if first.ChunkCount == 0 {
		t.Error("expected chunks to be selected")
	}
	if provider.callCount() != 1 {
		t.Fatalf("provider calls: got %d, want 1", provider.callCount())
	}

	second, err := p.analysis.RequestAnalysis(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !second.FromCache {
		t.Error("second identical request must be served from cache")
	}
	if second.Analysis != first.Analysis {
		t.Error("cached analysis must match the original")
	}
	if provider.callCount() != 1 {
		t.Errorf("cache hit must not call the provider, calls=%d", provider.callCount())
	}

	// Exactly one outcome: the miss. Cache hits never feed the limiter.
	state, ok := p.limiter.UserSnapshot("u1")
	if !ok || state.SuccessCount != 1 || state.ErrorCount != 0 {
		t.Errorf("expected exactly one recorded success, got %+v", state)
	}
}

func TestRequestAnalysisPromptCarriesContext(t *testing.T) {
	provider := &fakeProvider{}
	p := newPipeline(t, provider, nil)
	uploadDoc(t, p, "u1", reportText)

	res, err := p.analysis.RequestAnalysis(context.Background(), &dto.AnalyzeRequest{
		UserId: "u1", SessionId: "s1", Query: "What was the revenue?",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(res.Prompt, "What was the revenue?") {
		t.Error("prompt missing the user question")
	}
	if !strings.Contains(res.Prompt, "Revenue for the quarter") {
		t.Error("prompt missing the retrieved context")
	}

	if !p.pusher.has(constant.EventAnalysisResult) {
		t.Error("expected analysis_result push")
	}
	if !p.pusher.has(constant.EventSystemPromptUpdate) {
		t.Error("expected system_prompt_update push from the assembler rebuild")
	}
}

func TestRequestAnalysisRateLimited(t *testing.T) {
	provider := &fakeProvider{}
	p := newPipeline(t, provider, map[ratelimit.Tier]ratelimit.TierBudget{
		ratelimit.TierNewUser:    {Requests: 1, Window: time.Minute},
		ratelimit.TierRegular:    {Requests: 15, Window: time.Minute},
		ratelimit.TierPower:      {Requests: 25, Window: time.Minute},
		ratelimit.TierEnterprise: {Requests: 50, Window: time.Minute},
	})
	uploadDoc(t, p, "u1", reportText)

	req := &dto.AnalyzeRequest{UserId: "u1", SessionId: "s1", Query: "revenue?"}
	if _, err := p.analysis.RequestAnalysis(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	// Different query so the cache cannot absorb the second request.
	req2 := &dto.AnalyzeRequest{UserId: "u1", SessionId: "s1", Query: "ebitda?"}
	_, err := p.analysis.RequestAnalysis(context.Background(), req2)

	var rateErr *RateLimitedError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rateErr.RetryAfter <= 0 {
		t.Errorf("expected positive RetryAfter, got %v", rateErr.RetryAfter)
	}
	if provider.callCount() != 1 {
		t.Errorf("denied request must not reach the provider, calls=%d", provider.callCount())
	}

	// Denials record no outcome.
	state, _ := p.limiter.UserSnapshot("u1")
	if state.SuccessCount+state.ErrorCount != 1 {
		t.Errorf("denial must not record an outcome: %+v", state)
	}
}

func TestRequestAnalysisProviderErrorMapped(t *testing.T) {
	provider := &fakeProvider{err: &llm.ProviderError{
		Provider: "test",
		Category: llm.ErrorQuota,
		Err:      errors.New("quota exhausted"),
	}}
	p := newPipeline(t, provider, nil)
	uploadDoc(t, p, "u1", reportText)

	_, err := p.analysis.RequestAnalysis(context.Background(), &dto.AnalyzeRequest{
		UserId: "u1", SessionId: "s1", Query: "revenue?",
	})

	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("expected AnalysisError, got %v", err)
	}
	if analysisErr.UserMessage != constant.UserMessageForCategory(llm.ErrorQuota) {
		t.Errorf("user message: got %q", analysisErr.UserMessage)
	}

	state, _ := p.limiter.UserSnapshot("u1")
	if state.ErrorCount != 1 || state.SuccessCount != 0 {
		t.Errorf("expected exactly one recorded failure, got %+v", state)
	}
}

func TestRequestAnalysisStaleDiscarded(t *testing.T) {
	provider := &fakeProvider{}
	p := newPipeline(t, provider, nil)
	uploadDoc(t, p, "u1", reportText)

	// Create the session up front so the test can race it.
	if err := p.analysis.UpdateUserText("u1", "s1", "draft"); err != nil {
		t.Fatal(err)
	}
	sess, ok := p.sessions.Get("s1")
	if !ok {
		t.Fatal("session missing")
	}

	// While the provider call is in flight, a newer input lands and commits.
	provider.onGenerate = func() {
		newer := sess.NextSeq()
		sess.CommitIfNewest(newer)
	}

	res, err := p.analysis.RequestAnalysis(context.Background(), &dto.AnalyzeRequest{
		UserId: "u1", SessionId: "s1", Query: "revenue?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Stale {
		t.Fatal("result overtaken mid-flight must be marked stale")
	}

	// A stale result must not touch the session's prompt state.
	if got := sess.Assembler.CurrentPrompt(); !strings.Contains(got, "draft") {
		t.Errorf("stale result mutated session prompt: %q", got)
	}
	if p.pusher.has(constant.EventAnalysisResult) {
		t.Error("stale result must not be pushed")
	}
}

func TestUserTextUpdateOvertakesInFlightAnalysis(t *testing.T) {
	provider := &fakeProvider{}
	p := newPipeline(t, provider, nil)
	uploadDoc(t, p, "u1", reportText)

	// A text update arrives through the service while the provider call is
	// still in flight. It must take the session over, not the other way round.
	provider.onGenerate = func() {
		if err := p.analysis.UpdateUserText("u1", "s1", "ask about margins instead"); err != nil {
			t.Error(err)
		}
	}

	res, err := p.analysis.RequestAnalysis(context.Background(), &dto.AnalyzeRequest{
		UserId: "u1", SessionId: "s1", Query: "revenue?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Stale {
		t.Fatal("analysis overtaken by a newer text update must be stale")
	}

	sess, ok := p.sessions.Get("s1")
	if !ok {
		t.Fatal("session missing")
	}
	got := sess.Assembler.CurrentPrompt()
	if !strings.Contains(got, "ask about margins instead") {
		t.Errorf("newer user text lost: %q", got)
	}
	if strings.Contains(got, "revenue?") {
		t.Errorf("stale analysis overwrote newer user text: %q", got)
	}
}

func TestUpdateTemplateValidation(t *testing.T) {
	p := newPipeline(t, &fakeProvider{}, nil)

	if err := p.analysis.UpdateTemplate("u1", "s1", "missing placeholder"); err == nil {
		t.Fatal("template without the user placeholder must be rejected")
	}

	valid := "Custom: {{retrieved_context}} | {{user_text}}"
	if err := p.analysis.UpdateTemplate("u1", "s1", valid); err != nil {
		t.Fatal(err)
	}

	sess, _ := p.sessions.Get("s1")
	if sess.Assembler.Template() != valid {
		t.Error("template not applied")
	}
}

func TestCurrentPromptUnknownSession(t *testing.T) {
	p := newPipeline(t, &fakeProvider{}, nil)
	if _, err := p.analysis.CurrentPrompt("u1", "nope"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}
