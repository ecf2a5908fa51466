package service

import (
	"context"
	"fmt"
	"strings"

	"ai-docinsight-be/internal/constant"
	"ai-docinsight-be/internal/dto"
	"ai-docinsight-be/internal/pkg/logger"
	"ai-docinsight-be/internal/repository/memory"
	"ai-docinsight-be/pkg/cache"
	"ai-docinsight-be/pkg/chunking"
	"ai-docinsight-be/pkg/llm"
	"ai-docinsight-be/pkg/prompt"
	"ai-docinsight-be/pkg/ratelimit"
)

// IAnalysisService is the thin orchestrator over the pipeline collaborators:
// limiter gate, cache lookup, chunk selection, prompt assembly, AI call,
// outcome feedback, and stale-result discard.
type IAnalysisService interface {
	RequestAnalysis(ctx context.Context, request *dto.AnalyzeRequest) (*dto.AnalyzeResponse, error)
	UpdateUserText(userId, sessionId, text string) error
	UpdateTemplate(userId, sessionId, template string) error
	CurrentPrompt(userId, sessionId string) (string, error)
}

type analysisService struct {
	sessions     *memory.SessionRepository
	documents    IDocumentService
	chunker      *chunking.Chunker
	contentCache *cache.ContentCache
	limiter      *ratelimit.Limiter
	provider     llm.LLMProvider
	pusher       EventPusher
	logger       logger.ILogger
}

func NewAnalysisService(
	sessions *memory.SessionRepository,
	documents IDocumentService,
	chunker *chunking.Chunker,
	contentCache *cache.ContentCache,
	limiter *ratelimit.Limiter,
	provider llm.LLMProvider,
	pusher EventPusher,
	log logger.ILogger,
) IAnalysisService {
	return &analysisService{
		sessions:     sessions,
		documents:    documents,
		chunker:      chunker,
		contentCache: contentCache,
		limiter:      limiter,
		provider:     provider,
		pusher:       pusher,
		logger:       log,
	}
}

// RequestAnalysis runs the full pipeline for one query. The limiter is
// consulted before any work; a denial costs nothing downstream and records
// no outcome. Outcomes are recorded exactly once, and only for requests that
// actually reached the AI provider.
func (as *analysisService) RequestAnalysis(ctx context.Context, request *dto.AnalyzeRequest) (*dto.AnalyzeResponse, error) {
	sess := as.getOrCreateSession(request.UserId, request.SessionId)
	seq := sess.NextSeq()

	decision := as.limiter.IsAllowed(request.UserId)
	if !decision.Allowed {
		return nil, &RateLimitedError{UserId: request.UserId, RetryAfter: decision.RetryAfter}
	}

	corpus := as.documents.CombinedText(request.UserId)

	var (
		chunks    []chunking.Chunk
		analysis  string
		fromCache bool
	)

	if entry, ok := as.contentCache.Get(corpus, request.Query); ok {
		chunks = entry.Chunks
		if entry.Response != "" {
			// Full hit: the AI provider is not consulted and no outcome is
			// recorded, so cached traffic cannot move tiers or health.
			analysis = entry.Response
			fromCache = true
		}
	}

	if chunks == nil {
		chunks = as.chunker.SelectRelevantChunks(corpus, request.Query)
	}
	contextText := renderContext(chunks)

	if !fromCache {
		assembled, err := as.buildPrompt(sess, request.Query, contextText)
		if err != nil {
			return nil, err
		}

		analysis, err = as.provider.Generate(ctx, assembled)
		as.limiter.RecordOutcome(request.UserId, err == nil)
		if err != nil {
			category := llm.Categorize(err)
			as.logger.Error("AnalysisService", "AI provider call failed", map[string]interface{}{
				"user_id":  request.UserId,
				"category": string(category),
				"error":    err.Error(),
			})
			return nil, &AnalysisError{UserMessage: constant.UserMessageForCategory(category), Err: err}
		}

		as.contentCache.Put(corpus, request.Query, chunks, analysis)
	}

	if !sess.CommitIfNewest(seq) {
		as.logger.Info("AnalysisService", "Stale result discarded", map[string]interface{}{
			"session_id": sess.ID,
			"seq":        seq,
		})
		return &dto.AnalyzeResponse{
			SessionId: sess.ID,
			Analysis:  analysis,
			FromCache: fromCache,
			Stale:     true,
			Remaining: decision.Remaining,
		}, nil
	}

	sess.Assembler.SetRetrievedContext(contextText)
	sess.Assembler.SetUserText(request.Query)

	if as.pusher != nil {
		as.pusher.Push(request.UserId, constant.EventAnalysisResult, map[string]interface{}{
			"session_id": sess.ID,
			"analysis":   analysis,
			"from_cache": fromCache,
		})
	}

	return &dto.AnalyzeResponse{
		SessionId:  sess.ID,
		Prompt:     sess.Assembler.CurrentPrompt(),
		Analysis:   analysis,
		FromCache:  fromCache,
		Remaining:  decision.Remaining,
		ChunkCount: len(chunks),
	}, nil
}

// UpdateUserText rebuilds the session prompt from fresh input. It advances
// and commits the session sequence so any analysis still in flight for older
// input fails its commit instead of overwriting this rebuild.
func (as *analysisService) UpdateUserText(userId, sessionId, text string) error {
	sess := as.getOrCreateSession(userId, sessionId)
	seq := sess.NextSeq()
	sess.Assembler.SetUserText(text)
	sess.CommitIfNewest(seq)
	return nil
}

func (as *analysisService) UpdateTemplate(userId, sessionId, template string) error {
	sess := as.getOrCreateSession(userId, sessionId)
	seq := sess.NextSeq()
	if err := sess.Assembler.SetTemplate(template); err != nil {
		return err
	}
	sess.CommitIfNewest(seq)
	return nil
}

func (as *analysisService) CurrentPrompt(userId, sessionId string) (string, error) {
	sess, ok := as.sessions.Get(sessionId)
	if !ok {
		return "", fmt.Errorf("session not found: %s", sessionId)
	}
	return sess.Assembler.CurrentPrompt(), nil
}

func (as *analysisService) getOrCreateSession(userId, sessionId string) *memory.PromptSession {
	if sess, ok := as.sessions.Get(sessionId); ok {
		return sess
	}

	assembler, err := prompt.New(constant.DefaultSystemTemplate)
	if err != nil {
		// The default template carries the user-text placeholder; this is
		// unreachable without a source change.
		panic(err)
	}

	sess := &memory.PromptSession{
		ID:        sessionId,
		UserID:    userId,
		Assembler: assembler,
	}

	if as.pusher != nil {
		assembler.OnUpdate(func(p string) {
			as.pusher.Push(userId, constant.EventSystemPromptUpdate, map[string]interface{}{
				"session_id": sessionId,
				"prompt":     p,
			})
		})
	}

	as.sessions.Save(sess)
	return sess
}

// buildPrompt renders a one-shot prompt from the session's active template
// without mutating session state, so stale requests leave no trace.
func (as *analysisService) buildPrompt(sess *memory.PromptSession, query, contextText string) (string, error) {
	scratch, err := prompt.New(sess.Assembler.Template())
	if err != nil {
		return "", err
	}
	scratch.SetRetrievedContext(contextText)
	scratch.SetUserText(query)
	if err := scratch.Validate(); err != nil {
		return "", fmt.Errorf("prompt validation failed: %w", err)
	}
	return scratch.CurrentPrompt(), nil
}

// renderContext joins chunk contents with a visible separator for the model.
func renderContext(chunks []chunking.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		parts = append(parts, ch.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
