package service

import (
	"context"
	"encoding/json"
	"testing"

	"ai-docinsight-be/internal/constant"
	"ai-docinsight-be/internal/dto"
	"ai-docinsight-be/internal/pkg/logger"
	"ai-docinsight-be/pkg/cache"
	"ai-docinsight-be/pkg/chunking"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestProcessMessageWarmsCacheWithProvenance(t *testing.T) {
	log := logger.NewNop()
	documents := NewDocumentService(nil, log)
	contentCache := cache.New(cache.Config{}, log)
	pusher := &fakePusher{}
	cs := &consumerService{
		documents:    documents,
		chunker:      chunking.NewChunker(chunking.Config{}),
		contentCache: contentCache,
		pusher:       pusher,
		logger:       log,
	}

	first := "Cash flow from operations improved on stronger earnings and disciplined capital expenditures across the segment portfolio."
	if _, err := documents.Upload(context.Background(), "u1", &dto.UploadDocumentRequest{Name: "q1.txt", Text: first}); err != nil {
		t.Fatal(err)
	}
	uploaded, err := documents.Upload(context.Background(), "u1", &dto.UploadDocumentRequest{Name: "q2.txt", Text: reportText})
	if err != nil {
		t.Fatal(err)
	}

	payload, err := json.Marshal(dto.PublishDocumentUploadedMessage{DocumentId: uploaded.Id, UserId: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	cs.processMessage(message.NewMessage("m1", payload))

	combined, ok := contentCache.Get(documents.CombinedText("u1"), "")
	if !ok || len(combined.Chunks) == 0 {
		t.Fatal("combined corpus entry not warmed")
	}

	perDoc, ok := contentCache.Get(reportText, "")
	if !ok || len(perDoc.Chunks) == 0 {
		t.Fatal("per-document entry not warmed")
	}
	for _, ch := range perDoc.Chunks {
		if ch.SourceDocId != uploaded.Id.String() {
			t.Errorf("chunk source: got %q, want %q", ch.SourceDocId, uploaded.Id.String())
		}
	}

	if !pusher.has(constant.EventDocumentStatsUpdate) {
		t.Error("expected document_stats_update push")
	}
}

func TestProcessMessageIgnoresMalformedPayload(t *testing.T) {
	log := logger.NewNop()
	contentCache := cache.New(cache.Config{}, log)
	cs := &consumerService{
		documents:    NewDocumentService(nil, log),
		chunker:      chunking.NewChunker(chunking.Config{}),
		contentCache: contentCache,
		logger:       log,
	}

	cs.processMessage(message.NewMessage("m1", []byte("{broken")))

	if stats := contentCache.Stats(); stats.Saves != 0 {
		t.Errorf("malformed payload must not warm the cache: %+v", stats)
	}
}
