package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-docinsight-be/internal/constant"
	"ai-docinsight-be/internal/dto"
	"ai-docinsight-be/internal/pkg/logger"
	"ai-docinsight-be/pkg/cache"
	"ai-docinsight-be/pkg/chunking"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IConsumerService drains the upload topic and warms the content cache in the
// background, so the first analysis after an upload finds chunks ready.
type IConsumerService interface {
	Consume(ctx context.Context, topicName string) error
}

type consumerService struct {
	pubSub       *gochannel.GoChannel
	documents    IDocumentService
	chunker      *chunking.Chunker
	contentCache *cache.ContentCache
	pusher       EventPusher
	logger       logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	documents IDocumentService,
	chunker *chunking.Chunker,
	contentCache *cache.ContentCache,
	pusher EventPusher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:       pubSub,
		documents:    documents,
		chunker:      chunker,
		contentCache: contentCache,
		pusher:       pusher,
		logger:       log,
	}
}

func (cs *consumerService) Consume(ctx context.Context, topicName string) error {
	messages, err := cs.pubSub.Subscribe(ctx, topicName)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topicName, err)
	}

	cs.logger.Info("ConsumerService", "Consumer started", map[string]interface{}{
		"topic": topicName,
	})

	for msg := range messages {
		cs.processMessage(msg)
		msg.Ack()
	}
	return nil
}

// processMessage warms the chunk cache for the uploader's combined corpus
// with an empty query, the neutral-scored baseline every query-specific
// lookup falls back to.
func (cs *consumerService) processMessage(msg *message.Message) {
	var payload dto.PublishDocumentUploadedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal upload message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	text := cs.documents.CombinedText(payload.UserId)
	if text == "" {
		return
	}

	chunks := cs.chunker.SelectRelevantChunks(text, "")
	cs.contentCache.Put(text, "", chunks, "")

	// The combined corpus spans documents, so its chunks carry no source
	// attribution. Keep a second warm entry for the uploaded document alone,
	// with every chunk tagged by its origin.
	if doc, ok := cs.documents.Get(payload.UserId, payload.DocumentId); ok {
		docChunks := cs.chunker.SelectRelevantChunks(doc.Text, "")
		for i := range docChunks {
			docChunks[i].SourceDocId = doc.Id.String()
		}
		cs.contentCache.Put(doc.Text, "", docChunks, "")
	}

	cs.logger.Info("ConsumerService", "Cache warmed after upload", map[string]interface{}{
		"user_id":     payload.UserId,
		"document_id": payload.DocumentId,
		"chunks":      len(chunks),
	})

	if cs.pusher != nil {
		stats := cs.documents.Stats(payload.UserId)
		cs.pusher.Push(payload.UserId, constant.EventDocumentStatsUpdate, map[string]interface{}{
			"count":       stats.Count,
			"total_bytes": stats.TotalBytes,
		})
	}
}
