package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-docinsight-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IPublisherService interface {
	PublishDocumentUploaded(ctx context.Context, userId string, documentId uuid.UUID) error
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

func (ps *publisherService) PublishDocumentUploaded(ctx context.Context, userId string, documentId uuid.UUID) error {
	payload := dto.PublishDocumentUploadedMessage{
		DocumentId: documentId,
		UserId:     userId,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal upload message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)

	return ps.pubSub.Publish(ps.topicName, msg)
}
