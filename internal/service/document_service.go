package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ai-docinsight-be/internal/dto"
	"ai-docinsight-be/internal/entity"
	"ai-docinsight-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// IDocumentService is the document collaborator: it owns the per-user
// document set the pipeline reads from. Documents are immutable once
// uploaded.
type IDocumentService interface {
	Upload(ctx context.Context, userId string, request *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error)
	List(ctx context.Context, userId string) ([]*dto.DocumentResponse, error)
	Delete(ctx context.Context, userId string, documentId uuid.UUID) error
	Get(userId string, documentId uuid.UUID) (*entity.Document, bool)

	// CombinedText joins all of the user's documents into the corpus the
	// chunker runs over, in upload order.
	CombinedText(userId string) string

	Stats(userId string) *dto.DocumentStatsResponse
}

type documentService struct {
	mu        sync.RWMutex
	documents map[string][]*entity.Document

	publisher IPublisherService
	logger    logger.ILogger
}

func NewDocumentService(publisher IPublisherService, log logger.ILogger) IDocumentService {
	return &documentService{
		documents: make(map[string][]*entity.Document),
		publisher: publisher,
		logger:    log,
	}
}

func (ds *documentService) Upload(ctx context.Context, userId string, request *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error) {
	doc := &entity.Document{
		Id:         uuid.New(),
		UserId:     userId,
		Name:       request.Name,
		Text:       request.Text,
		UploadedAt: time.Now(),
	}

	ds.mu.Lock()
	ds.documents[userId] = append(ds.documents[userId], doc)
	ds.mu.Unlock()

	ds.logger.Info("DocumentService", "Document uploaded", map[string]interface{}{
		"user_id":     userId,
		"document_id": doc.Id,
		"length":      len(doc.Text),
	})

	if ds.publisher != nil {
		if err := ds.publisher.PublishDocumentUploaded(ctx, userId, doc.Id); err != nil {
			ds.logger.Warn("DocumentService", "Failed to publish upload event", map[string]interface{}{
				"document_id": doc.Id,
				"error":       err.Error(),
			})
		}
	}

	return &dto.UploadDocumentResponse{
		Id:         doc.Id,
		Name:       doc.Name,
		Length:     len(doc.Text),
		UploadedAt: doc.UploadedAt,
	}, nil
}

func (ds *documentService) List(ctx context.Context, userId string) ([]*dto.DocumentResponse, error) {
	ds.mu.RLock()
	docs := ds.documents[userId]
	ds.mu.RUnlock()

	response := make([]*dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		response = append(response, &dto.DocumentResponse{
			Id:         d.Id,
			Name:       d.Name,
			Length:     len(d.Text),
			UploadedAt: d.UploadedAt,
		})
	}

	sort.Slice(response, func(i, j int) bool {
		return response[i].UploadedAt.Before(response[j].UploadedAt)
	})
	return response, nil
}

func (ds *documentService) Delete(ctx context.Context, userId string, documentId uuid.UUID) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	docs := ds.documents[userId]
	for i, d := range docs {
		if d.Id == documentId {
			ds.documents[userId] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("document not found or access denied")
}

func (ds *documentService) Get(userId string, documentId uuid.UUID) (*entity.Document, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	for _, d := range ds.documents[userId] {
		if d.Id == documentId {
			return d, true
		}
	}
	return nil, false
}

func (ds *documentService) CombinedText(userId string) string {
	ds.mu.RLock()
	docs := ds.documents[userId]
	ds.mu.RUnlock()

	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(d.Text)
	}
	return b.String()
}

func (ds *documentService) Stats(userId string) *dto.DocumentStatsResponse {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	total := 0
	for _, d := range ds.documents[userId] {
		total += len(d.Text)
	}
	return &dto.DocumentStatsResponse{
		Count:      len(ds.documents[userId]),
		TotalBytes: total,
	}
}
