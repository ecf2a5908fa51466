package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadDocumentRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Text string `json:"text" validate:"required"`
}

type UploadDocumentResponse struct {
	Id         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Length     int       `json:"length"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type DocumentResponse struct {
	Id         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Length     int       `json:"length"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type DocumentStatsResponse struct {
	Count      int `json:"count"`
	TotalBytes int `json:"total_bytes"`
}

// PublishDocumentUploadedMessage is the payload carried on the in-proc bus
// from upload to the cache-warming consumer.
type PublishDocumentUploadedMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
	UserId     string    `json:"user_id"`
}
