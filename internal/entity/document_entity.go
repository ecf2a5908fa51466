package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded text document. Immutable once created; chunks
// reference it by id.
type Document struct {
	Id         uuid.UUID
	UserId     string
	Name       string
	Text       string
	UploadedAt time.Time
}
