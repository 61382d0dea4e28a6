package dto

import (
	"io"
	"time"

	"docvault_backend/internal/models"
)

// UploadRequest - загружаемый файл
type UploadRequest struct {
	Filename string
	MimeType string
	Size     int64
	Content  io.Reader
}

type DocumentListResponse struct {
	Documents []models.Document `json:"documents"`
	Total     int64             `json:"total"`
	Page      int               `json:"page"`
	PageSize  int               `json:"page_size"`
}

type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
