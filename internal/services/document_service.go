package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"docvault_backend/internal/locks"
	"docvault_backend/internal/logger"
	"docvault_backend/internal/models"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services/dto"
	"docvault_backend/internal/storage"
	"docvault_backend/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentService interface {
	Upload(ctx context.Context, db *gorm.DB, userID string, req *dto.UploadRequest) (*models.Document, error)
	List(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.DocumentListResponse, error)
	Get(ctx context.Context, db *gorm.DB, userID, documentID string) (*models.Document, error)
	// Download открывает содержимое; вызывающий закрывает reader
	Download(ctx context.Context, db *gorm.DB, userID, documentID string) (*models.Document, io.ReadCloser, error)
	DownloadURL(ctx context.Context, db *gorm.DB, userID, documentID string) (*dto.DownloadURLResponse, error)
	Delete(ctx context.Context, db *gorm.DB, userID, documentID string) error
}

// DocumentServiceConfig - ограничения загрузки
type DocumentServiceConfig struct {
	MaxSize      int64
	AllowedTypes []string
	URLTTL       time.Duration
}

type documentService struct {
	cfg     DocumentServiceConfig
	docRepo repositories.DocumentRepository
	quota   QuotaService
	storage storage.Storage
	locker  locks.Locker
}

func NewDocumentService(
	cfg DocumentServiceConfig,
	docRepo repositories.DocumentRepository,
	quotaService QuotaService,
	store storage.Storage,
	locker locks.Locker,
) DocumentService {
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 15 * time.Minute
	}
	return &documentService{
		cfg:     cfg,
		docRepo: docRepo,
		quota:   quotaService,
		storage: store,
		locker:  locker,
	}
}

// Upload держит блокировку пользователя на всё время проверка -> запись объекта -> вставка строки
func (s *documentService) Upload(ctx context.Context, db *gorm.DB, userID string, req *dto.UploadRequest) (*models.Document, error) {
	filename, err := s.validateUpload(req)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, "upload:"+userID)
	if err != nil {
		return nil, apperrors.ErrInternal("document", "failed to acquire upload lock", err)
	}
	defer unlock()

	if err := s.quota.CheckDocumentCount(ctx, db, userID); err != nil {
		return nil, err
	}
	if err := s.quota.CheckStorage(ctx, db, userID, req.Size); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	written, err := s.storage.Save(ctx, key, io.LimitReader(req.Content, req.Size+1), req.Size, req.MimeType)
	if err != nil {
		return nil, apperrors.ErrInternal("document", "failed to store file", err)
	}
	if written != req.Size {
		s.removeObject(ctx, key)
		return nil, apperrors.ErrInvalidInput("document",
			fmt.Sprintf("file size mismatch: declared %d bytes, received %d", req.Size, written))
	}

	doc := &models.Document{
		UserID:     userID,
		Filename:   filename,
		FileSize:   written,
		MimeType:   req.MimeType,
		StorageKey: key,
	}
	if err := s.docRepo.Create(db, doc); err != nil {
		s.removeObject(ctx, key)
		return nil, handleRepoError("document", err)
	}

	logger.CtxInfo(ctx, "Document uploaded", "document_id", doc.ID, "size", doc.FileSize)
	return doc, nil
}

func (s *documentService) validateUpload(req *dto.UploadRequest) (string, error) {
	if req.Content == nil {
		return "", apperrors.ErrInvalidInput("document", "file is required")
	}
	filename := SanitizeFilename(req.Filename)
	if filename == "" {
		return "", apperrors.ErrInvalidInput("document", "filename is required")
	}
	if req.Size <= 0 {
		return "", apperrors.ErrInvalidInput("document", "file is empty")
	}
	if s.cfg.MaxSize > 0 && req.Size > s.cfg.MaxSize {
		return "", apperrors.ErrInvalidInput("document",
			fmt.Sprintf("file is too large: %d bytes, maximum is %d", req.Size, s.cfg.MaxSize))
	}
	if req.MimeType == "" {
		req.MimeType = "application/octet-stream"
	}
	if len(s.cfg.AllowedTypes) > 0 && !containsFold(s.cfg.AllowedTypes, req.MimeType) {
		return "", apperrors.ErrInvalidInput("document", "file type is not allowed: "+req.MimeType)
	}
	return filename, nil
}

// SanitizeFilename оставляет только базовое имя файла
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	if len(base) > 255 {
		base = base[len(base)-255:]
	}
	return base
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func (s *documentService) List(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.DocumentListResponse, error) {
	page, pageSize, offset := dto.NormalizePage(page, pageSize)
	docs, total, err := s.docRepo.FindByUser(db, userID, pageSize, offset)
	if err != nil {
		return nil, handleRepoError("document", err)
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return &dto.DocumentListResponse{Documents: docs, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *documentService) Get(ctx context.Context, db *gorm.DB, userID, documentID string) (*models.Document, error) {
	doc, err := s.docRepo.FindByIDForUser(db, documentID, userID)
	if err != nil {
		return nil, handleRepoError("document", err)
	}
	return doc, nil
}

func (s *documentService) Download(ctx context.Context, db *gorm.DB, userID, documentID string) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, db, userID, documentID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.storage.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.CtxError(ctx, "Document object is missing", "document_id", doc.ID)
			return nil, nil, apperrors.ErrNotFound("document", "document content")
		}
		return nil, nil, apperrors.ErrInternal("document", "failed to read file", err)
	}
	return doc, reader, nil
}

func (s *documentService) DownloadURL(ctx context.Context, db *gorm.DB, userID, documentID string) (*dto.DownloadURLResponse, error) {
	doc, err := s.Get(ctx, db, userID, documentID)
	if err != nil {
		return nil, err
	}
	url, err := s.storage.GetSignedURL(ctx, doc.StorageKey, s.cfg.URLTTL)
	if err != nil {
		return nil, apperrors.ErrInternal("document", "failed to sign download url", err)
	}
	return &dto.DownloadURLResponse{URL: url, ExpiresAt: time.Now().Add(s.cfg.URLTTL).UTC()}, nil
}

// Delete сначала удаляет строку, квота освобождается сразу; объект удаляется после
func (s *documentService) Delete(ctx context.Context, db *gorm.DB, userID, documentID string) error {
	doc, err := s.Get(ctx, db, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.docRepo.Delete(db, doc.ID, userID); err != nil {
		return handleRepoError("document", err)
	}
	s.removeObject(ctx, doc.StorageKey)
	logger.CtxInfo(ctx, "Document deleted", "document_id", doc.ID)
	return nil
}

func (s *documentService) removeObject(ctx context.Context, key string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.CtxWithError(ctx, "Failed to delete stored object", err, "storage_key", key)
	}
}
