package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"docvault_backend/internal/services"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// multipartOverhead - запас на заголовки multipart сверх размера файла
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	*BaseHandler
	documentService services.DocumentService
	maxUploadSize   int64
}

func NewDocumentHandler(base *BaseHandler, documentService services.DocumentService, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler:     base,
		documentService: documentService,
		maxUploadSize:   maxUploadSize,
	}
}

func (h *DocumentHandler) RegisterRoutes(r *gin.RouterGroup) {
	documents := r.Group("/documents")
	documents.Use(h.RequireAuth)
	{
		documents.POST("", h.Upload)
		documents.GET("", h.List)
		documents.GET("/:documentId", h.Get)
		documents.GET("/:documentId/download", h.Download)
		documents.GET("/:documentId/url", h.DownloadURL)
		documents.DELETE("/:documentId", h.Delete)
	}
}

// Upload godoc
// @Summary Загрузить документ
// @Description Проверяет квоту тарифа (объём и число документов) и сохраняет файл
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Файл"
// @Success 201 {object} models.Document
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse "Квота исчерпана"
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.HandleServiceError(c, apperrors.ErrInvalidInput("document", "file is too large"))
			return
		}
		h.HandleServiceError(c, apperrors.ErrInvalidInput("document", "multipart field 'file' is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.HandleServiceError(c, apperrors.ErrInvalidInput("document", "failed to read uploaded file"))
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(fileHeader.Filename)); byExt != "" {
			mimeType = byExt
		}
	}
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}

	doc, err := h.documentService.Upload(c.Request.Context(), h.GetDB(c), userID, &dto.UploadRequest{
		Filename: fileHeader.Filename,
		MimeType: mimeType,
		Size:     fileHeader.Size,
		Content:  file,
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// List godoc
// @Summary Документы пользователя
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param page query int false "Страница" default(1)
// @Param page_size query int false "Размер страницы" default(20)
// @Success 200 {object} dto.DocumentListResponse
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	page, pageSize := ParsePagination(c)
	resp, err := h.documentService.List(c.Request.Context(), h.GetDB(c), userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Метаданные документа
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param documentId path string true "ID документа"
// @Success 200 {object} models.Document
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /documents/{documentId} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), h.GetDB(c), userID, c.Param("documentId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Download godoc
// @Summary Скачать документ
// @Tags documents
// @Produce octet-stream
// @Security BearerAuth
// @Param documentId path string true "ID документа"
// @Success 200 {file} file
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /documents/{documentId}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	doc, reader, err := h.documentService.Download(c.Request.Context(), h.GetDB(c), userID, c.Param("documentId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	defer reader.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, doc.FileSize, contentType, reader, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}),
	})
}

// DownloadURL godoc
// @Summary Временная ссылка на скачивание
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param documentId path string true "ID документа"
// @Success 200 {object} dto.DownloadURLResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /documents/{documentId}/url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.documentService.DownloadURL(c.Request.Context(), h.GetDB(c), userID, c.Param("documentId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete godoc
// @Summary Удалить документ
// @Description Квота освобождается сразу после удаления строки
// @Tags documents
// @Security BearerAuth
// @Param documentId path string true "ID документа"
// @Success 204
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /documents/{documentId} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), h.GetDB(c), userID, c.Param("documentId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
