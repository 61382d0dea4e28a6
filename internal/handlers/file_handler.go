package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"docvault_backend/internal/storage"
	"docvault_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// FileHandler отдаёт объекты локального хранилища по ссылкам из /documents/{id}/url.
// Ключ объекта начинается с ID владельца, чужие ключи не отдаются.
type FileHandler struct {
	*BaseHandler
	storage storage.Storage
}

func NewFileHandler(base *BaseHandler, storage storage.Storage) *FileHandler {
	return &FileHandler{
		BaseHandler: base,
		storage:     storage,
	}
}

func (h *FileHandler) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	files.Use(h.RequireAuth)
	{
		files.GET("/*key", h.ServeFile)
	}
}

// ServeFile godoc
// @Summary Скачать объект локального хранилища
// @Tags documents
// @Produce octet-stream
// @Security BearerAuth
// @Param key path string true "Ключ объекта"
// @Success 200 {file} file
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /files/{key} [get]
func (h *FileHandler) ServeFile(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	key := path.Clean(strings.TrimPrefix(c.Param("key"), "/"))
	if !strings.HasPrefix(key, userID+"/") {
		apperrors.HandleError(c, apperrors.ErrNotFound("document", "file"))
		return
	}

	reader, err := h.storage.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			apperrors.HandleError(c, apperrors.ErrNotFound("document", "file"))
			return
		}
		h.HandleServiceError(c, apperrors.ErrInternal("document", "Failed to open file", err))
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}
