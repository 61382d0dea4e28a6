package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"docvault_backend/internal/locks"
	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services"
	"docvault_backend/internal/services/dto"
	"docvault_backend/internal/storage"
	"docvault_backend/pkg/apperrors"
	"docvault_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type docEnv struct {
	*testEnv
	dir  string
	docs services.DocumentService
}

func newDocEnv(t *testing.T, docRepo repositories.DocumentRepository) *docEnv {
	t.Helper()
	env := newTestEnv(t)
	dir := t.TempDir()

	store, err := storage.NewStorage(context.Background(), storage.Config{Type: "local", BasePath: dir, BaseURL: "/api/v1/files"})
	require.NoError(t, err)

	if docRepo == nil {
		docRepo = env.docRepo
	}
	docs := services.NewDocumentService(
		services.DocumentServiceConfig{MaxSize: 1 << 20, AllowedTypes: []string{"application/pdf", "text/plain"}},
		docRepo, env.quota, store, locks.NewMemoryLocker(),
	)
	return &docEnv{testEnv: env, dir: dir, docs: docs}
}

func (e *docEnv) storedFiles(t *testing.T) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.WalkDir(e.dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	}))
	return n
}

func upload(name, mime, body string) *dto.UploadRequest {
	return &dto.UploadRequest{Filename: name, MimeType: mime, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func TestUpload_StoresObjectAndRow(t *testing.T) {
	env := newDocEnv(t, nil)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)

	doc, err := env.docs.Upload(context.Background(), env.db, user.ID, upload("../../etc/Report.PDF", "application/pdf", "%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "Report.PDF", doc.Filename)
	assert.Equal(t, int64(8), doc.FileSize)
	assert.True(t, strings.HasPrefix(doc.StorageKey, user.ID+"/"))
	assert.True(t, strings.HasSuffix(doc.StorageKey, ".pdf"))
	assert.Equal(t, 1, env.storedFiles(t))

	_, reader, err := env.docs.Download(context.Background(), env.db, user.ID, doc.ID)
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	require.NoError(t, reader.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	link, err := env.docs.DownloadURL(context.Background(), env.db, user.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/files/"+doc.StorageKey, link.URL)
}

func TestUpload_Validation(t *testing.T) {
	env := newDocEnv(t, nil)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)

	cases := map[string]*dto.UploadRequest{
		"empty file":   upload("a.txt", "text/plain", ""),
		"no name":      upload("", "text/plain", "x"),
		"dot name":     upload("..", "text/plain", "x"),
		"bad type":     upload("a.exe", "application/x-msdownload", "MZ"),
		"too large":    {Filename: "big.txt", MimeType: "text/plain", Size: 2 << 20, Content: strings.NewReader("x")},
		"no content":   {Filename: "a.txt", MimeType: "text/plain", Size: 1},
		"size too big": {Filename: "a.txt", MimeType: "text/plain", Size: 3, Content: strings.NewReader("abcdef")},
		"size small":   {Filename: "a.txt", MimeType: "text/plain", Size: 10, Content: strings.NewReader("abc")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.docs.Upload(context.Background(), env.db, user.ID, req)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "got %v", err)
		})
	}

	count, err := env.docRepo.CountByUser(env.db, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, env.storedFiles(t))
}

func TestUpload_QuotaExceededWritesNothing(t *testing.T) {
	env := newDocEnv(t, nil)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)
	helpers.CreateDocuments(t, env.db, user.ID, 100*quota.MiB-3)

	_, err := env.docs.Upload(context.Background(), env.db, user.ID, upload("a.txt", "text/plain", "abcd"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeQuotaExceeded), "got %v", err)
	assert.Zero(t, env.storedFiles(t))

	_, err = env.docs.Upload(context.Background(), env.db, user.ID, upload("a.txt", "text/plain", "abc"))
	assert.NoError(t, err)
}

func TestUpload_ConcurrentUploadsNeverExceedQuota(t *testing.T) {
	env := newDocEnv(t, nil)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)
	helpers.CreateDocuments(t, env.db, user.ID, 100*quota.MiB-15)

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.docs.Upload(context.Background(), env.db, user.ID, upload("part.txt", "text/plain", "0123456789"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeQuotaExceeded), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	used, err := env.docRepo.SumFileSize(env.db, user.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, used, 100*quota.MiB)
	assert.Equal(t, 1, env.storedFiles(t))
}

// failingDocRepo симулирует сбой вставки строки после записи объекта
type failingDocRepo struct {
	repositories.DocumentRepository
}

func (failingDocRepo) Create(*gorm.DB, *models.Document) error {
	return errors.New("insert failed")
}

func TestUpload_RowInsertFailureRemovesObject(t *testing.T) {
	env := newDocEnv(t, failingDocRepo{repositories.NewDocumentRepository()})
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)

	_, err := env.docs.Upload(context.Background(), env.db, user.ID, upload("a.txt", "text/plain", "hello"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternalError), "got %v", err)
	assert.Zero(t, env.storedFiles(t))
}

func TestDelete_FreesQuotaAndRemovesObject(t *testing.T) {
	env := newDocEnv(t, nil)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)

	doc, err := env.docs.Upload(context.Background(), env.db, user.ID, upload("a.txt", "text/plain", "hello"))
	require.NoError(t, err)

	require.NoError(t, env.docs.Delete(context.Background(), env.db, user.ID, doc.ID))

	used, err := env.docRepo.SumFileSize(env.db, user.ID)
	require.NoError(t, err)
	assert.Zero(t, used)
	assert.Zero(t, env.storedFiles(t))

	err = env.docs.Delete(context.Background(), env.db, user.ID, doc.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestDocuments_AreScopedToOwner(t *testing.T) {
	env := newDocEnv(t, nil)
	owner := helpers.CreateUser(t, env.db, "owner@example.com", "password123")
	other := helpers.CreateUser(t, env.db, "other@example.com", "password123")
	helpers.CreateSubscription(t, env.db, owner.ID, quota.PlanFree)

	doc, err := env.docs.Upload(context.Background(), env.db, owner.ID, upload("a.txt", "text/plain", "secret"))
	require.NoError(t, err)

	_, err = env.docs.Get(context.Background(), env.db, other.ID, doc.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
	err = env.docs.Delete(context.Background(), env.db, other.ID, doc.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)

	list, err := env.docs.List(context.Background(), env.db, other.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list.Documents)

	list, err = env.docs.List(context.Background(), env.db, owner.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list.Documents, 1)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\notes.txt`: "notes.txt",
		"  spaced.txt ":         "spaced.txt",
		"..":                    "",
		"":                      "",
		"dir/":                  "dir",
	}
	for in, want := range cases {
		assert.Equal(t, want, services.SanitizeFilename(in), in)
	}
	long := bytes.Repeat([]byte("a"), 300)
	assert.Len(t, services.SanitizeFilename(string(long)), 255)
}
