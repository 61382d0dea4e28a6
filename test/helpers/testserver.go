package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"docvault_backend/internal/app"
	"docvault_backend/internal/config"
	"docvault_backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const TestJWTSecret = "integration-secret"

type TestServer struct {
	Server *httptest.Server
	DB     *gorm.DB
	App    *app.App
}

// NewTestServer поднимает приложение на in-memory SQLite с локальным
// хранилищем во временной директории. Внешние шлюзы передаются через deps.
func NewTestServer(t *testing.T, deps app.Dependencies, mutate ...func(*config.Config)) *TestServer {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.JWT.Secret = TestJWTSecret
	cfg.Storage.BasePath = t.TempDir()
	cfg.Stripe.WebhookSecret = "whsec_integration"
	cfg.Stripe.Prices = map[string]string{"basic": "price_basic", "premium": "price_premium"}
	cfg.Upload.MaxSize = 1 << 20
	for _, m := range mutate {
		m(cfg)
	}

	db := NewTestDB(t)
	application, err := app.New(context.Background(), cfg, db, deps)
	require.NoError(t, err, "Не удалось собрать приложение")

	ts := &TestServer{
		Server: httptest.NewServer(application.Router),
		DB:     db,
		App:    application,
	}
	t.Cleanup(ts.Server.Close)
	return ts
}

// ClearTables очищает все таблицы между подтестами
func (ts *TestServer) ClearTables(t *testing.T) {
	t.Helper()
	for _, model := range []interface{}{
		&models.WebhookEvent{}, &models.Document{}, &models.Payment{}, &models.Subscription{}, &models.User{},
	} {
		require.NoError(t, ts.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error)
	}
}

// SendRequest отправляет JSON-запрос и возвращает ответ с прочитанным телом
func (ts *TestServer) SendRequest(t *testing.T, method, path, token string, body interface{}) (*http.Response, string) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err, "Ошибка кодирования JSON для запроса")
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return ts.Do(t, req)
}

// Do выполняет произвольный запрос (multipart, webhook)
func (ts *TestServer) Do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()

	res, err := ts.Server.Client().Do(req)
	require.NoError(t, err, "Ошибка отправки HTTP-запроса")
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	require.NoError(t, err, "Ошибка чтения тела ответа")
	return res, string(resBody)
}

// RegisterUser регистрирует пользователя через API и возвращает токен и ID
func (ts *TestServer) RegisterUser(t *testing.T, email string) (token, userID string) {
	t.Helper()

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)

	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp.AccessToken, resp.User.ID
}
