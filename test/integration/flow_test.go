package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"docvault_backend/internal/billing"
	"docvault_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentBody struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type usageBody struct {
	Plan              string `json:"plan"`
	StorageLimitBytes int64  `json:"storage_limit_bytes"`
	StorageUsedBytes  int64  `json:"storage_used_bytes"`
	DocumentCount     int64  `json:"document_count"`
}

func decode(t *testing.T, body string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(body), v), body)
}

func TestPaymentFlow_UpgradesStorage(t *testing.T) {
	ts, gateway := newServer(t)
	token, _ := ts.RegisterUser(t, "payer@example.com")

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/subscription/usage", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	var usage usageBody
	decode(t, body, &usage)
	assert.Equal(t, "free", usage.Plan)

	res, body = ts.SendRequest(t, http.MethodPost, "/api/v1/payments", token, map[string]string{
		"amount":       "12.50",
		"currency":     "XAF",
		"phone_number": "237612345678",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	var payment paymentBody
	decode(t, body, &payment)
	assert.Equal(t, "pending", payment.Status)
	require.NotEmpty(t, payment.ReferenceID)

	// шлюз ещё не подтвердил оплату
	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/payments/"+payment.ReferenceID, token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	decode(t, body, &payment)
	assert.Equal(t, "pending", payment.Status)

	gateway.complete("SUCCESSFUL")
	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/payments/"+payment.ReferenceID, token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	decode(t, body, &payment)
	assert.Equal(t, "successful", payment.Status)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/subscription/usage", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	decode(t, body, &usage)
	assert.Equal(t, "premium", usage.Plan)
	assert.Equal(t, int64(5368709120), usage.StorageLimitBytes)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/payments", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"total":1`)
}

func TestPaymentFlow_RejectsInvalidRequests(t *testing.T) {
	ts, _ := newServer(t)
	token, _ := ts.RegisterUser(t, "invalid@example.com")

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/payments", token, map[string]string{
		"amount":       "10",
		"phone_number": "33612345678",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, "VALIDATION_FAILED")
	assert.Contains(t, body, "phone_number")

	res, body = ts.SendRequest(t, http.MethodPost, "/api/v1/payments", token, map[string]string{
		"amount":       "-5",
		"phone_number": "237612345678",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, "INVALID_INPUT")

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/payments/unknown_ref", token, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/payments", "", map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func uploadRequest(t *testing.T, ts *helpers.TestServer, token, filename, contentType, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/api/v1/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestDocumentFlow(t *testing.T) {
	ts, _ := newServer(t)
	token, userID := ts.RegisterUser(t, "owner@example.com")
	otherToken, _ := ts.RegisterUser(t, "other@example.com")

	res, body := ts.Do(t, uploadRequest(t, ts, token, "report.txt", "text/plain", "hello docvault"))
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	var doc struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		FileSize int64  `json:"file_size"`
	}
	decode(t, body, &doc)
	assert.Equal(t, "report.txt", doc.Filename)
	assert.Equal(t, int64(14), doc.FileSize)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/subscription/usage", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	var usage usageBody
	decode(t, body, &usage)
	assert.Equal(t, int64(14), usage.StorageUsedBytes)
	assert.Equal(t, int64(1), usage.DocumentCount)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/documents/"+doc.ID+"/download", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello docvault", body)
	assert.Contains(t, res.Header.Get("Content-Disposition"), "report.txt")

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/documents/"+doc.ID+"/url", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	var link struct {
		URL string `json:"url"`
	}
	decode(t, body, &link)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/files/"+userID+"/"), link.URL)

	res, body = ts.SendRequest(t, http.MethodGet, link.URL, token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello docvault", body)

	// чужой пользователь не видит ни документ, ни файл
	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/documents/"+doc.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = ts.SendRequest(t, http.MethodGet, link.URL, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodDelete, "/api/v1/documents/"+doc.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/subscription/usage", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	decode(t, body, &usage)
	assert.Zero(t, usage.StorageUsedBytes)
	assert.Zero(t, usage.DocumentCount)
}

func TestDocumentFlow_QuotaExceeded(t *testing.T) {
	ts, _ := newServer(t)
	token, userID := ts.RegisterUser(t, "full@example.com")
	helpers.CreateDocuments(t, ts.DB, userID, 100<<20)

	res, body := ts.Do(t, uploadRequest(t, ts, token, "one-more.txt", "text/plain", "x"))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, body, "QUOTA_EXCEEDED")
}

func stripeEventPayload(id, eventType, status, price, userID string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":{
"id":"sub_integration","object":"subscription","status":%q,"customer":"cus_integration",
"current_period_end":1800000000,"metadata":{"user_id":%q},
"items":{"object":"list","data":[{"id":"si_1","price":{"id":%q}}]}}}}`, id, eventType, status, userID, price))
}

func postWebhook(t *testing.T, ts *helpers.TestServer, payload []byte, signature string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/api/v1/webhooks/stripe", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	return ts.Do(t, req)
}

func TestStripeWebhookFlow(t *testing.T) {
	ts, _ := newServer(t)
	token, userID := ts.RegisterUser(t, "stripe@example.com")
	secret := ts.App.Config.Stripe.WebhookSecret

	payload := stripeEventPayload("evt_int_1", billing.EventSubscriptionUpdated, "active", "price_basic", userID)

	res, body := postWebhook(t, ts, payload, billing.SignPayload(payload, "whsec_wrong", time.Now()))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, "INVALID_SIGNATURE")

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/subscription", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"plan":"free"`)

	res, body = postWebhook(t, ts, payload, billing.SignPayload(payload, secret, time.Now()))
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"processed"`)

	res, body = postWebhook(t, ts, payload, billing.SignPayload(payload, secret, time.Now()))
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"duplicate"`)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/subscription/usage", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var usage usageBody
	decode(t, body, &usage)
	assert.Equal(t, "basic", usage.Plan)
	assert.Equal(t, int64(1<<30), usage.StorageLimitBytes)

	deleted := stripeEventPayload("evt_int_2", billing.EventSubscriptionDeleted, "canceled", "price_basic", userID)
	res, body = postWebhook(t, ts, deleted, billing.SignPayload(deleted, secret, time.Now()))
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/subscription", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"plan":"free"`)
	assert.Contains(t, body, `"status":"canceled"`)
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	ts, _ := newServer(t)
	payload := bytes.Repeat([]byte("a"), 70000)
	res, _ := postWebhook(t, ts, payload, "t=1,v1=00")
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestServiceEndpoints(t *testing.T) {
	ts, _ := newServer(t)

	res, body := ts.SendRequest(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)

	ts.RegisterUser(t, "metrics@example.com")
	res, body = ts.SendRequest(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `docvault_http_requests_total{method="POST",path="/api/v1/auth/register",status="201"}`)

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}
