package integration_test

import (
	"context"
	"sync"
	"testing"

	"docvault_backend/internal/app"
	"docvault_backend/internal/momo"
	"docvault_backend/test/helpers"

	"github.com/google/uuid"
)

// fakeGateway эмулирует коллекцию MoMo: каждый запрос получает свой
// X-Reference-Id, статус задаётся тестом
type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]string
	last     string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]string)}
}

func (g *fakeGateway) InitiateTransfer(ctx context.Context, tr momo.TransferRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := uuid.NewString()
	g.statuses[ref] = "PENDING"
	g.last = ref
	return ref, nil
}

func (g *fakeGateway) TransferStatus(ctx context.Context, providerRef string) (*momo.TransferStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[providerRef]
	if !ok {
		return nil, &momo.Error{Op: "transfer_status", Kind: momo.KindRejected, StatusCode: 404}
	}
	return &momo.TransferStatus{Status: status, ExternalID: providerRef}, nil
}

// complete переводит последнюю транзакцию в заданный статус
func (g *fakeGateway) complete(status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[g.last] = status
}

func newServer(t *testing.T) (*helpers.TestServer, *fakeGateway) {
	t.Helper()
	gateway := newFakeGateway()
	return helpers.NewTestServer(t, app.Dependencies{Gateway: gateway}), gateway
}
