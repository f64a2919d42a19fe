package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(tenantID string, userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		UserID:   userID,
		send:     make(chan WSMessage, 4),
	}
}

func TestHubDeliversToUserRoom(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()
	c1 := newTestClient("acme", userID)
	c2 := newTestClient("acme", userID)
	other := newTestClient("acme", uuid.New())
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)

	hub.NotifyUser("acme", userID, "message_new", map[string]string{"content": "hi"})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "message_new", msg.Event)
		case <-time.After(time.Second):
			t.Fatal("expected delivery to every socket of the user")
		}
	}
	select {
	case <-other.send:
		t.Fatal("event leaked to another user")
	default:
	}
}

func TestHubIsolatesTenants(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()
	acme := newTestClient("acme", userID)
	globex := newTestClient("globex", userID)
	hub.Register(acme)
	hub.Register(globex)

	hub.NotifyUser("acme", userID, "message_new", map[string]string{"content": "hi"})

	select {
	case <-acme.send:
	case <-time.After(time.Second):
		t.Fatal("expected delivery within the tenant")
	}
	select {
	case <-globex.send:
		t.Fatal("event crossed tenants despite same user id")
	default:
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()
	c := newTestClient("acme", userID)
	hub.Register(c)
	require.Equal(t, 1, hub.ConnectionCount("acme", userID))

	hub.Unregister(c)
	assert.Zero(t, hub.ConnectionCount("acme", userID))

	hub.NotifyUser("acme", userID, "message_new", nil)
	select {
	case <-c.send:
		t.Fatal("delivery after unregister")
	default:
	}
}
