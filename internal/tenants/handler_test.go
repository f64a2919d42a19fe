package tenants

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/queue"
)

type fakeDirectory struct {
	registered []string
	verifyOK   bool
	first      bool
}

func (f *fakeDirectory) Register(_ context.Context, id, name, domain string, origins []string, adminEmail string) (*models.TenantWithSecret, error) {
	f.registered = append(f.registered, id)
	return &models.TenantWithSecret{
		Tenant: models.Tenant{ID: id, Name: name, Domain: domain, AllowedOrigins: origins, AdminEmail: adminEmail, Status: models.TenantStatusPending},
		Secret: "one-time-secret",
	}, nil
}

func (f *fakeDirectory) Verify(_ context.Context, id, code string) (*models.Tenant, bool, error) {
	if !f.verifyOK {
		return nil, false, ErrBadVerification
	}
	return &models.Tenant{ID: id, Status: models.TenantStatusVerified, IsActive: true}, f.first, nil
}

func (f *fakeDirectory) SetStatus(_ context.Context, id string, status models.TenantStatus) (*models.Tenant, error) {
	return &models.Tenant{ID: id, Status: status}, nil
}

func (f *fakeDirectory) ListActive(context.Context) ([]*models.Tenant, error) {
	return nil, nil
}

type fakeEnqueuer struct {
	jobs []queue.TenantProvisionPayload
}

func (f *fakeEnqueuer) EnqueueTenantProvision(_ context.Context, p queue.TenantProvisionPayload) error {
	f.jobs = append(f.jobs, p)
	return nil
}

func newTenantsRouter(dir *fakeDirectory, jobs *fakeEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(dir, jobs, zap.NewNop())
	r := gin.New()
	r.POST("/tenants/register", h.Register)
	r.POST("/tenants/verify", h.Verify)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterReturnsSecretOnce(t *testing.T) {
	dir := &fakeDirectory{}
	r := newTenantsRouter(dir, &fakeEnqueuer{})

	w := postJSON(r, "/tenants/register", gin.H{
		"tenant_id":       "Acme",
		"name":            "Acme Corp",
		"domain":          "acme.test",
		"allowed_origins": []string{"https://app.acme.test"},
		"admin_email":     "admin@acme.test",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"acme"}, dir.registered, "tenant id is lowercased")
	assert.Contains(t, w.Body.String(), "one-time-secret")
}

func TestRegisterRejectsBadTenantID(t *testing.T) {
	for _, id := range []string{"a", "-leading", "has spaces", "UPPER!", ""} {
		dir := &fakeDirectory{}
		r := newTenantsRouter(dir, &fakeEnqueuer{})
		w := postJSON(r, "/tenants/register", gin.H{
			"tenant_id":   id,
			"name":        "X",
			"domain":      "x.test",
			"admin_email": "a@x.test",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, "tenant id %q should be rejected", id)
		assert.Empty(t, dir.registered)
	}
}

func TestRegisterRejectsRelativeOrigins(t *testing.T) {
	dir := &fakeDirectory{}
	r := newTenantsRouter(dir, &fakeEnqueuer{})
	w := postJSON(r, "/tenants/register", gin.H{
		"tenant_id":       "acme",
		"name":            "Acme",
		"domain":          "acme.test",
		"allowed_origins": []string{"app.acme.test"},
		"admin_email":     "admin@acme.test",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEnqueuesProvisioningOnce(t *testing.T) {
	dir := &fakeDirectory{verifyOK: true, first: true}
	jobs := &fakeEnqueuer{}
	r := newTenantsRouter(dir, jobs)

	w := postJSON(r, "/tenants/verify", gin.H{"tenant_id": "acme", "verification_code": "code"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, "acme", jobs.jobs[0].TenantID)

	// an already-verified tenant re-verifying must not enqueue again
	dir.first = false
	w = postJSON(r, "/tenants/verify", gin.H{"tenant_id": "acme", "verification_code": "code"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, jobs.jobs, 1)
}

func TestVerifyRejectsBadCode(t *testing.T) {
	dir := &fakeDirectory{verifyOK: false}
	r := newTenantsRouter(dir, &fakeEnqueuer{})
	w := postJSON(r, "/tenants/verify", gin.H{"tenant_id": "acme", "verification_code": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
