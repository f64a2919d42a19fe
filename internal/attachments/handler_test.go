package attachments

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/storage"
)

func TestKeyBelongsToTenant(t *testing.T) {
	key := storage.AttachmentKey("acme", "a1b2", "report.pdf")
	assert.True(t, keyBelongsToTenant(key, "acme"))
	assert.False(t, keyBelongsToTenant(key, "globex"))
	assert.False(t, keyBelongsToTenant(key, "ac"), "prefix of a tenant id must not match")
	assert.False(t, keyBelongsToTenant("attachments/acme-extra/x/y.pdf", "acme"))
	assert.False(t, keyBelongsToTenant("other/acme/x/y.pdf", "acme"))
}
